package mailtm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveUpstream(provider, operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, provider+"/"+operation+"/"+outcome)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, opts...)
}

func TestDomains(t *testing.T) {
	t.Run("解析 hydra 集合", func(t *testing.T) {
		obs := &recordingObserver{}
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/domains", r.URL.Path)
			assert.Equal(t, "Stealth-Mail/1.0", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/ld+json")
			_, _ = w.Write([]byte(`{"hydra:member":[{"id":"d1","domain":"inbox.test","isActive":true}],"hydra:totalItems":1}`))
		}, WithObserver(obs))

		domains, err := c.Domains(context.Background())
		require.NoError(t, err)
		require.Len(t, domains, 1)
		assert.Equal(t, "inbox.test", domains[0].Domain)
		assert.True(t, domains[0].IsActive)
		assert.Equal(t, []string{"mailtm/domains/200"}, obs.calls)
	})

	t.Run("解析普通数组", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"d1","domain":"a.test","isActive":false},{"id":"d2","domain":"b.test","isActive":true}]`))
		})

		domains, err := c.Domains(context.Background())
		require.NoError(t, err)
		assert.Len(t, domains, 2)
		assert.Equal(t, "b.test", domains[1].Domain)
	})
}

func TestCreateAccountAndToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "quickfox7@inbox.test", body["address"])
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.URL.Path {
		case "/accounts":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"acc-1","address":"quickfox7@inbox.test"}`))
		case "/token":
			_, _ = w.Write([]byte(`{"id":"acc-1","token":"tok-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	acc, err := c.CreateAccount(context.Background(), "quickfox7@inbox.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)

	tok, err := c.Token(context.Background(), "quickfox7@inbox.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Token)
}

func TestMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/messages":
			_, _ = w.Write([]byte(`{"hydra:member":[{"id":"m1","from":{"address":"a@x.test","name":"A"},"to":[{"address":"me@inbox.test","name":""}],"subject":"Hi","intro":"hello","seen":false,"createdAt":"2025-10-01T10:00:00+00:00"}]}`))
		case "/messages/m1":
			_, _ = w.Write([]byte(`{"id":"m1","from":"a@x.test","subject":"Hi","text":"hello","html":["<p>hello</p>","<p>world</p>"],"attachments":[{"id":"att1","filename":"a.txt","contentType":"text/plain","size":3}],"hasAttachments":true,"createdAt":"2025-10-01T10:00:00+00:00"}`))
		}
	})

	msgs, err := c.Messages(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@x.test", msgs[0].From.Address)
	assert.Equal(t, "A", msgs[0].From.Name)
	assert.Equal(t, "me@inbox.test", msgs[0].To[0].Address)
	assert.Equal(t, 2025, msgs[0].CreatedAt.Year())

	msg, err := c.Message(context.Background(), "tok-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.test", msg.From.Address)
	assert.Equal(t, "<p>hello</p><p>world</p>", msg.HTML)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "a.txt", msg.Attachments[0].Filename)
}

func TestAPIErrors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "message 字段", status: http.StatusUnprocessableEntity, body: `{"message":"address already used"}`, message: "address already used"},
		{name: "detail 字段", status: http.StatusUnauthorized, body: `{"detail":"Invalid credentials."}`, message: "Invalid credentials."},
		{name: "hydra 描述", status: http.StatusBadRequest, body: `{"hydra:description":"bad input"}`, message: "bad input"},
		{name: "非 JSON 响应", status: http.StatusBadGateway, body: `<html>oops</html>`, message: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.Me(context.Background(), "tok")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.status, StatusOf(err))
		})
	}
}

func TestDeleteAccount(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteAccount(context.Background(), "tok", "acc-1"))
	assert.Equal(t, "/accounts/acc-1", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestPathEscaping(t *testing.T) {
	var paths, queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		queries = append(queries, r.URL.RawQuery)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc?x"}`))
	})

	_, err := c.Message(context.Background(), "tok", "abc?x")
	require.NoError(t, err)
	require.NoError(t, c.DeleteAccount(context.Background(), "tok", "acc/1"))

	assert.Equal(t, []string{"/messages/abc%3Fx", "/accounts/acc%2F1"}, paths)
	assert.Equal(t, []string{"", ""}, queries)
}

func TestTransportError(t *testing.T) {
	obs := &recordingObserver{}
	c := NewClient("http://127.0.0.1:1", time.Second, WithObserver(obs))

	_, err := c.Domains(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
	assert.Equal(t, []string{"mailtm/domains/error"}, obs.calls)
}

func TestAccountIDFromToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       "acc-42",
		"username": "quickfox7@inbox.test",
	}).SignedString([]byte("provider-secret"))
	require.NoError(t, err)

	id, ok := AccountIDFromToken(signed)
	assert.True(t, ok)
	assert.Equal(t, "acc-42", id)

	_, ok = AccountIDFromToken("not-a-jwt")
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	t.Run("context 取消时不发送请求", func(t *testing.T) {
		hits := 0
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits++
		}, WithRateLimit(1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Domains(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, hits)
	})

	t.Run("关闭限流", func(t *testing.T) {
		c := NewClient("", time.Second, WithRateLimit(0))
		assert.Nil(t, c.limiter)
		assert.Equal(t, DefaultBaseURL, c.BaseURL())
	})
}
