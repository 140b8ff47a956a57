package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthmail/backend/internal/domain"
)

type fakeSource struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeSource) ListMessages(_ context.Context, email, token string) (domain.Inbox, error) {
	f.calls.Add(1)
	if f.fail {
		return domain.Inbox{}, domain.Unavailable("Failed to fetch messages", errors.New("boom"))
	}
	return domain.Inbox{Email: email, Messages: []domain.Message{{ID: "m1", Subject: token}}, Total: 1}, nil
}

type gauge struct{ open atomic.Int32 }

func (g *gauge) StreamOpened() { g.open.Add(1) }
func (g *gauge) StreamClosed() { g.open.Add(-1) }

func startStream(t *testing.T, s *Streamer) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Serve(w, r, r.URL.Query().Get("email"), r.URL.Query().Get("token"))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?email=a@inbox.test&token=tok"
}

func TestStreamer(t *testing.T) {
	t.Run("立即推送并在到期后关闭", func(t *testing.T) {
		src := &fakeSource{}
		g := &gauge{}
		url := startStream(t, NewStreamer(src, nil, 20*time.Millisecond, 150*time.Millisecond, nil, g))

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		var first Message
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, MessageTypeInbox, first.Type)
		assert.Equal(t, "a@inbox.test", first.Email)
		require.NotNil(t, first.Inbox)
		assert.Equal(t, 1, first.Inbox.Total)
		assert.Equal(t, "tok", first.Inbox.Messages[0].Subject)

		var last Message
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			last = msg
		}
		assert.Equal(t, MessageTypeExpired, last.Type)
		assert.GreaterOrEqual(t, src.calls.Load(), int32(2))

		assert.Eventually(t, func() bool { return g.open.Load() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("拉取失败时推送错误消息", func(t *testing.T) {
		url := startStream(t, NewStreamer(&fakeSource{fail: true}, nil, time.Second, time.Second, nil, nil))

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MessageTypeError, msg.Type)
		assert.Equal(t, "Failed to fetch messages", msg.Error)
		assert.Nil(t, msg.Inbox)
	})

	t.Run("拒绝不在列表中的 Origin", func(t *testing.T) {
		url := startStream(t, NewStreamer(&fakeSource{}, []string{"http://localhost:3000"}, time.Second, time.Second, nil, nil))

		header := http.Header{"Origin": []string{"http://evil.test"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
