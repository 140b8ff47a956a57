// Package websocket 通过 WebSocket 向客户端推送收件箱快照。
package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// InboxSource 收件箱数据来源
type InboxSource interface {
	ListMessages(ctx context.Context, email, token string) (domain.Inbox, error)
}

// StreamRecorder 推送连接指标
type StreamRecorder interface {
	StreamOpened()
	StreamClosed()
}

// MessageType 定义推送消息类型
type MessageType string

const (
	MessageTypeInbox   MessageType = "inbox"
	MessageTypeError   MessageType = "error"
	MessageTypeExpired MessageType = "expired"
)

// Message 推送给客户端的消息
type Message struct {
	Type      MessageType   `json:"type"`
	Email     string        `json:"email"`
	Inbox     *domain.Inbox `json:"inbox,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			// 没有 Origin 视为同源请求
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// Streamer 按固定间隔推送收件箱快照，直到客户端断开或邮箱到期
type Streamer struct {
	source   InboxSource
	upgrader websocket.Upgrader
	interval time.Duration
	lifetime time.Duration
	log      *zap.Logger
	metrics  StreamRecorder
}

// NewStreamer 创建收件箱推送器
//
// 参数:
//   - source: 收件箱数据来源
//   - allowedOrigins: 允许的 Origin 列表
//   - interval: 推送间隔
//   - lifetime: 单个连接的最长存活时间，与邮箱生存期一致
func NewStreamer(source InboxSource, allowedOrigins []string, interval, lifetime time.Duration, log *zap.Logger, metrics StreamRecorder) *Streamer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Streamer{
		source:   source,
		upgrader: upgraderFactory(allowedOrigins),
		interval: interval,
		lifetime: lifetime,
		log:      log,
		metrics:  metrics,
	}
}

// Serve 升级连接并阻塞推送，调用方负责在升级前校验参数
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, email, token string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection",
			zap.Error(err),
			zap.String("origin", r.Header.Get("Origin")),
		)
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.lifetime)
	defer cancel()

	go s.readPump(conn, cancel)

	s.log.Debug("inbox stream opened", zap.String("email", email))
	s.writePump(ctx, conn, email, token)
	s.log.Debug("inbox stream closed", zap.String("email", email))
}

// readPump 只处理控制帧，读失败即视为客户端断开
func (s *Streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Streamer) writePump(ctx context.Context, conn *websocket.Conn, email, token string) {
	poll := time.NewTicker(s.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		poll.Stop()
		ping.Stop()
	}()

	if !s.push(ctx, conn, email, token) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				_ = s.send(conn, Message{Type: MessageTypeExpired, Email: email, Timestamp: time.Now().UTC()})
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-poll.C:
			if !s.push(ctx, conn, email, token) {
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push 拉取一次收件箱并发送，返回 false 表示连接已不可写
func (s *Streamer) push(ctx context.Context, conn *websocket.Conn, email, token string) bool {
	msg := Message{Email: email, Timestamp: time.Now().UTC()}

	inbox, err := s.source.ListMessages(ctx, email, token)
	switch {
	case ctx.Err() != nil:
		return true
	case err != nil:
		s.log.Debug("inbox stream fetch failed", zap.String("email", email), zap.Error(err))
		msg.Type = MessageTypeError
		msg.Error = domain.MessageOf(err)
	default:
		msg.Type = MessageTypeInbox
		msg.Inbox = &inbox
	}

	return s.send(conn, msg) == nil
}

func (s *Streamer) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
