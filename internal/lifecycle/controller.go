// Package lifecycle 管理客户端侧的临时邮箱生命周期：创建、倒计时、收件箱轮询与删除。
//
// 每个邮箱对应一个递增的代数 (generation) 和独立的可取消上下文。
// 邮箱被替换、过期或删除时旧上下文被取消，旧代数返回的结果一律丢弃。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"stealthmail/backend/internal/domain"
)

// State 控制器状态
type State string

const (
	StateUninitialized State = "uninitialized"
	StateCreating      State = "creating"
	StateActive        State = "active"
	StateExpired       State = "expired"
	StateDeleted       State = "deleted"
)

const (
	DefaultLifetime       = 10 * time.Minute
	DefaultPollInterval   = 30 * time.Second
	DefaultFallbackDomain = "stealthmail.com"

	syntheticAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	syntheticLength   = 8
	countdownStep     = time.Second
)

// ErrInvalidTransition 当前状态不允许该操作
var ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

// ErrStale 结果属于已被替换的邮箱
var ErrStale = errors.New("lifecycle: mailbox replaced")

// Gateway 控制器依赖的网关接口
type Gateway interface {
	CreateMailbox(ctx context.Context) (domain.Mailbox, error)
	Inbox(ctx context.Context, email, token string) (domain.Inbox, error)
	Message(ctx context.Context, id, token string) (domain.Message, error)
	DeleteMailbox(ctx context.Context, email, token string) error
}

// Ticker 可替换的定时器
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory 按间隔创建定时器
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Options 控制器配置
type Options struct {
	Lifetime       time.Duration
	PollInterval   time.Duration
	FallbackDomain string
	NewTicker      TickerFactory
	Now            func() time.Time
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Lifetime <= 0 {
		o.Lifetime = DefaultLifetime
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.FallbackDomain == "" {
		o.FallbackDomain = DefaultFallbackDomain
	}
	if o.NewTicker == nil {
		o.NewTicker = newRealTicker
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Snapshot 控制器状态的只读副本
type Snapshot struct {
	Version    uint64
	State      State
	Generation uint64
	Mailbox    domain.Mailbox
	Lifetime   time.Duration
	Remaining  time.Duration
	Messages   []domain.Message
	Opened     *domain.Message
	LastPoll   time.Time
	LastError  string
}

// HasToken 当前邮箱能否收信
func (s Snapshot) HasToken() bool {
	return s.Mailbox.Token != ""
}

// Unread 未读邮件数
func (s Snapshot) Unread() int {
	n := 0
	for _, m := range s.Messages {
		if !m.Seen {
			n++
		}
	}
	return n
}

// Controller 邮箱生命周期控制器，并发安全
//
// 监听函数在内部通知锁下串行调用，不能阻塞，也不能同步调用控制器的修改方法。
type Controller struct {
	gw   Gateway
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	snap     Snapshot
	seen     map[string]bool
	cancel   context.CancelFunc
	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	notifyMu  sync.Mutex
	delivered uint64
	listeners []func(Snapshot)
}

// New 创建控制器
func New(gw Gateway, opts Options) *Controller {
	opts = opts.withDefaults()
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		gw:       gw,
		opts:     opts,
		log:      opts.Logger,
		snap:     Snapshot{State: StateUninitialized, Lifetime: opts.Lifetime},
		seen:     map[string]bool{},
		base:     base,
		stopBase: stop,
	}
}

// OnChange 注册状态变化监听
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.notifyMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.notifyMu.Unlock()
}

// Snapshot 返回当前状态副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Start 首次创建邮箱：uninitialized → creating → active
func (c *Controller) Start(ctx context.Context) error {
	return c.create(ctx, "start", StateUninitialized)
}

// Refresh 替换为新邮箱并重置倒计时：active/expired → creating → active
func (c *Controller) Refresh(ctx context.Context) error {
	return c.create(ctx, "refresh", StateActive, StateExpired)
}

// Delete 删除当前邮箱：active → deleted
//
// 轮询立即停止，有令牌时调用网关删除接口。网关删除失败时状态仍为 deleted。
func (c *Controller) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.snap.State != StateActive {
		state := c.snap.State
		c.mu.Unlock()
		return fmt.Errorf("%w: delete from %s", ErrInvalidTransition, state)
	}
	mb := c.snap.Mailbox
	c.stopGenerationLocked()
	c.snap.Generation++
	c.snap.State = StateDeleted
	c.snap.Messages = []domain.Message{}
	c.snap.Opened = nil
	c.snap.Remaining = 0
	c.touchLocked()
	c.mu.Unlock()
	c.publish()

	if mb.Token == "" {
		return nil
	}
	if err := c.gw.DeleteMailbox(ctx, mb.Address, mb.Token); err != nil {
		c.log.Warn("delete mailbox failed", zap.String("email", mb.Address), zap.Error(err))
		c.setError(err)
		return err
	}
	c.log.Info("mailbox deleted", zap.String("email", mb.Address))
	return nil
}

// CheckInbox 立即拉取一次收件箱
func (c *Controller) CheckInbox(ctx context.Context) error {
	c.mu.Lock()
	if c.snap.State != StateActive || c.snap.Mailbox.Token == "" {
		c.mu.Unlock()
		return nil
	}
	gen, mb := c.snap.Generation, c.snap.Mailbox
	c.mu.Unlock()

	return c.poll(ctx, gen, mb)
}

// Open 获取邮件全文并在本地标记为已读
func (c *Controller) Open(ctx context.Context, id string) (domain.Message, error) {
	c.mu.Lock()
	if c.snap.State != StateActive {
		state := c.snap.State
		c.mu.Unlock()
		return domain.Message{}, fmt.Errorf("%w: open from %s", ErrInvalidTransition, state)
	}
	gen, token := c.snap.Generation, c.snap.Mailbox.Token
	c.mu.Unlock()

	if token == "" {
		return domain.Message{}, domain.ErrAuthRequired
	}

	msg, err := c.gw.Message(ctx, id, token)
	if err != nil {
		c.setError(err)
		return domain.Message{}, err
	}

	c.mu.Lock()
	if c.snap.Generation != gen {
		c.mu.Unlock()
		return domain.Message{}, ErrStale
	}
	msg.Seen = true
	c.markSeenLocked(id)
	opened := msg
	c.snap.Opened = &opened
	c.touchLocked()
	c.mu.Unlock()
	c.publish()

	return msg, nil
}

// CloseMessage 关闭正在查看的邮件
func (c *Controller) CloseMessage() {
	c.mu.Lock()
	if c.snap.Opened == nil {
		c.mu.Unlock()
		return
	}
	c.snap.Opened = nil
	c.touchLocked()
	c.mu.Unlock()
	c.publish()
}

// MarkRead 仅在本地把邮件标记为已读
func (c *Controller) MarkRead(id string) {
	c.mu.Lock()
	if !c.markSeenLocked(id) {
		c.mu.Unlock()
		return
	}
	c.touchLocked()
	c.mu.Unlock()
	c.publish()
}

// Close 停止所有后台任务并等待退出
func (c *Controller) Close() {
	c.stopBase()
	c.mu.Lock()
	c.stopGenerationLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// create 进入 creating，请求网关创建邮箱，失败时使用本地占位地址
func (c *Controller) create(ctx context.Context, op string, from ...State) error {
	c.mu.Lock()
	if !stateIn(c.snap.State, from) {
		state := c.snap.State
		c.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, state)
	}
	c.stopGenerationLocked()
	c.snap.Generation++
	gen := c.snap.Generation
	c.snap.State = StateCreating
	c.snap.Messages = []domain.Message{}
	c.snap.Opened = nil
	c.snap.LastError = ""
	c.touchLocked()
	c.mu.Unlock()
	c.publish()

	mb, err := c.gw.CreateMailbox(ctx)
	if err != nil {
		c.log.Warn("create mailbox failed, using synthetic address", zap.Error(err))
		mb = c.syntheticMailbox()
	}
	now := c.opts.Now()
	mb.CreatedAt = now
	mb.ExpiresAt = now.Add(c.opts.Lifetime)

	c.mu.Lock()
	if c.snap.Generation != gen {
		c.mu.Unlock()
		return ErrStale
	}
	c.snap.State = StateActive
	c.snap.Mailbox = mb
	c.snap.Remaining = c.opts.Lifetime
	c.snap.LastPoll = time.Time{}
	if err != nil {
		c.snap.LastError = domain.MessageOf(err)
	}
	c.seen = map[string]bool{}
	genCtx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	c.wg.Add(1)
	go c.countdown(genCtx, gen)
	if mb.Token != "" {
		c.wg.Add(1)
		go c.pollLoop(genCtx, gen, mb)
	}
	c.touchLocked()
	c.mu.Unlock()
	c.publish()

	c.log.Info("mailbox active",
		zap.String("email", mb.Address),
		zap.Uint64("generation", gen),
		zap.Bool("synthetic", mb.Synthetic),
	)
	return nil
}

func (c *Controller) syntheticMailbox() domain.Mailbox {
	local, err := gonanoid.Generate(syntheticAlphabet, syntheticLength)
	if err != nil {
		local = fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return domain.Mailbox{
		Address:   local + "@" + c.opts.FallbackDomain,
		Synthetic: true,
	}
}

// countdown 每秒递减剩余时间，归零时进入 expired 并停止轮询
func (c *Controller) countdown(ctx context.Context, gen uint64) {
	defer c.wg.Done()
	ticker := c.opts.NewTicker(countdownStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.mu.Lock()
			if c.snap.Generation != gen || c.snap.State != StateActive {
				c.mu.Unlock()
				return
			}
			c.snap.Remaining -= countdownStep
			expired := c.snap.Remaining <= 0
			if expired {
				c.snap.Remaining = 0
				c.snap.State = StateExpired
				c.stopGenerationLocked()
			}
			c.touchLocked()
			c.mu.Unlock()
			c.publish()

			if expired {
				c.log.Info("mailbox expired", zap.Uint64("generation", gen))
				return
			}
		}
	}
}

// pollLoop 立即拉取一次，之后按固定间隔拉取
func (c *Controller) pollLoop(ctx context.Context, gen uint64, mb domain.Mailbox) {
	defer c.wg.Done()
	ticker := c.opts.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	_ = c.poll(ctx, gen, mb)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			_ = c.poll(ctx, gen, mb)
		}
	}
}

// poll 拉取收件箱并整体替换列表；失败时保留旧列表
func (c *Controller) poll(ctx context.Context, gen uint64, mb domain.Mailbox) error {
	inbox, err := c.gw.Inbox(ctx, mb.Address, mb.Token)

	c.mu.Lock()
	if c.snap.Generation != gen || c.snap.State != StateActive {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.snap.LastError = domain.MessageOf(err)
		c.touchLocked()
		c.mu.Unlock()
		c.publish()
		c.log.Debug("poll inbox failed", zap.String("email", mb.Address), zap.Error(err))
		return err
	}

	messages := make([]domain.Message, len(inbox.Messages))
	copy(messages, inbox.Messages)
	for i := range messages {
		if c.seen[messages[i].ID] {
			messages[i].Seen = true
		}
	}
	c.snap.Messages = messages
	c.snap.LastPoll = c.opts.Now()
	c.snap.LastError = ""
	c.touchLocked()
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.snap.LastError = domain.MessageOf(err)
	c.touchLocked()
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) markSeenLocked(id string) bool {
	changed := false
	for i := range c.snap.Messages {
		if c.snap.Messages[i].ID == id && !c.snap.Messages[i].Seen {
			c.snap.Messages[i].Seen = true
			changed = true
		}
	}
	if !c.seen[id] {
		c.seen[id] = true
		changed = true
	}
	return changed
}

func (c *Controller) stopGenerationLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) touchLocked() {
	c.snap.Version++
}

func (c *Controller) copyLocked() Snapshot {
	s := c.snap
	s.Messages = make([]domain.Message, len(c.snap.Messages))
	copy(s.Messages, c.snap.Messages)
	if c.snap.Opened != nil {
		opened := *c.snap.Opened
		s.Opened = &opened
	}
	return s
}

// publish 把最新快照推给监听者，版本不前进时跳过
func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	snap := c.Snapshot()
	if snap.Version <= c.delivered {
		return
	}
	c.delivered = snap.Version
	for _, fn := range c.listeners {
		fn(snap)
	}
}

func stateIn(s State, set []State) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
