package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 定时任务
type Job func(ctx context.Context) error

// Scheduler 基于 cron 表达式的后台任务调度器
//
// 同一任务上一次未结束时跳过本次触发，任务内 panic 会被恢复并记录。
type Scheduler struct {
	log     *zap.Logger
	cron    *cronv3.Cron
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	jobIDs map[string]cronv3.EntryID
}

// New 创建调度器。timeout 为单次任务的执行上限，<=0 表示不限制。
func New(log *zap.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		log:     log,
		timeout: timeout,
		ctx:     context.Background(),
		jobIDs:  make(map[string]cronv3.EntryID),
		cron: cronv3.New(
			cronv3.WithParser(cronv3.NewParser(
				cronv3.SecondOptional|cronv3.Minute|cronv3.Hour|cronv3.Dom|cronv3.Month|cronv3.Dow|cronv3.Descriptor,
			)),
			cronv3.WithChain(
				cronv3.SkipIfStillRunning(cl),
				cronv3.Recover(cl),
			),
			cronv3.WithLogger(cl),
		),
	}
}

// Register 注册任务，spec 为空时忽略
func (s *Scheduler) Register(name, spec string, job Job) error {
	if spec == "" {
		s.log.Info("job disabled", zap.String("job", name))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobIDs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("could not add %s job: %w", name, err)
	}
	s.jobIDs[name] = id
	s.log.Info("registered job", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Jobs 返回已注册任务名
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobIDs))
	for name := range s.jobIDs {
		names = append(names, name)
	}
	return names
}

// Next 返回任务的下一次触发时间
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobIDs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Run 启动调度并阻塞到 ctx 结束，返回前等待运行中的任务完成
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.log.Info("starting scheduler")
	s.cron.Start()
	<-ctx.Done()

	s.log.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunNow 立即执行一次任务，不经过调度
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.execute(ctx, name, job)
}

func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.execute(ctx, name, job)
}

func (s *Scheduler) execute(ctx context.Context, name string, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.log.Warn("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.log.Debug("job completed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// cronLogger 把 cron 内部日志转到 zap
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
