// Package refresh re-fetches a whole board on a fixed interval.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/use-agent/scrapedeck/models"
)

// Board is the part of scraper.Board the scheduler drives.
type Board interface {
	FetchAll(ctx context.Context) []models.FetchReport
	SetStatus(msg string)
}

// StatusTimeFormat formats the "Auto refreshed at" status line.
const StatusTimeFormat = "2006-01-02 15:04:05"

// Scheduler re-triggers Board.FetchAll every interval. A tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	board    Board
	interval time.Duration
	onReport func([]models.FetchReport)
	now      func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReportHandler is called with the reports of every run.
func WithReportHandler(fn func([]models.FetchReport)) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

// New creates a stopped scheduler. Intervals below one second are rounded
// up to one second.
func New(board Board, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{board: board, interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{l: slog.Default()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	slog.Info("auto refresh started", "interval", s.interval)
}

// Stop halts ticking and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.board.SetStatus("Auto refresh stopped.")
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RunOnce fetches the whole board now and stamps the status line.
func (s *Scheduler) RunOnce(ctx context.Context) []models.FetchReport {
	reports := s.board.FetchAll(ctx)
	s.board.SetStatus("Auto refreshed at " + s.now().Format(StatusTimeFormat))
	if s.onReport != nil {
		s.onReport(reports)
	}
	return reports
}

// cronLogger routes cron's logging into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
