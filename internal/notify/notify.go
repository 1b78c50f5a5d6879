// Package notify delivers fired reminder triggers to presentation sinks
// (console, Telegram). Delivery is asynchronous: the trigger runtime hands
// off and returns immediately; queueing, rate limiting and retries happen
// here.
package notify

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lembra/internal/eventbus"
	"lembra/internal/iconhint"
	logx "lembra/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notify service stopped")
)

// Notification is one fired trigger, ready for presentation.
type Notification struct {
	Key   string // composite trigger key
	Title string
	Icon  iconhint.Hint
	At    time.Time
}

// Sink delivers notifications to one destination. Send may block on I/O;
// the service bounds and retries it.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// DeliveryEvent is the bus payload for delivery outcomes.
type DeliveryEvent struct {
	Key   string
	Sink  string
	At    time.Time
	Error string
}

type HistoryItem struct {
	At    time.Time
	Key   string
	Title string
	Sink  string
	Error string
}

type Config struct {
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	HistorySize   int
}

// Service is the delivery pipeline: queue, one worker (order-preserving),
// rate limit, per-sink retry. Safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	sinks []Sink

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue     chan Notification
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sinks []Sink, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, bus: bus, sinks: sinks}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	s.cfg = cfg
	// Burst equals the per-second rate so short spikes don't stall delivery.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Notification, s.cfg.QueueSize)
	s.accepting = true
	s.stopDone = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	q, done, runCtx := s.queue, s.stopDone, s.runCtx
	s.mu.Unlock()

	go func() {
		defer close(done)
		for n := range q {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			s.deliverOne(runCtx, n)
		}
	}()
}

// Stop blocks intake, drains queued notifications best-effort until ctx
// expires, then releases the worker.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	done := s.stopDone
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.mu.Unlock()

	inflight := make(chan struct{})
	go func() {
		s.sendWG.Wait()
		close(inflight)
	}()
	select {
	case <-ctx.Done():
		cancel()
		return
	case <-inflight:
	}

	close(q)
	select {
	case <-done:
	case <-ctx.Done():
	}
	cancel()

	s.mu.Lock()
	s.queue = nil
	s.stopDone = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()
}

// Deliver enqueues one notification. The icon hint is derived here so the
// scheduling layers never carry presentation state.
func (s *Service) Deliver(n Notification) error {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	if n.Icon == "" {
		n.Icon = iconhint.ForTitle(n.Title)
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- n:
		return nil
	default:
		s.publish("notify.dropped", DeliveryEvent{Key: n.Key, At: n.At, Error: ErrQueueFull.Error()})
		s.log.Warn("notification dropped, queue full", logx.String("key", n.Key))
		return ErrQueueFull
	}
}

func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) deliverOne(runCtx context.Context, n Notification) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sinks := s.sinks
	s.mu.Unlock()

	if err := lim.Wait(runCtx); err != nil {
		return
	}
	for _, sink := range sinks {
		err := s.sendWithRetry(runCtx, cfg, sink, n)
		item := HistoryItem{At: time.Now(), Key: n.Key, Title: n.Title, Sink: sink.Name()}
		if err != nil {
			item.Error = err.Error()
			s.log.Warn("notification delivery failed",
				logx.String("sink", sink.Name()), logx.String("key", n.Key), logx.Err(err))
			s.publish("notify.failed", DeliveryEvent{Key: n.Key, Sink: sink.Name(), At: item.At, Error: err.Error()})
		} else {
			s.publish("notify.sent", DeliveryEvent{Key: n.Key, Sink: sink.Name(), At: item.At})
		}
		s.appendHistory(cfg.HistorySize, item)
	}
}

func (s *Service) sendWithRetry(runCtx context.Context, cfg Config, sink Sink, n Notification) error {
	attempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(runCtx, 10*time.Second)
		err := sink.Send(callCtx, n)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-runCtx.Done():
			if !t.Stop() {
				<-t.C
			}
			return lastErr
		}
	}
	return lastErr
}

func (s *Service) appendHistory(max int, item HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, ev DeliveryEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

// retryDelay grows exponentially from RetryBase, capped at RetryMaxDelay,
// with jitter 0.7..1.3.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
