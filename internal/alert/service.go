package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	rtsup "cronus/internal/runtime/supervisor"
	logx "cronus/pkg/logx"
)

const deliverTimeout = 10 * time.Second

// Service is an async alert pipeline: queue + single worker + rate limit.
// A single worker keeps alerts in the order they were raised.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log        logx.Logger
	cfg        Config
	deliverers []Deliverer
	limiter    *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan Alert
	sup      *rtsup.Supervisor
	stopDone chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func New(cfg Config, log logx.Logger, deliverers ...Deliverer) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	return &Service{
		log:        log.With(logx.String("comp", "alert")),
		cfg:        cfg,
		deliverers: deliverers,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// FromConfig builds the service with every sink cfg enables. A missing
// desktop notifier is not an error; a bad telegram setup is.
func FromConfig(cfg Config, log logx.Logger) (*Service, error) {
	var ds []Deliverer
	if cfg.Log {
		ds = append(ds, NewLog(log))
	}
	if cfg.Desktop {
		if d, ok := NewDesktop(); ok {
			ds = append(ds, d)
		} else {
			log.Debug("no desktop notifier found")
		}
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		ds = append(ds, tg)
	}
	return New(cfg, log, ds...), nil
}

// Sinks lists the configured deliverer names.
func (s *Service) Sinks() []string {
	out := make([]string, 0, len(s.deliverers))
	for _, d := range s.deliverers {
		out = append(out, d.Name())
	}
	return out
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Alert, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// alert failures must never take the daemon down.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	sup.GoRestart("alert.worker", func(c context.Context) error {
		s.workerLoop(c, q)
		s.mu.Lock()
		stopping := s.stopDone != nil
		s.mu.Unlock()
		if stopping {
			return context.Canceled
		}
		if c.Err() != nil {
			return c.Err()
		}
		return errors.New("alert worker exited unexpectedly")
	})
}

// Stop stops intake and drains the queue best-effort until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.sup = nil
		s.stopDone = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
	if n := s.dropped.Load(); n > 0 {
		s.log.Warn("alerts dropped", logx.Uint64("count", n))
	}
}

// Notify queues msg for delivery and never blocks. It satisfies the
// scheduler's alert sink.
func (s *Service) Notify(msg string) {
	if err := s.Enqueue(Alert{At: time.Now(), Text: msg}); err != nil {
		s.log.Warn("alert not queued", logx.String("text", msg), logx.Err(err))
	}
}

func (s *Service) Enqueue(a Alert) error {
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
	case q <- a:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped counts alerts lost to a full queue.
func (s *Service) Dropped() uint64 { return s.dropped.Load() }

// Delivered counts alerts that reached at least one sink.
func (s *Service) Delivered() uint64 { return s.delivered.Load() }

func (s *Service) workerLoop(ctx context.Context, q <-chan Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-q:
			if !ok {
				return
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.deliver(ctx, a)
		}
	}
}

func (s *Service) deliver(ctx context.Context, a Alert) {
	ok := false
	for _, d := range s.deliverers {
		dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := d.Deliver(dctx, a)
		cancel()
		if err != nil {
			s.log.Warn("alert delivery failed", logx.String("sink", d.Name()), logx.Err(err))
			continue
		}
		ok = true
	}
	if ok {
		s.delivered.Add(1)
	}
}
