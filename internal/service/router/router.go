package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	applogger "Sentinel/pkg/logger"
)

// Config controls failover and circuit behavior.
type Config struct {
	Timeout          time.Duration // per-call budget against one adapter
	MaxAttempts      int           // attempts per adapter before failing over
	Backoff          time.Duration // delay between attempts on one adapter
	FailureThreshold int           // consecutive failures that open the circuit
	Cooldown         time.Duration // open-circuit duration before a probe
}

type sourceState struct {
	failures    int
	open        bool
	openedAt    time.Time
	probing     bool
	lastErr     string
	lastSuccess time.Time
	totalCalls  int64
	totalErrors int64
}

// Router fans requests across ranked adapters. The first adapter that
// answers wins; adapters with an open circuit are skipped until their
// cooldown elapses, after which a single probe call may pass through.
type Router struct {
	sources []repository.QuoteSource
	cfg     Config
	metrics repository.Metrics
	logger  *applogger.Logger

	mu     sync.Mutex
	states map[string]*sourceState
}

// New creates a router over ranked sources. Order is priority order.
func New(sources []repository.QuoteSource, cfg Config, m repository.Metrics, l *applogger.Logger) *Router {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	states := make(map[string]*sourceState, len(sources))
	for _, src := range sources {
		states[src.Name()] = &sourceState{}
	}
	return &Router{
		sources: sources,
		cfg:     cfg,
		metrics: m,
		logger:  l,
		states:  states,
	}
}

// execute walks the ranked adapters for one operation. ErrUnsupported is
// a soft skip that never touches health counters.
func execute[T any](ctx context.Context, r *Router, op string, call func(context.Context, repository.QuoteSource) (T, error)) (T, error) {
	var zero T
	last := make(map[string]error, len(r.sources))

	for _, src := range r.sources {
		name := src.Name()
		if !r.admit(name) {
			last[name] = errors.New("circuit open")
			continue
		}

		value, err := attemptCall(ctx, r, src, op, call)
		if err == nil {
			r.recordSuccess(name)
			return value, nil
		}
		if errors.Is(err, repository.ErrUnsupported) {
			r.settleProbe(name)
			continue
		}
		if ctx.Err() != nil {
			// the caller gave up; that is not evidence against the adapter
			r.settleProbe(name)
			return zero, ctx.Err()
		}

		r.recordFailure(name, err)
		last[name] = err
		r.logger.Warn("source failed, trying next",
			applogger.String("source", name),
			applogger.String("op", op),
			applogger.Error(err),
		)
	}

	return zero, &repository.ExhaustedError{Op: op, Last: last}
}

func attemptCall[T any](ctx context.Context, r *Router, src repository.QuoteSource, op string, call func(context.Context, repository.QuoteSource) (T, error)) (T, error) {
	var zero T
	var err error
	for i := 0; i < r.cfg.MaxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(r.cfg.Backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		start := time.Now()
		var value T
		value, err = call(callCtx, src)
		cancel()
		r.metrics.RecordFetch(src.Name(), op, err, time.Since(start))

		if err == nil {
			return value, nil
		}
		if errors.Is(err, repository.ErrUnsupported) {
			return zero, err
		}
	}
	return zero, err
}

// admit reports whether a call may go to the named source. When the
// cooldown on an open circuit has elapsed, exactly one caller is let
// through as the half-open probe.
func (r *Router) admit(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.states[name]
	if !st.open {
		return true
	}
	if time.Since(st.openedAt) < r.cfg.Cooldown {
		return false
	}
	if st.probing {
		return false
	}
	st.probing = true
	return true
}

func (r *Router) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.states[name]
	st.failures = 0
	st.lastErr = ""
	st.lastSuccess = time.Now()
	st.totalCalls++
	if st.open {
		st.open = false
		st.probing = false
		r.logger.Info("source circuit closed", applogger.String("source", name))
	}
	r.metrics.SetCircuitState(name, false)
}

func (r *Router) recordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.states[name]
	st.failures++
	st.lastErr = err.Error()
	st.totalCalls++
	st.totalErrors++

	if st.open {
		// failed probe: restart the cooldown
		st.openedAt = time.Now()
		st.probing = false
	} else if st.failures >= r.cfg.FailureThreshold {
		st.open = true
		st.openedAt = time.Now()
		st.probing = false
		r.logger.Warn("source circuit opened",
			applogger.String("source", name),
			applogger.Int("failures", st.failures),
		)
	}
	r.metrics.SetCircuitState(name, st.open)
}

// settleProbe releases the probe slot after a call that must not affect
// circuit state.
func (r *Router) settleProbe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[name].probing = false
}

// Health returns a snapshot of adapter health ordered by priority.
func (r *Router) Health() []repository.SourceHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.SourceHealth, 0, len(r.sources))
	for _, src := range r.sources {
		st := r.states[src.Name()]
		out = append(out, repository.SourceHealth{
			Name:        src.Name(),
			Failures:    st.failures,
			CircuitOpen: st.open,
			OpenedAt:    st.openedAt,
			LastError:   st.lastErr,
			LastSuccess: st.lastSuccess,
			TotalCalls:  st.totalCalls,
			TotalErrors: st.totalErrors,
		})
	}
	return out
}

func (r *Router) Quote(ctx context.Context, code string) (models.Quote, error) {
	return execute(ctx, r, "quote", func(ctx context.Context, s repository.QuoteSource) (models.Quote, error) {
		return s.Quote(ctx, code)
	})
}

func (r *Router) History(ctx context.Context, code string, days int) (models.HistoricalSeries, error) {
	return execute(ctx, r, "history", func(ctx context.Context, s repository.QuoteSource) (models.HistoricalSeries, error) {
		return s.History(ctx, code, days)
	})
}

func (r *Router) Breadth(ctx context.Context) (models.MarketBreadth, error) {
	return execute(ctx, r, "breadth", func(ctx context.Context, s repository.QuoteSource) (models.MarketBreadth, error) {
		return s.Breadth(ctx)
	})
}

func (r *Router) Flow(ctx context.Context) (models.MoneyFlow, error) {
	return execute(ctx, r, "flow", func(ctx context.Context, s repository.QuoteSource) (models.MoneyFlow, error) {
		return s.Flow(ctx)
	})
}

func (r *Router) Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error) {
	return execute(ctx, r, "indices", func(ctx context.Context, s repository.QuoteSource) ([]models.IndexQuote, error) {
		return s.Indices(ctx, codes)
	})
}

func (r *Router) News(ctx context.Context, code string, limit int) ([]string, error) {
	return execute(ctx, r, "news", func(ctx context.Context, s repository.QuoteSource) ([]string, error) {
		return s.News(ctx, code, limit)
	})
}

func (r *Router) MacroNews(ctx context.Context, limit int) ([]string, error) {
	return execute(ctx, r, "macro_news", func(ctx context.Context, s repository.QuoteSource) ([]string, error) {
		return s.MacroNews(ctx, limit)
	})
}
