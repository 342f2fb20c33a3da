package geo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"addressbook/internal/logger"
	"addressbook/internal/models"
)

const (
	defaultLimit   = 5
	defaultTimeout = 5 * time.Second
)

// ErrConsumed is yielded when a Candidates sequence is iterated twice.
var ErrConsumed = errors.New("candidate sequence already consumed")

type Options struct {
	Limit   int
	Timeout time.Duration
	Metrics *Metrics
	Logger  *zap.Logger
}

// Resolver wraps a Provider with timeouts, error classification and
// coalescing of identical reverse lookups.
type Resolver struct {
	provider Provider
	limit    int
	timeout  time.Duration
	metrics  *Metrics
	log      *zap.Logger
	reverse  singleflight.Group
}

func NewResolver(p Provider, opts Options) *Resolver {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		provider: p,
		limit:    opts.Limit,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		log:      opts.Logger.Named("geo"),
	}
}

// Candidates is a lazy, finite, single-use sequence of ranked search results.
// The provider is called when iteration starts.
type Candidates struct {
	fetch func() ([]Candidate, error)
	used  atomic.Bool
}

// All yields the candidates in rank order. A provider failure is yielded once
// as an error; iterating a second time yields ErrConsumed.
func (c *Candidates) All() iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if !c.used.CompareAndSwap(false, true) {
			yield(Candidate{}, ErrConsumed)
			return
		}
		list, err := c.fetch()
		if err != nil {
			yield(Candidate{}, err)
			return
		}
		for _, cand := range list {
			if !yield(cand, nil) {
				return
			}
		}
	}
}

// Collect drains the sequence into a slice.
func (c *Candidates) Collect() ([]Candidate, error) {
	out := make([]Candidate, 0)
	for cand, err := range c.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

// Search prepares a forward lookup for query. A blank query yields nothing.
func (r *Resolver) Search(ctx context.Context, query string) *Candidates {
	query = strings.TrimSpace(query)
	return &Candidates{fetch: func() ([]Candidate, error) {
		if query == "" {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		list, err := r.provider.Search(ctx, query, r.limit)
		if err != nil {
			return nil, r.classify(ctx, "search", err)
		}
		r.metrics.observe("search", outcome(len(list) > 0))
		return list, nil
	}}
}

// Forward resolves text to its top-ranked candidate, failing with
// models.ErrUnresolvable when nothing matches.
func (r *Resolver) Forward(ctx context.Context, text string) (Candidate, error) {
	for cand, err := range r.Search(ctx, text).All() {
		if err != nil {
			return Candidate{}, err
		}
		return cand, nil
	}
	return Candidate{}, models.ErrUnresolvable
}

// Reverse resolves a point to its canonical address text. Concurrent lookups
// of the same point share one provider call; each caller still stops waiting
// when its own context ends.
func (r *Resolver) Reverse(ctx context.Context, at models.Coordinates) (Candidate, error) {
	if err := at.Validate(); err != nil {
		return Candidate{}, err
	}

	ch := r.reverse.DoChan(at.String(), func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		text, err := r.provider.Reverse(callCtx, at)
		if err != nil {
			return nil, r.classify(callCtx, "reverse", err)
		}
		r.metrics.observe("reverse", "ok")
		return Candidate{Text: text, Coordinates: at}, nil
	})

	select {
	case <-ctx.Done():
		return Candidate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Candidate{}, res.Err
		}
		return res.Val.(Candidate), nil
	}
}

// classify maps provider failures onto the error taxonomy.
func (r *Resolver) classify(ctx context.Context, op string, err error) error {
	lg := logger.WithContext(ctx, r.log)
	switch {
	case errors.Is(err, models.ErrUnresolvable):
		r.metrics.observe(op, "unresolvable")
		return err
	case errors.Is(err, context.Canceled):
		r.metrics.observe(op, "canceled")
		return err
	default:
		r.metrics.observe(op, "error")
		lg.Warn("geocoding provider failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
}

func outcome(found bool) string {
	if found {
		return "ok"
	}
	return "empty"
}
