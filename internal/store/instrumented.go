package store

import (
	"context"
	"time"
)

// Recorder receives one observation per store operation. internal/metrics'
// Collector satisfies this without internal/store importing it back.
type Recorder interface {
	RecordStoreOp(backend, op, outcome string, duration time.Duration)
}

// Instrumented decorates a Store with Recorder observations, tagged with a
// caller-chosen backend label ("memory", "file", "redis").
type Instrumented struct {
	inner    Store
	backend  string
	recorder Recorder
}

// NewInstrumented wraps inner so every operation reports to recorder.
func NewInstrumented(inner Store, backend string, recorder Recorder) *Instrumented {
	return &Instrumented{inner: inner, backend: backend, recorder: recorder}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.recorder.RecordStoreOp(i.backend, op, outcome, time.Since(start))
}

func (i *Instrumented) Get(ctx context.Context, key string) (*Entry, bool, error) {
	start := time.Now()
	entry, ok, err := i.inner.Get(ctx, key)
	outcome := "hit"
	if !ok {
		outcome = "miss"
	}
	if err != nil {
		outcome = "error"
	}
	i.recorder.RecordStoreOp(i.backend, "get", outcome, time.Since(start))
	return entry, ok, err
}

func (i *Instrumented) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	start := time.Now()
	err := i.inner.Set(ctx, key, value, ttl)
	i.observe("set", start, err)
	return err
}

func (i *Instrumented) Del(ctx context.Context, key string) error {
	start := time.Now()
	err := i.inner.Del(ctx, key)
	i.observe("del", start, err)
	return err
}

func (i *Instrumented) Increment(ctx context.Context, key string, by float64) (float64, error) {
	start := time.Now()
	v, err := i.inner.Increment(ctx, key, by)
	i.observe("increment", start, err)
	return v, err
}

func (i *Instrumented) Patch(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := i.inner.Patch(ctx, key, value)
	i.observe("patch", start, err)
	return err
}

func (i *Instrumented) Close() error { return i.inner.Close() }

var _ Store = (*Instrumented)(nil)
