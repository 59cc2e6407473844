// Package audit is the optional, strictly observational event sink for
// rule `emit` actions and terminal request outcomes. It is never on the
// response-critical path: a dropped or slow insert never fails or delays a
// request (spec §4.F's note that emit is "strictly observational").
// Batches and writes over github.com/ClickHouse/clickhouse-go/v2 through a
// bounded channel drained by a single background goroutine.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// Event is one row written to the audit table: either a rule's `emit`
// action or the pipeline's own terminal request-outcome notice (event name
// "request.outcome").
type Event struct {
	Timestamp time.Time
	Name      string
	Payload   any
}

// Config configures the ClickHouse sink.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string // defaults to "sandbox_audit_events"

	// BatchSize flushes once this many events have queued. Defaults to 200.
	BatchSize int
	// FlushInterval flushes on a timer even if BatchSize hasn't been
	// reached. Defaults to 2s.
	FlushInterval time.Duration
	// QueueSize bounds the in-memory backlog; once full, new events are
	// dropped and counted rather than blocking the caller.
	QueueSize int
}

// Sink batches Events and flushes them to ClickHouse from a single
// background goroutine, satisfying internal/rules.AuditSink by structural
// typing (Emit(ctx, event, payload)).
type Sink struct {
	conn   clickhouse.Conn
	table  string
	logger *zap.Logger

	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	dropped atomic.Uint64
}

// New opens a ClickHouse connection and starts the background flush loop.
// The returned Sink's Close must be called to drain the final batch.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.Table == "" {
		cfg.Table = "sandbox_audit_events"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	s := &Sink{
		conn:    conn,
		table:   cfg.Table,
		logger:  logger,
		events:  make(chan Event, cfg.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run(cfg.BatchSize, cfg.FlushInterval)
	return s, nil
}

// Emit queues an event, satisfying internal/rules.AuditSink. Never blocks:
// a full queue drops the event and increments a counter logged after the
// next flush of a non-empty batch.
func (s *Sink) Emit(ctx context.Context, event string, payload any) {
	s.enqueue(Event{Timestamp: time.Now(), Name: event, Payload: payload})
}

func (s *Sink) enqueue(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *Sink) run(batchSize int, flushInterval time.Duration) {
	defer close(s.stopped)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchSize)
	flushNow := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.write(batch); err != nil && s.logger != nil {
			s.logger.Warn("audit: failed to flush batch", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if dropped := s.dropped.Swap(0); dropped > 0 && s.logger != nil {
			s.logger.Warn("audit: dropped events, queue was full", zap.Uint64("count", dropped))
		}
	}

	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flushNow()
			}
		case <-ticker.C:
			flushNow()
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					flushNow()
					return
				}
			}
		}
	}
}

func (s *Sink) write(batch []Event) error {
	ctx := context.Background()
	b, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table+" (timestamp, event, payload)")
	if err != nil {
		return err
	}
	for _, ev := range batch {
		if err := b.Append(ev.Timestamp, ev.Name, toJSONString(ev.Payload)); err != nil {
			return err
		}
	}
	return b.Send()
}

// Close drains the queued events, flushes a final batch, and closes the
// connection.
func (s *Sink) Close() error {
	close(s.done)
	<-s.stopped
	return s.conn.Close()
}

func toJSONString(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
