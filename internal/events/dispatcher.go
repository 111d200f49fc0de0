package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/firezone/firezone-sub013/internal/metrics"
)

// Source produces the ordered change stream and tracks the consumed
// position. Commit must persist the cursor so a restart resumes at the
// first unacknowledged event.
type Source interface {
	// Cursor returns the sequence number of the last committed event.
	Cursor(ctx context.Context) (uint64, error)
	// Fetch returns up to limit events with Seq greater than afterSeq, in
	// ascending Seq order.
	Fetch(ctx context.Context, afterSeq uint64, limit int) ([]Event, error)
	// Commit persists the cursor.
	Commit(ctx context.Context, seq uint64) error
}

// Dispatcher delivers the change stream to entity handlers, strictly one
// event at a time in commit order. Handlers resolve their own data
// inconsistencies as no-ops; an error from a handler means the store is
// unavailable, so the cursor is not advanced and the event is retried.
type Dispatcher struct {
	source       Source
	handlers     map[string]Handler
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewDispatcher(source Source, handlers []Handler, pollInterval time.Duration, logger zerolog.Logger) *Dispatcher {
	registry := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		registry[h.Table()] = h
	}
	return &Dispatcher{
		source:       source,
		handlers:     registry,
		pollInterval: pollInterval,
		batchSize:    256,
		logger:       logger.With().Str("component", "change-dispatcher").Logger(),
	}
}

// Run consumes the stream until the context ends. Delivery is
// at-least-once: the cursor advances only after every event in a batch
// has been handled.
func (d *Dispatcher) Run(ctx context.Context) error {
	cursor, err := d.source.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("load change cursor: %w", err)
	}
	d.logger.Info().Uint64("cursor", cursor).Msg("consuming change stream")

	for {
		batch, err := d.source.Fetch(ctx, cursor, d.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error().Err(err).Msg("fetch change batch failed")
			if err := d.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if len(batch) == 0 {
			if err := d.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		advanced, err := d.dispatchBatch(ctx, batch)
		if advanced > cursor {
			cursor = advanced
			if commitErr := d.source.Commit(ctx, cursor); commitErr != nil {
				return fmt.Errorf("commit change cursor %d: %w", cursor, commitErr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Store unavailable mid-batch; retry from the committed cursor.
			d.logger.Error().Err(err).Uint64("cursor", cursor).Msg("handler failed, retrying from cursor")
			if err := d.sleep(ctx); err != nil {
				return err
			}
		}
	}
}

// dispatchBatch delivers events in order and returns the Seq of the last
// successfully handled event.
func (d *Dispatcher) dispatchBatch(ctx context.Context, batch []Event) (uint64, error) {
	var done uint64
	for i := range batch {
		if err := d.Dispatch(ctx, &batch[i]); err != nil {
			return done, err
		}
		done = batch[i].Seq
	}
	return done, nil
}

// Dispatch routes one event to its handler. Events for tables without a
// registered handler are logged and skipped; they must never block the
// stream.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	handler, ok := d.handlers[ev.Table]
	if !ok {
		d.logger.Warn().Str("table", ev.Table).Uint64("seq", ev.Seq).Msg("no handler registered for table")
		metrics.EventsUnhandled.WithLabelValues(ev.Table).Inc()
		return nil
	}

	var err error
	switch ev.Op {
	case OpInsert:
		err = handler.OnInsert(ctx, ev.Seq, ev.New)
	case OpUpdate:
		err = handler.OnUpdate(ctx, ev.Seq, ev.Old, ev.New)
	case OpDelete:
		err = handler.OnDelete(ctx, ev.Seq, ev.Old)
	default:
		d.logger.Warn().Str("op", string(ev.Op)).Uint64("seq", ev.Seq).Msg("unknown change operation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("handle %s %s (seq %d): %w", ev.Op, ev.Table, ev.Seq, err)
	}

	metrics.EventsDispatched.WithLabelValues(ev.Table, string(ev.Op)).Inc()
	return nil
}

func (d *Dispatcher) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.pollInterval):
		return nil
	}
}
