package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/types"
)

// MaxBatchSize is the hard cap on records per submit call. Larger
// batches are rejected outright before any write.
const MaxBatchSize = 500

var (
	// ErrBatchMissing reports a submit call without a record list.
	ErrBatchMissing = errors.New("events must be a list")
	// ErrBatchTooLarge reports a batch over MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d records", MaxBatchSize)
)

// IsBatchError reports whether err is a structural batch rejection, as
// opposed to a store failure.
func IsBatchError(err error) bool {
	return errors.Is(err, ErrBatchMissing) || errors.Is(err, ErrBatchTooLarge)
}

type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// Pipeline turns loosely-validated producer batches into durable
// session/event state. One submit call is one store transaction: record
// validation failures skip the record, only a store failure aborts.
type Pipeline struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

func NewPipeline(st store.Store, logger *log.Logger) *Pipeline {
	if st == nil {
		panic("ingest: store is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		store:  st,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Pipeline) Submit(ctx context.Context, records []types.EventRecord) (Result, error) {
	if records == nil {
		return Result{}, ErrBatchMissing
	}
	if len(records) > MaxBatchSize {
		return Result{}, ErrBatchTooLarge
	}

	now := p.now()
	skipped := 0
	batch := make([]normalized, 0, len(records))
	for i, rec := range records {
		norm, err := normalizeRecord(rec, now)
		if err != nil {
			p.logger.Printf("skipping record %d: %v", i, err)
			skipped++
			continue
		}
		batch = append(batch, norm)
	}

	processed := 0
	err := p.store.Ingest(ctx, func(tx store.Tx) error {
		for _, norm := range batch {
			switch norm.kind {
			case types.EventTypeSessionStart:
				if err := tx.EnsureSession(norm.session); err != nil {
					return err
				}
				processed++
			case types.EventTypeSessionEnd:
				if err := tx.EnsureSession(norm.session); err != nil {
					return err
				}
				if err := tx.EndSession(norm.end); err != nil {
					return err
				}
				processed++
			default:
				if err := tx.EnsureSession(norm.session); err != nil {
					return err
				}
				inserted, err := tx.InsertEvent(norm.event)
				if err != nil {
					return err
				}
				if !inserted {
					// Duplicate delivery: tokens were counted the first
					// time, never again.
					skipped++
					continue
				}
				if err := tx.AddSessionTokens(norm.event.SessionID, norm.event.TokensIn, norm.event.TokensOut); err != nil {
					return err
				}
				processed++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ingest batch: %w", err)
	}

	return Result{Processed: processed, Skipped: skipped}, nil
}
