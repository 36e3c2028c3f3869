package library

import (
	"context"
	"time"

	"github.com/zsiec/slomo/internal/capture"
	"github.com/zsiec/slomo/internal/logger"
	"github.com/zsiec/slomo/internal/metrics"
)

const defaultPutTimeout = 5 * time.Second

// Cataloguer turns capture events into index entries.
type Cataloguer struct {
	index      Index
	logger     logger.Logger
	putTimeout time.Duration
}

func NewCataloguer(index Index, log logger.Logger) *Cataloguer {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Cataloguer{
		index:      index,
		logger:     log.WithField("component", "cataloguer"),
		putTimeout: defaultPutTimeout,
	}
}

// Handle indexes the recording carried by a RecordingFinished event and
// ignores every other event. It returns the stored entry, or nil when the
// event carried nothing to store.
func (c *Cataloguer) Handle(ctx context.Context, ev capture.Event) (*Recording, error) {
	if ev.Type != capture.EventRecordingFinished || ev.Result == nil {
		return nil, nil
	}
	res := ev.Result
	log := c.logger.WithFields(map[string]interface{}{
		"session_id": res.SessionID,
		"path":       res.Path,
	})

	if res.Frames == 0 && res.Err != nil {
		log.WithError(res.Err).Warn("Recording failed before any frame was written, not indexing")
		return nil, nil
	}

	rec := FromResult(res)
	putCtx, cancel := context.WithTimeout(ctx, c.putTimeout)
	defer cancel()

	err := c.index.Put(putCtx, rec)
	metrics.IndexOperation("put", err)
	if err != nil {
		log.WithError(err).Error("Failed to index recording")
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"frames":     rec.Frames,
		"dropped":    rec.Dropped,
		"frame_rate": rec.FrameRate.String(),
		"status":     string(rec.Status),
	}).Info("Recording catalogued")
	return rec, nil
}

// Run handles events until the channel closes or ctx is done.
func (c *Cataloguer) Run(ctx context.Context, events <-chan capture.Event) error {
	metrics.GoroutineStarted("cataloguer")
	defer metrics.GoroutineStopped("cataloguer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// failures are logged by Handle; keep consuming
			_, _ = c.Handle(ctx, ev)
		}
	}
}
