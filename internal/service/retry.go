package service

import (
	"context"
	"strings"
	"time"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/segment"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/translator"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

const (
	// defaultRetryCeiling is the wall-clock limit for retrying one segment.
	defaultRetryCeiling = time.Hour
	// maxEmptyRetries caps how often an empty or unusable reply is retried.
	maxEmptyRetries = 1
	// retryPause is the wait between attempts on the same segment.
	retryPause = time.Second
)

// interruptibleSleep waits for d or until the context is cancelled,
// returning the context error in the latter case.
func interruptibleSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// processSegment drives one segment through call, validation and retries
// until it succeeds, exhausts its retry budget, or the run is stopped.
// Failed units land in the failure ledger; the returned map holds accepted
// translations keyed by unit number.
func (t *DocumentTranslator) processSegment(ctx context.Context, seg segment.Segment, lastTry bool) (map[int]string, error) {
	start := time.Now()
	attempt := 0
	emptyCount := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, WrapError(err, ErrStopped, "translation stopped")
		}
		attempt++

		req := translator.Request{
			SegmentJSON:     seg.Payload,
			PreviousContent: t.state.PreviousSnapshot(),
			Terms:           seg.Terms,
		}

		resp, err := t.translator.Translate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, WrapError(ctx.Err(), ErrStopped, "translation stopped")
			}
			remaining := t.retryCeiling - time.Since(start)
			if remaining <= 0 {
				log.Error("Segment translation failed after %v (%d attempts): %v", t.retryCeiling, attempt, err)
				t.markSegmentFailed(seg)
				return nil, nil
			}
			log.Warn("Segment translation failed (attempt %d): %v", attempt, err)
			if err := interruptibleSleep(ctx, min(retryPause, remaining)); err != nil {
				return nil, WrapError(err, ErrStopped, "translation stopped")
			}
			continue
		}

		t.state.AddUsage(resp.Usage)

		if strings.TrimSpace(resp.Text) == "" {
			emptyCount++
			if emptyCount > maxEmptyRetries {
				log.Error("Segment returned empty result %d times", maxEmptyRetries)
				t.markSegmentFailed(seg)
				return nil, nil
			}
			log.Warn("Segment returned empty result (attempt %d/%d)", emptyCount, maxEmptyRetries)
			if err := interruptibleSleep(ctx, retryPause); err != nil {
				return nil, WrapError(err, ErrStopped, "translation stopped")
			}
			continue
		}

		t.ioMu.Lock()
		results := t.checker.ProcessResults(seg.Payload, resp.Text, lastTry)
		if len(results) > 0 {
			t.state.UpdatePrevious(results, t.counter)
		}
		t.ioMu.Unlock()

		if len(results) > 0 {
			return results, nil
		}

		emptyCount++
		if emptyCount > maxEmptyRetries {
			log.Warn("Failed to process translation results %d times", maxEmptyRetries)
			return nil, nil
		}
		log.Warn("Failed to process translation results")
		if err := interruptibleSleep(ctx, retryPause); err != nil {
			return nil, WrapError(err, ErrStopped, "translation stopped")
		}
	}
}

// markSegmentFailed records every unit of the segment in the failure ledger.
func (t *DocumentTranslator) markSegmentFailed(seg segment.Segment) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()
	t.checker.MarkSegmentFailed(seg.Payload)
}
