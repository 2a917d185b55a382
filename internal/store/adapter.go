package store

import (
	"context"
	"time"

	"deckgraph/internal/model"
	"deckgraph/pkg/config"
	apperrors "deckgraph/pkg/errors"
	"go.uber.org/zap"
)

// WriteState is the per-operation tagged state for acknowledgement-based
// writes. Expiry of the write deadline is logical completion, not failure:
// local data is trusted over store silence.
type WriteState int

const (
	WriteIdle WriteState = iota
	WritePending
	WriteAcked
	WriteTimedOutAssumedOk
	WriteFailed
)

// String returns the state name for logs and reports.
func (s WriteState) String() string {
	switch s {
	case WriteIdle:
		return "idle"
	case WritePending:
		return "pending"
	case WriteAcked:
		return "acked"
	case WriteTimedOutAssumedOk:
		return "timed_out_assumed_ok"
	case WriteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Confirmed reports whether the store positively acknowledged the write.
// Audit and repair count only confirmed writes; creation paths accept
// TimedOutAssumedOk as success too.
func (s WriteState) Confirmed() bool {
	return s == WriteAcked
}

// Ok reports whether the write counts as success under the optimistic
// timeout policy.
func (s WriteState) Ok() bool {
	return s == WriteAcked || s == WriteTimedOutAssumedOk
}

// GetResult is the outcome of a deadline-bound read.
type GetResult struct {
	Value    Record
	Found    bool
	TimedOut bool // replica stayed silent; absence was assumed
}

// PutResult is the outcome of a deadline-bound write.
type PutResult struct {
	State WriteState
	Err   error
}

// Adapter wraps the raw store's callback primitives into results with
// deadlines. Every call degrades to "continue with best available local
// copy" rather than blocking: a silent get is treated as absent, a silent
// put as landed.
type Adapter struct {
	store  Store
	log    *zap.Logger
	timing config.Timing
}

// NewAdapter wraps a store handle. A nil store is tolerated; operations
// short-circuit to safe empty results.
func NewAdapter(s Store, timing config.Timing, log *zap.Logger) *Adapter {
	return &Adapter{store: s, log: log, timing: timing}
}

// Timing exposes the adapter's configured waits to the layers above it.
func (a *Adapter) Timing() config.Timing {
	return a.timing
}

// Available reports whether a store handle is configured.
func (a *Adapter) Available() bool {
	return a != nil && a.store != nil
}

// Get resolves a read within the check timeout. Tombstoned records read as
// absent. When the replica does not answer in time the result is
// "assumed absent" with TimedOut set, which is exactly what creation paths
// want: no answer means proceed to create.
func (a *Adapter) Get(ctx context.Context, path string) GetResult {
	return a.GetWithin(ctx, path, a.timing.CheckTimeout)
}

// GetWithin is Get with an explicit deadline.
func (a *Adapter) GetWithin(ctx context.Context, path string, timeout time.Duration) GetResult {
	if !a.Available() {
		return GetResult{}
	}

	type answer struct {
		value Record
		ok    bool
	}
	ch := make(chan answer, 1)
	a.store.Get(path, func(value Record, ok bool) {
		select {
		case ch <- answer{value: value, ok: ok}:
		default:
		}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ans := <-ch:
		if !ans.ok || model.IsTombstone(ans.value) {
			return GetResult{}
		}
		return GetResult{Value: ans.value, Found: true}
	case <-timer.C:
		a.log.Debug("get timed out, assuming absent",
			zap.String("path", path),
			zap.Duration("timeout", timeout),
		)
		return GetResult{TimedOut: true}
	case <-ctx.Done():
		return GetResult{TimedOut: true}
	}
}

// Put merges value into the record at path and waits for the ack up to the
// write timeout. Silence past the deadline returns TimedOutAssumedOk.
func (a *Adapter) Put(ctx context.Context, path string, value Record) PutResult {
	if !a.Available() {
		return PutResult{State: WriteFailed, Err: apperrors.ErrStoreUnavailable}
	}

	ch := make(chan error, 1)
	a.store.Put(path, value, func(err error) {
		select {
		case ch <- err:
		default:
		}
	})

	timer := time.NewTimer(a.timing.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		if err != nil {
			return PutResult{State: WriteFailed, Err: err}
		}
		return PutResult{State: WriteAcked}
	case <-timer.C:
		a.log.Warn("write not acknowledged in time, assuming success",
			zap.String("path", path),
			zap.Duration("timeout", a.timing.WriteTimeout),
		)
		return PutResult{
			State: WriteTimedOutAssumedOk,
			Err:   apperrors.NewWriteTimeout(path, a.timing.WriteTimeout),
		}
	case <-ctx.Done():
		return PutResult{
			State: WriteTimedOutAssumedOk,
			Err:   apperrors.NewContextCancelled("put "+path, ctx.Err()),
		}
	}
}

// PutRetry is Put with the fixed retry budget and linear backoff used on
// creation paths. Only explicit rejections are retried: a timed-out write
// already counts as success, and re-issuing it would just add queue
// pressure. Exhausting the budget is a true, reported failure.
func (a *Adapter) PutRetry(ctx context.Context, path string, value Record) PutResult {
	attempts := a.timing.RetryLimit
	if attempts < 1 {
		attempts = 1
	}

	var last PutResult
	for attempt := 1; attempt <= attempts; attempt++ {
		last = a.Put(ctx, path, value)
		if last.State != WriteFailed {
			return last
		}
		if last.Err == apperrors.ErrStoreUnavailable {
			return last
		}
		a.log.Warn("write rejected, will retry",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(last.Err),
		)
		if attempt < attempts {
			if !Sleep(ctx, a.timing.RetryBackoff*time.Duration(attempt)) {
				break
			}
		}
	}
	return PutResult{
		State: WriteFailed,
		Err:   apperrors.NewWriteRejected(path, attempts, last.Err),
	}
}

// Delete writes a tombstone at the path. There is no hard delete; concurrent
// readers may observe either side of the tombstone.
func (a *Adapter) Delete(ctx context.Context, path, deletedBy string) PutResult {
	return a.Put(ctx, path, model.TombstoneRecord(deletedBy))
}

// Collect materializes whatever a prefix subscription observes within the
// collection window. The partial result at window close is accepted as
// final: this is a bounded-wait snapshot, not a guaranteed-complete read.
func (a *Adapter) Collect(ctx context.Context, prefix string) map[string]Record {
	return a.CollectWithin(ctx, prefix, a.timing.CollectWindow)
}

// CollectWithin is Collect with an explicit window.
func (a *Adapter) CollectWithin(ctx context.Context, prefix string, window time.Duration) map[string]Record {
	out := make(map[string]Record)
	if !a.Available() {
		return out
	}

	type observed struct {
		key   string
		value Record
	}
	ch := make(chan observed, 64)
	stop := a.store.Subscribe(prefix, func(key string, value Record) {
		select {
		case ch <- observed{key: key, value: value}:
		default:
			// Window overflow: drop rather than block the store's push path.
		}
	})
	defer stop()

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case obs := <-ch:
			if model.IsTombstone(obs.value) {
				delete(out, obs.key)
				continue
			}
			out[obs.key] = obs.value
		case <-timer.C:
			return out
		case <-ctx.Done():
			return out
		}
	}
}

// Sleep waits for d unless the context ends first. Returns false when the
// wait was cut short.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
