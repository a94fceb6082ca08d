package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Writer persists reading positions off the caller's path. Submissions are
// coalesced per document so only the latest record is written, and a
// document is never written by two workers at once.
type Writer struct {
	store   PositionStore
	log     *slog.Logger
	stats   *WriteStats
	workers int
	timeout time.Duration
	backoff func(attempt int) time.Duration

	mu       sync.Mutex
	pending  map[string]Record
	order    []string
	inflight map[string]bool
	stopped  bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWriter creates a writer. Call Start before submitting.
func NewWriter(store PositionStore, workers int, timeout time.Duration, log *slog.Logger) *Writer {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Writer{
		store:    store,
		log:      log,
		stats:    NewWriteStats(time.Hour),
		workers:  workers,
		timeout:  timeout,
		backoff:  Backoff,
		pending:  make(map[string]Record),
		inflight: make(map[string]bool),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches worker goroutines. Cancelling ctx abandons pending writes;
// Stop flushes them.
func (w *Writer) Start(ctx context.Context) {
	for range w.workers {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-w.done:
					w.drain(context.WithoutCancel(ctx))
					return
				case <-w.kick:
					w.drain(ctx)
				}
			}
		}()
	}
}

// Submit queues rec, replacing any unwritten record for the same document.
// It never blocks.
func (w *Writer) Submit(rec Record) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		w.log.Warn("position writer stopped, dropping record", "doc_id", rec.DocID)
		return
	}
	if _, ok := w.pending[rec.DocID]; !ok {
		w.order = append(w.order, rec.DocID)
	}
	w.pending[rec.DocID] = rec
	w.mu.Unlock()

	w.wake()
}

// Stop writes everything still pending, then waits for the workers.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
}

// Pending returns the number of records waiting to be written.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns write latency and failure counters.
func (w *Writer) Stats() StatsSnapshot {
	snap := w.stats.Snapshot()
	snap.Pending = w.Pending()
	return snap
}

func (w *Writer) wake() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// drain writes records until none is eligible.
func (w *Writer) drain(ctx context.Context) {
	for {
		rec, ok := w.next()
		if !ok {
			return
		}
		w.save(ctx, rec)

		w.mu.Lock()
		delete(w.inflight, rec.DocID)
		_, again := w.pending[rec.DocID]
		w.mu.Unlock()
		if again {
			w.wake()
		}
	}
}

// next pops the oldest pending record whose document is not being written.
func (w *Writer) next() (Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, id := range w.order {
		if w.inflight[id] {
			continue
		}
		rec := w.pending[id]
		delete(w.pending, id)
		w.order = append(w.order[:i:i], w.order[i+1:]...)
		w.inflight[id] = true
		return rec, true
	}
	return Record{}, false
}

func (w *Writer) save(ctx context.Context, rec Record) {
	log := w.log.With("doc_id", rec.DocID, "position", rec.Position)
	for attempt := 0; ; attempt++ {
		start := time.Now()
		writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.store.SavePosition(writeCtx, rec)
		cancel()
		if err == nil {
			w.stats.Record(time.Since(start).Milliseconds())
			return
		}
		if !IsRetryable(err) || attempt >= MaxRetries {
			w.stats.RecordFailure()
			log.Error("persist position failed", "attempt", attempt, "error", err)
			return
		}
		w.stats.RecordRetry()
		log.Warn("retryable persist error", "attempt", attempt, "error", err)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			w.stats.RecordFailure()
			log.Error("persist position abandoned", "error", ctx.Err())
			return
		}
	}
}
