package world

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// job is one dispatched region pass.
type job struct {
	region *Region
	ctx    context.Context
	once   sync.Once
	done   func()
}

// finish reports the job complete to the dispatching cycle (exactly once).
// Called by the worker on return, or by the watchdog when the worker is abandoned.
func (j *job) finish() {
	j.once.Do(j.done)
}

// runState is the in-flight pass of a worker, observed by the watchdog.
type runState struct {
	job       *job
	start     time.Time
	cancel    context.CancelCauseFunc
	signalled atomic.Bool // stuck cause delivered
	abandoned atomic.Bool // worker replaced
}

type worker struct {
	id        int
	pool      *workerPool
	state     atomic.Pointer[runState]
	abandoned atomic.Bool
	slot      sync.Once
}

// releaseSlot frees the worker's WaitGroup slot (once: on exit or on abandonment).
func (w *worker) releaseSlot() {
	w.slot.Do(w.pool.wg.Done)
}

func (w *worker) loop() {
	defer w.releaseSlot()

	for {
		select {
		case <-w.pool.quit:
			return
		case j := <-w.pool.jobs:
			w.execute(j)
		}

		if w.abandoned.Load() {
			slog.Info("abandoned tick worker returned, exiting", "worker", w.id)
			return
		}
	}
}

// execute runs one region pass. This is the outermost tick loop: it recovers the
// stuck abort and any other panic so the worker keeps serving future cycles.
func (w *worker) execute(j *job) {
	runCtx, cancel := context.WithCancelCause(j.ctx)
	st := &runState{job: j, start: time.Now(), cancel: cancel}
	w.state.Store(st)

	defer func() {
		rec := recover()

		w.state.CompareAndSwap(st, nil)
		cancel(nil)
		j.region.dispatched.Store(false)
		j.finish()

		if rec == nil {
			return
		}
		if se, ok := rec.(*StuckError); ok {
			w.pool.counters.stuckAborts.Add(1)
			slog.Error("region tick stuck, pass aborted",
				"worker", w.id,
				"region", se.Region,
				"object", se.MemberID,
				"location", se.MemberLoc,
				"elapsed", time.Since(st.start))
			return
		}
		slog.Error("panic in region tick",
			"worker", w.id,
			"region", j.region.String(),
			"panic", rec,
			"stack", string(debug.Stack()))
	}()

	j.region.Run(runCtx)
}

// workerPool is a fixed-size set of tick workers pulling region jobs from a shared queue.
// A worker abandoned by the watchdog is replaced so the pool size stays constant.
type workerPool struct {
	jobs chan *job
	quit chan struct{}
	wg   sync.WaitGroup

	// sendMu: submit holds it shared, close exclusively, so no job lands in jobs
	// after close has drained it.
	sendMu sync.RWMutex

	mu      sync.Mutex
	workers []*worker
	nextID  int
	closed  bool

	counters *poolCounters
}

// poolCounters outlive a single pool.
type poolCounters struct {
	stuckAborts atomic.Uint64
	respawned   atomic.Uint64
}

func newWorkerPool(size int, counters *poolCounters) *workerPool {
	if size < 1 {
		size = 1
	}
	if counters == nil {
		counters = &poolCounters{}
	}
	p := &workerPool{
		jobs:     make(chan *job, size),
		quit:     make(chan struct{}),
		counters: counters,
	}

	p.mu.Lock()
	for range size {
		p.spawnLocked()
	}
	p.mu.Unlock()

	slog.Info("tick worker pool started", "workers", size)
	return p
}

func (p *workerPool) spawnLocked() {
	w := &worker{id: p.nextID, pool: p}
	p.nextID++
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go w.loop()
}

// submit queues a job. Returns false if ctx is done or the pool is closed.
func (p *workerPool) submit(ctx context.Context, j *job) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	select {
	case <-p.quit:
		return false
	default:
	}

	select {
	case p.jobs <- j:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *workerPool) isClosed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// snapshot returns current (non-abandoned) workers.
func (p *workerPool) snapshot() []*worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*worker(nil), p.workers...)
}

// Size returns number of live workers.
func (p *workerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// abandon replaces w with a fresh worker. The abandoned goroutine exits after its
// current pass returns (if ever).
func (p *workerPool) abandon(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || w.abandoned.Load() {
		return
	}
	for i, cur := range p.workers {
		if cur == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	w.abandoned.Store(true)
	w.releaseSlot()
	p.spawnLocked()
	p.counters.respawned.Add(1)
}

// close stops workers after their current pass. Abandoned workers are not waited for.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.sendMu.Lock()
	close(p.quit)
	p.sendMu.Unlock()

	p.wg.Wait()

	// Release cycles waiting on jobs that no worker picked up.
	for {
		select {
		case j := <-p.jobs:
			j.region.dispatched.Store(false)
			j.finish()
		default:
			slog.Info("tick worker pool stopped")
			return
		}
	}
}
