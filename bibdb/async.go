package bibdb

import (
	"context"

	"github.com/gammazero/channelqueue"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/provider"
	"golang.org/x/sync/semaphore"
)

// fetchTask is an asynchronous lookup waiting in a provider queue.
type fetchTask struct {
	ctx  context.Context
	code string
	year string
	opts provider.Options
	done func(bibitem.Item, error)
}

// fetchQueue is the unbounded FIFO of one provider and the pool bounding how
// many of its lookups run at once.
type fetchQueue struct {
	in   chan<- fetchTask
	out  <-chan fetchTask
	pool *semaphore.Weighted
}

// FetchAsync resolves code in the background and calls done with the result.
// Lookups for the same provider start in submission order, with at most the
// provider's worker count running at once. done is called on a worker
// goroutine, except when the code has no provider or the DB is closed, in
// which case done is called before FetchAsync returns.
func (db *DB) FetchAsync(ctx context.Context, code, year string, opts provider.Options, done func(bibitem.Item, error)) {
	p, err := db.standardClass(code)
	if err != nil {
		done(nil, err)
		return
	}

	db.queuesMu.Lock()
	if db.closed {
		db.queuesMu.Unlock()
		done(nil, ErrClosed)
		return
	}
	q := db.queue(p)
	q.in <- fetchTask{
		ctx:  ctx,
		code: code,
		year: year,
		opts: opts,
		done: done,
	}
	db.queuesMu.Unlock()
	queueSize.WithLabelValues(p.Prefix()).Inc()
}

// queue returns the queue of p, creating it and its dispatcher on first use.
// Must be called with queuesMu held.
func (db *DB) queue(p provider.Provider) *fetchQueue {
	q, ok := db.queues[p.Prefix()]
	if ok {
		return q
	}
	workers := p.Workers()
	if workers < 1 {
		workers = 1
	}
	cq := channelqueue.New[fetchTask](-1)
	q = &fetchQueue{
		in:   cq.In(),
		out:  cq.Out(),
		pool: semaphore.NewWeighted(int64(workers)),
	}
	db.queues[p.Prefix()] = q
	db.wg.Add(1)
	go db.dispatch(p.Prefix(), q)
	return q
}

// dispatch starts queued lookups in order as workers become free. It returns
// once the queue is closed and drained.
func (db *DB) dispatch(prefix string, q *fetchQueue) {
	defer db.wg.Done()

	for task := range q.out {
		queueSize.WithLabelValues(prefix).Dec()
		// Acquire cannot fail with a background context.
		_ = q.pool.Acquire(context.Background(), 1)
		inProgress.WithLabelValues(prefix).Inc()
		db.wg.Add(1)
		go func(task fetchTask) {
			defer db.wg.Done()
			defer q.pool.Release(1)
			defer inProgress.WithLabelValues(prefix).Dec()

			item, err := db.Fetch(task.ctx, task.code, task.year, task.opts)
			task.done(item, err)
		}(task)
	}
}
