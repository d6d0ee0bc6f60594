// Package dispatch runs user callbacks and timer work off the event
// goroutine.
//
// A Pool owns a bounded queue and a fixed set of workers. Submission never
// blocks: when the queue is full the task is rejected with ErrQueueFull.
// Every execution goes through an Executor that recovers panics and
// measures duration. A callback that returns an error or panics becomes a
// *CallbackError, which the pool logs once and hands to an optional error
// hook. Nothing is returned to the goroutine that submitted the work.
//
// # Usage
//
//	pool := dispatch.NewPool(
//	    dispatch.WithWorkerCount(4),
//	    dispatch.WithLogger(log),
//	)
//	pool.Start()
//	defer pool.Stop(ctx)
//
//	pool.Run("hotkey Ctrl+S", func(ctx context.Context) error {
//	    return save(ctx)
//	})
package dispatch
