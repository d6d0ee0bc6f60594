// Package input is the remapping engine.
//
// An Engine owns every table the pipeline needs and processes raw system
// input through a fixed chain of stages:
//
//	raw event -> layer router -> hotkey matcher -> combo matcher -> output sink
//
// The hotkey and combo stages can be swapped with Config.ComboFirst. Each
// stage may swallow the live event, let it fall through, or emit events
// of its own. Events that reach the end of the chain are passed back to
// the operating system when nothing is waiting in the output sink, and
// are re-sent through the sink otherwise so output order is kept.
//
// # Concurrency
//
// Process is called from the hook goroutine and never blocks on user
// code: callbacks run on a bounded worker pool and timers are served by a
// single wheel goroutine. A single mutex serializes hook events, timer
// resolutions, registration and layer changes. It is never held while a
// user callback runs.
//
// # Usage
//
//	eng := input.New(input.DefaultConfig(), sender)
//	if err := eng.Start(); err != nil {
//	    return err
//	}
//	defer eng.Stop(ctx)
//
//	_, err := eng.RegisterHotkeySpec("Ctrl+Alt+T", openTerminal, true)
//
//	for raw := range events {
//	    if !eng.Process(raw) {
//	        passThrough(raw)
//	    }
//	}
package input
