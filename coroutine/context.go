package coroutine

// Context is a handle to one registered coroutine, returned by Engine.Run
// and passed back into Engine.Sched to target it explicitly.
//
// Grounded on Engine::context in the coroutine exercise's engine.h, minus
// the saved-stack/register fields: here each Context is backed by its own
// goroutine with its own native stack, so there is nothing to copy out and
// restore (see SPEC_FULL.md §6). What survives unchanged is the
// scheduling bookkeeping: caller/callee back-edges, running-list
// membership, and the channel a blocked context is waiting on.
type Context struct {
	// caller is the coroutine that most recently resumed this one via
	// sched/yield resolution.
	caller *Context
	// callee mirrors the source engine's context::callee: structurally
	// present (and cleared when a resumed target's stale callee link
	// points back at the resumer) but never assigned a value by any
	// scheduling primitive here, matching the ported engine's tested
	// behavior.
	callee *Context

	// prev/next: running-list membership (all live coroutines, whether
	// runnable or blocked).
	prev *Context
	next *Context

	// awaiting is the channel on which this coroutine has a read or write
	// pending, nil if it has none.
	awaiting *channel

	// resume is the baton: the engine sends on it to hand this
	// coroutine's goroutine control.
	resume chan struct{}
}
