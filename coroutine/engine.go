// Package coroutine implements CooperativeCoroutineEngine: a
// single-threaded, non-preemptive coroutine scheduler with byte-ring-buffer
// channels for inter-coroutine communication.
//
// Grounded on the coroutine exercise's Engine class (engine.h/engine.cpp).
// The original suspends a coroutine by copying the shared C stack into a
// heap buffer and restoring it later via setjmp/longjmp; per spec.md §9's
// own design note, that stack-copy trick is a portability compromise and
// should be replaced by giving each coroutine its own independently
// allocated stack. In Go that is exactly what a goroutine already is, so
// each Context here is backed by one goroutine, and suspension/resumption
// is a handoff over an unbuffered channel instead of setjmp/longjmp. The
// running list, caller/callee bookkeeping and the sched(target) resolution
// rules are ported unchanged; the deadlock check additionally counts a
// coroutine whose pending channel operation can still move bytes as
// runnable.
package coroutine

// Engine schedules a set of cooperative coroutines and the channels they
// communicate through. Not safe for concurrent use from multiple OS
// threads; by design only one coroutine (or the Start caller) ever holds
// the token at a time.
type Engine struct {
	running *Context
	current *Context

	channels map[int64]*channel

	started  bool
	idleDone chan struct{}
	fatal    error
}

// New returns an idle engine with no registered coroutines.
func New() *Engine {
	return &Engine{channels: make(map[int64]*channel)}
}

type deadlockSignal struct{ msg string }

// Start is the engine's entry point: it registers fn as the first
// coroutine, schedules it, and blocks until every coroutine -- fn and any
// it transitively spawns via Run -- has finished. Must not be called
// re-entrantly. Grounded on Engine::start.
func (e *Engine) Start(fn func()) (err error) {
	if e.started {
		return errChannelMisuse("start called inside coroutines")
	}
	e.started = true
	e.idleDone = make(chan struct{})
	e.fatal = nil
	defer func() { e.started = false }()

	main, rerr := e.Run(fn)
	if rerr != nil {
		return rerr
	}

	defer func() {
		if r := recover(); r != nil {
			err = e.recoverDeadlock(r)
		}
	}()

	e.activate(main)
	<-e.idleDone
	return e.fatal
}

// Run registers fn as a new coroutine in the running list. It does not
// execute until scheduled, whether explicitly via Sched or implicitly as
// the resolution of a Yield/Sched(nil). Grounded on Engine::run, minus the
// template argument forwarding (Go closures capture their own arguments).
func (e *Engine) Run(fn func()) (*Context, error) {
	if !e.started {
		return nil, errChannelMisuse("run called before start")
	}

	ctx := &Context{caller: e.current, resume: make(chan struct{})}
	ctx.next = e.running
	if ctx.next != nil {
		ctx.next.prev = ctx
	}
	e.running = ctx

	go func() {
		<-ctx.resume
		defer func() {
			if r := recover(); r != nil {
				e.fatal = e.recoverDeadlock(r)
				e.abort(ctx)
				return
			}
		}()
		fn()
		e.finish(ctx)
	}()

	return ctx, nil
}

func (e *Engine) recoverDeadlock(r any) error {
	if ds, ok := r.(deadlockSignal); ok {
		return errDeadlock(ds.msg)
	}
	panic(r)
}

// Yield gives up the current coroutine's execution and lets the engine
// schedule another. Equivalent to Sched(nil). Grounded on Engine::yield.
func (e *Engine) Yield() {
	e.schedAndWait(nil)
}

// Sched suspends the current coroutine and transfers control to target.
// If target is nil, control passes to the caller of the current coroutine,
// or to any other runnable coroutine, or back to the current coroutine
// itself if nothing else is runnable. Grounded on Engine::sched.
func (e *Engine) Sched(target *Context) {
	e.schedAndWait(target)
}

// schedAndWait is used by every call site where the calling goroutine
// survives the handoff and must block until it is resumed again: Yield,
// Sched, and the channel read/write loops. When activate resolves target
// back onto the caller itself (nothing else is runnable), there is no
// handoff to wait for -- the caller just keeps running.
func (e *Engine) schedAndWait(target *Context) {
	cur := e.current
	if e.activate(target) && cur != nil {
		<-cur.resume
	}
}

// activate resolves target per the sched(target) algorithm (spec.md
// §4.4), performs the deadlock check, and hands control to the resolved
// coroutine (or signals engine termination). It does not block the
// caller; callers that must survive the handoff wait on their own resume
// channel afterwards. Returns whether a handoff to a *different*
// coroutine's goroutine actually happened.
func (e *Engine) activate(target *Context) bool {
	if e.deadlocked() {
		panic(deadlockSignal{"all coroutines blocked on channels"})
	}

	cur := e.current

	if target == nil && cur == nil {
		e.current = nil
		e.idleDone <- struct{}{}
		return false
	}

	if target == nil {
		if cur.caller != nil {
			target = cur.caller
		} else {
			for p := e.running; p != nil; p = p.next {
				if p != cur && p.awaiting == nil {
					target = p
					break
				}
			}
			if target == nil {
				target = cur
			}
		}
	}

	// A coroutine resuming a callee that has already yielded back to it
	// drops the stale link instead of walking through it. callee is
	// otherwise only ever cleared, never assigned, matching the source
	// engine -- the leaf-walk exists for structural fidelity with
	// spec.md's context model but is a no-op along every path this
	// engine's scheduling primitives actually exercise.
	if target.callee != nil && target.callee == cur {
		target.callee.caller = nil
		target.callee = nil
	}
	for target.callee != nil {
		target = target.callee
	}

	if target == cur {
		// Nothing else is runnable: resolution fell back to the caller
		// itself (spec.md §4.4 step 4). There is only one goroutine here
		// -- the one making this call -- so routing this through the
		// resume channel would be a send with no other party ever able
		// to receive it. Treat it as a true no-op instead: cur keeps the
		// token and simply returns.
		return false
	}

	target.caller = cur
	e.current = target
	target.resume <- struct{}{}
	return true
}

// deadlocked reports whether no coroutine in the running list can make
// progress: every one has a channel operation pending, and none of them is
// at the head of its queue with buffered bytes (reader) or free space
// (writer) to transfer.
func (e *Engine) deadlocked() bool {
	if e.running == nil {
		return false
	}
	for p := e.running; p != nil; p = p.next {
		c := p.awaiting
		if c == nil {
			return false
		}
		if len(c.readTasks) > 0 && c.readTasks[0].owner == p && c.filled > 0 {
			return false
		}
		if len(c.writeTasks) > 0 && c.writeTasks[0].owner == p && c.filled < c.size {
			return false
		}
	}
	return true
}

// finish unlinks ctx from the running list once its function has
// returned, then hands control to its caller, or to any other running
// coroutine, or terminates the engine if nothing remains. Grounded on the
// tail of Engine::run (the post-longjmp cleanup branch).
func (e *Engine) finish(ctx *Context) {
	e.unlink(ctx)
	next := ctx.caller
	if ctx.caller != nil {
		ctx.caller.callee = nil
	}
	if next == nil {
		next = e.running
	}
	e.current = nil
	e.activate(next)
}

// abort tears down the engine immediately after a coroutine's scheduling
// call panicked with a deadlock: nothing further can make progress, so
// control returns straight to Start's caller instead of attempting another
// handoff.
func (e *Engine) abort(ctx *Context) {
	e.unlink(ctx)
	e.idleDone <- struct{}{}
}

func (e *Engine) unlink(ctx *Context) {
	if ctx.prev != nil {
		ctx.prev.next = ctx.next
	}
	if ctx.next != nil {
		ctx.next.prev = ctx.prev
	}
	if e.running == ctx {
		e.running = ctx.next
	}
	ctx.prev, ctx.next = nil, nil
}

// Stats reports the number of coroutines the engine currently tracks and
// how many of them have a channel operation pending, for test
// introspection.
type Stats struct {
	Running int
	Blocked int
}

func (e *Engine) Stats() Stats {
	var s Stats
	for p := e.running; p != nil; p = p.next {
		s.Running++
		if p.awaiting != nil {
			s.Blocked++
		}
	}
	return s
}
