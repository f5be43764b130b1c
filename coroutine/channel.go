package coroutine

// channel is a bounded byte ring buffer with two independent FIFO wait
// queues, one per direction. Grounded on Engine::channel in engine.h.
//
// The original's do_write_task/do_read_task both index the buffer at the
// *read* cursor (`start`) for writes as well as reads, which would let a
// write clobber bytes a pending read hasn't consumed yet whenever the
// buffer is partially full. Spec.md's channel semantics describe a
// straightforward ring buffer ("buffers up to capacity bytes"), so writes
// here land at the tail (`start+filled`, wrapped), not at the head.
//
// write/read's at-the-head loop also departs from the source in one spot:
// when the head task can make no progress and the opposite queue is empty
// (no reader to unblock a full buffer, no writer to unblock an empty one),
// it yields with no target instead of calling do_write_task/do_read_task
// in a tight loop -- the literal port busy-spins forever in that case,
// which also hides it from the engine's deadlock check, since that check
// only runs inside a scheduling call.
type channel struct {
	buf    []byte
	start  int // read cursor
	filled int
	size   int

	writeTasks []*writeTask
	readTasks  []*readTask
}

type writeTask struct {
	owner     *Context
	remaining []byte
}

type readTask struct {
	owner *Context
	dst   []byte
}

func newChannel(capacity int) *channel {
	return &channel{buf: make([]byte, capacity), size: capacity}
}

// write enqueues src as a write task owned by cur and blocks (yielding to
// other coroutines) until every byte has been transferred into the ring
// buffer. Grounded on channel::write.
func (c *channel) write(e *Engine, cur *Context, src []byte) {
	c.writeTasks = append(c.writeTasks, &writeTask{owner: cur, remaining: src})
	if cur != nil {
		cur.awaiting = c
	}

	for c.writeTasks[0].owner != cur {
		e.schedAndWait(c.writeTasks[0].owner)
		if len(c.readTasks) > 0 {
			e.schedAndWait(c.readTasks[0].owner)
		}
	}

	for len(c.writeTasks) > 0 && c.writeTasks[0].owner == cur {
		progressed := c.doWriteTask()
		if len(c.readTasks) > 0 {
			e.schedAndWait(c.readTasks[0].owner)
		} else if !progressed {
			// Nobody is reading yet and the buffer is full: spinning here
			// would never let a reader appear or a deadlock be detected.
			e.schedAndWait(nil)
		}
	}
}

// read enqueues dst as a read task owned by cur and blocks until dst has
// been filled from the ring buffer. Grounded on channel::read.
func (c *channel) read(e *Engine, cur *Context, dst []byte) {
	c.readTasks = append(c.readTasks, &readTask{owner: cur, dst: dst})
	if cur != nil {
		cur.awaiting = c
	}

	for c.readTasks[0].owner != cur {
		e.schedAndWait(c.readTasks[0].owner)
		if len(c.writeTasks) > 0 {
			e.schedAndWait(c.writeTasks[0].owner)
		}
	}

	for len(c.readTasks) > 0 && c.readTasks[0].owner == cur {
		progressed := c.doReadTask()
		if len(c.writeTasks) > 0 {
			e.schedAndWait(c.writeTasks[0].owner)
		} else if !progressed {
			// Nobody is writing yet and the buffer is empty: spinning here
			// would never let a writer appear or a deadlock be detected.
			e.schedAndWait(nil)
		}
	}
}

// doWriteTask transfers as much of the head write task into the buffer as
// occupancy allows, popping it once fully drained. Returns true iff any
// bytes were transferred. Grounded on channel::do_write_task.
func (c *channel) doWriteTask() bool {
	if len(c.writeTasks) == 0 {
		return false
	}

	wt := c.writeTasks[0]
	written := false
	for len(wt.remaining) > 0 {
		avail := c.size - c.filled
		if avail == 0 {
			break
		}
		n := avail
		if n > len(wt.remaining) {
			n = len(wt.remaining)
		}
		tail := (c.start + c.filled) % c.size
		if tail+n > c.size {
			first := c.size - tail
			copy(c.buf[tail:], wt.remaining[:first])
			copy(c.buf[0:], wt.remaining[first:n])
		} else {
			copy(c.buf[tail:tail+n], wt.remaining[:n])
		}
		written = true
		wt.remaining = wt.remaining[n:]
		c.filled += n
	}

	if len(wt.remaining) == 0 {
		if wt.owner != nil {
			wt.owner.awaiting = nil
		}
		c.writeTasks = c.writeTasks[1:]
	}
	return written
}

// doReadTask drains as much of the head read task from the buffer as
// occupancy allows, popping it once fully satisfied. Returns true iff any
// bytes were transferred. Grounded on channel::do_read_task, with the
// missing return on the "nothing transferred" path supplied per spec.md §9.
func (c *channel) doReadTask() bool {
	if len(c.readTasks) == 0 {
		return false
	}

	rt := c.readTasks[0]
	read := false
	for len(rt.dst) > 0 {
		if c.filled == 0 {
			break
		}
		n := c.filled
		if n > len(rt.dst) {
			n = len(rt.dst)
		}
		if c.start+n > c.size {
			first := c.size - c.start
			copy(rt.dst[:first], c.buf[c.start:])
			copy(rt.dst[first:n], c.buf[0:n-first])
			c.start = n - first
		} else {
			copy(rt.dst[:n], c.buf[c.start:c.start+n])
			c.start += n
		}
		rt.dst = rt.dst[n:]
		c.filled -= n
		read = true
	}

	if len(rt.dst) == 0 {
		if rt.owner != nil {
			rt.owner.awaiting = nil
		}
		c.readTasks = c.readTasks[1:]
	}
	return read
}

// Cexists reports whether a channel with the given id has been created.
func (e *Engine) Cexists(id int64) bool {
	_, ok := e.channels[id]
	return ok
}

// Cnew creates a channel of the given byte capacity under id. Grounded on
// Engine::cnew.
func (e *Engine) Cnew(id int64, capacity int) error {
	if _, ok := e.channels[id]; ok {
		return errChannelMisuse("requested channel id is in use")
	}
	e.channels[id] = newChannel(capacity)
	return nil
}

// Cclose removes the channel identified by id. Closing a channel with
// coroutines still blocked on it is a misuse error; closing an unknown id
// is a no-op. Grounded on Engine::cclose / channel::destroy.
func (e *Engine) Cclose(id int64) error {
	ch, ok := e.channels[id]
	if !ok {
		return nil
	}
	if len(ch.writeTasks) > 0 || len(ch.readTasks) > 0 {
		return errChannelMisuse("attempt to close channel with pending tasks (blocked coroutines)")
	}
	delete(e.channels, id)
	return nil
}

// Cwrite writes src to the channel identified by id on behalf of the
// currently executing coroutine, blocking until every byte has been
// transferred. Grounded on Engine::cwrite.
func (e *Engine) Cwrite(id int64, src []byte) error {
	ch, ok := e.channels[id]
	if !ok {
		return errChannelMisuse("write to unknown channel")
	}
	ch.write(e, e.current, src)
	return nil
}

// Cread reads len(dst) bytes from the channel identified by id into dst on
// behalf of the currently executing coroutine, blocking until dst is
// filled. Grounded on Engine::cread.
func (e *Engine) Cread(id int64, dst []byte) error {
	ch, ok := e.channels[id]
	if !ok {
		return errChannelMisuse("read from unknown channel")
	}
	ch.read(e, e.current, dst)
	return nil
}
