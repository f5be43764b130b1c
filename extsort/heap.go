package extsort

import "container/heap"

// heapEntry pairs a record with the index of the reader it came from.
type heapEntry[T Number] struct {
	idx   int
	value T
}

// mergeHeap is a k-way barriered merge heap: each of its readers is
// limited to one run at a time. Grounded on MultiFileHeap in algo.h,
// reimplemented over container/heap instead of std::make_heap/pop_heap.
type mergeHeap[T Number] struct {
	entries   []heapEntry[T]
	less      Less[T]
	readers   []*barrieredReader[T]
	lastBlock bool
}

func newMergeHeap[T Number](readers []*barrieredReader[T], less Less[T]) *mergeHeap[T] {
	return &mergeHeap[T]{readers: readers, less: less}
}

func (h *mergeHeap[T]) Len() int { return len(h.entries) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	return h.less(h.entries[i].value, h.entries[j].value)
}
func (h *mergeHeap[T]) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *mergeHeap[T]) Push(x any) { h.entries = append(h.entries, x.(heapEntry[T])) }

func (h *mergeHeap[T]) Pop() any {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[:n-1]
	return item
}

// make seeds the heap for one wave: one record is pulled from each reader
// that still has a run available, advancing any reader sitting at its
// prior barrier. It returns false once a prior wave observed a reader's
// true end of file, meaning no further complete row of runs remains.
// Grounded on MultiFileHeap::make.
func (h *mergeHeap[T]) make() (bool, error) {
	if h.lastBlock {
		return false, nil
	}

	type slot struct {
		idx   int
		value T
	}
	active := make([]slot, len(h.readers))
	for i := range active {
		active[i].idx = i
	}

	n := len(active)
	for i := 0; i < n; {
		r := h.readers[active[i].idx]
		if r.atBarrier() {
			r.advancePastBarrier()
		}
		v, ok, err := r.get()
		if err != nil {
			return false, err
		}
		if ok {
			active[i].value = v
			i++
			continue
		}
		n--
		active[i] = active[n]
	}
	active = active[:n]

	if n == 0 {
		return false, nil
	}

	h.entries = make([]heapEntry[T], n)
	for i, s := range active {
		h.entries[i] = heapEntry[T]{idx: s.idx, value: s.value}
	}
	heap.Init(h)
	return true, nil
}

// pop returns the current global minimum across all contributing readers
// and refills from the reader it came from. It returns false once the
// heap has been fully drained for this wave. Grounded on
// MultiFileHeap::pop.
func (h *mergeHeap[T]) pop() (T, bool, error) {
	if len(h.entries) == 0 {
		var zero T
		return zero, false, nil
	}

	value := h.entries[0].value
	topIdx := h.entries[0].idx
	r := h.readers[topIdx]

	v, ok, err := r.get()
	if err != nil {
		var zero T
		return zero, false, err
	}
	if ok {
		h.entries[0].value = v
		heap.Fix(h, 0)
	} else {
		if r.eof() {
			h.lastBlock = true
		}
		heap.Pop(h)
	}
	return value, true, nil
}
