package allocator

// The handle table occupies word indices [ptrFirst, ptrLast) at the high
// end of the arena, growing downward as more handles are placed. A slot
// holds 0 for a tombstone, or (node word index + 1) for a live handle;
// the +1 offset lets word index 0 (a valid node position) be distinguished
// from the null sentinel, mirroring the original's nullptr-vs-address test.

func (a *Allocator) slotGet(s uint64) uint64 { return a.wordAt(s) }
func (a *Allocator) slotSet(s uint64, v uint64) { a.setWordAt(s, v) }

func encodeSlot(node uint64) uint64 { return node + 1 }
func decodeSlot(v uint64) uint64    { return v - 1 }

// placePtr finds a slot for a new handle: an existing tombstone if one
// exists, else a freshly grown slot carved out of the trailing free block.
// Grounded on Allocator::place_ptr.
func (a *Allocator) placePtr() (uint64, error) {
	for s := a.ptrLast; s > a.ptrFirst; {
		s--
		if a.slotGet(s) == 0 {
			return s, nil
		}
	}

	if a.nodeUsed(a.lastNode) || a.nodeWords(a.lastNode) == 0 {
		return 0, errNoMemory("no handle slots available")
	}

	a.setNodeWords(a.lastNode, a.nodeWords(a.lastNode)-1)

	a.ptrFirst--
	a.slotSet(a.ptrFirst, 0)
	return a.ptrFirst, nil
}

// squeezePtrs reclaims tombstones adjacent to the low edge of the table
// (the edge abutting the node region) and gives the recovered words back
// to the trailing free block. Grounded on Allocator::squeze_ptrs.
func (a *Allocator) squeezePtrs() {
	var extendBy uint64
	for a.ptrFirst != a.ptrLast && a.slotGet(a.ptrFirst) == 0 {
		a.ptrFirst++
		extendBy++
	}
	if extendBy == 0 {
		return
	}
	if a.nodeUsed(a.lastNode) {
		a.lastNode = a.nodeNext(a.lastNode)
		a.setNodeUsed(a.lastNode, false)
		a.setNodeWords(a.lastNode, extendBy-1)
	} else {
		a.setNodeWords(a.lastNode, a.nodeWords(a.lastNode)+extendBy)
	}
}

// handleSlots returns the number of table slots currently in use (for
// Stats introspection).
func (a *Allocator) handleSlots() int {
	n := 0
	for s := a.ptrFirst; s < a.ptrLast; s++ {
		if a.slotGet(s) != 0 {
			n++
		}
	}
	return n
}
