package allocator

import "encoding/binary"

// Word size assumed throughout, matching spec §3 ("word size W = 8
// assumed"). A node's header occupies exactly one word: the high bit is
// the in-use flag, the remaining 63 bits are the payload length in words.
const wordSize = 8

const flagInUse = uint64(1) << 63

// headerUsed/headerWords/makeHeader operate on a raw header word, kept
// separate from arena access so the bit-packing itself is trivially
// testable (grounded on the original AllocatorNode::usage/length pair).
func headerUsed(h uint64) bool     { return h&flagInUse != 0 }
func headerWords(h uint64) uint64  { return h &^ flagInUse }
func makeHeader(used bool, words uint64) uint64 {
	h := words
	if used {
		h |= flagInUse
	}
	return h
}

// wordAt/setWordAt read and write a single little-endian word at word
// index i within the arena, the Go stand-in for the original's pointer
// arithmetic over AllocatorNode*.
func (a *Allocator) wordAt(i uint64) uint64 {
	return binary.LittleEndian.Uint64(a.buf[i*wordSize:])
}

func (a *Allocator) setWordAt(i uint64, v uint64) {
	binary.LittleEndian.PutUint64(a.buf[i*wordSize:], v)
}

func (a *Allocator) nodeUsed(w uint64) bool    { return headerUsed(a.wordAt(w)) }
func (a *Allocator) nodeWords(w uint64) uint64 { return headerWords(a.wordAt(w)) }

func (a *Allocator) setNodeUsed(w uint64, used bool) {
	h := a.wordAt(w)
	if used {
		h |= flagInUse
	} else {
		h &^= flagInUse
	}
	a.setWordAt(w, h)
}

// setNodeWords fails internally if length overlaps the flag bit, mirroring
// AllocatorNode::setLength's overlap check.
func (a *Allocator) setNodeWords(w uint64, words uint64) {
	if words&flagInUse != 0 {
		panic(errInternal("length overlaps in-use flag"))
	}
	h := a.wordAt(w)
	a.setWordAt(w, (h&flagInUse)|words)
}

// nodeNext returns the word index of the node immediately following w,
// computed purely from w's own header (AllocatorNode::next(1)).
func (a *Allocator) nodeNext(w uint64) uint64 {
	return w + 1 + a.nodeWords(w)
}

// payload returns the byte slice covering a node's payload words.
func (a *Allocator) payload(w uint64) []byte {
	start := (w + 1) * wordSize
	length := a.nodeWords(w) * wordSize
	return a.buf[start : start+length]
}
