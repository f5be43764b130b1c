package allocator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T, words int) *Allocator {
	t.Helper()
	a, err := NewFromBytes(make([]byte, words*wordSize))
	require.NoError(t, err)
	return a
}

func TestAllocZeroBytesReturnsNull(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(0)
	require.NoError(t, err)
	require.True(t, p.IsNull())
}

func TestAllocGetRoundTrip(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(16)
	require.NoError(t, err)
	require.False(t, p.IsNull())

	buf, err := p.Get()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf), 16)

	for i := range buf {
		buf[i] = 0xAA
	}

	buf2, err := p.Get()
	require.NoError(t, err)
	require.Equal(t, buf, buf2)
}

func TestFreeThenGetFails(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(&p))
	_, err = p.Get()
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestFreeNullIsNoop(t *testing.T) {
	a := newTestArena(t, 64)
	var p Pointer
	require.NoError(t, a.Free(&p))
}

func TestAllocNoMemory(t *testing.T) {
	a := newTestArena(t, 8)
	_, err := a.Alloc(1 << 20)
	require.ErrorIs(t, err, ErrNoMemory)
}

func TestReallocNullDelegatesToAlloc(t *testing.T) {
	a := newTestArena(t, 64)
	var p Pointer
	require.NoError(t, a.Realloc(&p, 16))
	require.False(t, p.IsNull())
}

// Scenario 2 from spec §8: realloc-in-place shrink preserves the leading
// bytes of the payload and grows the trailing free block.
func TestReallocShrinkInPlacePreservesPrefix(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(16)
	require.NoError(t, err)

	buf, err := p.Get()
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		buf[i] = 0xAA
	}

	statsBefore := a.Stats()
	require.NoError(t, a.Realloc(&p, 8))
	statsAfter := a.Stats()
	require.Greater(t, statsAfter.FreeWords, statsBefore.FreeWords)

	buf2, err := p.Get()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf2), 8)
	for i := 0; i < 8; i++ {
		require.Equal(t, byte(0xAA), buf2[i])
	}
}

func TestReallocGrowRelocates(t *testing.T) {
	a := newTestArena(t, 64)
	p1, err := a.Alloc(8)
	require.NoError(t, err)
	_, err = a.Alloc(8) // neighbor in use, forces p1's realloc to relocate
	require.NoError(t, err)

	buf, err := p1.Get()
	require.NoError(t, err)
	buf[0] = 0x42

	require.NoError(t, a.Realloc(&p1, 64))
	buf2, err := p1.Get()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), buf2[0])
	require.GreaterOrEqual(t, len(buf2), 64)
}

func TestFreeCoalescesNeighbors(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(16)
	require.NoError(t, err)
	q, err := a.Alloc(16)
	require.NoError(t, err)

	statsLive := a.Stats()
	require.Equal(t, 2, statsLive.LiveBlocks)

	require.NoError(t, a.Free(&p))
	require.NoError(t, a.Free(&q))

	stats := a.Stats()
	require.Equal(t, 0, stats.LiveBlocks)
}

// Scenario 1 from spec §8, adapted to a 64-word arena.
func TestDefragScenario(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(80)
	require.NoError(t, err)
	q, err := a.Alloc(80)
	require.NoError(t, err)

	bufP, _ := p.Get()
	for i := range bufP {
		bufP[i] = 0x11
	}

	require.NoError(t, a.Free(&p))

	r, err := a.Alloc(80)
	require.NoError(t, err)
	bufR, _ := r.Get()
	for i := range bufR {
		bufR[i] = 0x22
	}

	a.Defrag()

	bufRAfter, err := r.Get()
	require.NoError(t, err)
	for _, b := range bufRAfter {
		require.Equal(t, byte(0x22), b)
	}

	bufQAfter, err := q.Get()
	require.NoError(t, err)
	require.NotNil(t, bufQAfter)

	stats := a.Stats()
	require.Equal(t, 2, stats.LiveBlocks)
}

func TestDefragIdempotent(t *testing.T) {
	a := newTestArena(t, 64)
	_, err := a.Alloc(16)
	require.NoError(t, err)
	p2, err := a.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(&p2))
	_, err = a.Alloc(8)
	require.NoError(t, err)

	a.Defrag()
	stats1 := a.Stats()
	a.Defrag()
	stats2 := a.Stats()
	require.Equal(t, stats1, stats2)
}

func TestHandleTombstoneReuse(t *testing.T) {
	a := newTestArena(t, 64)
	p, err := a.Alloc(8)
	require.NoError(t, err)
	slotsBefore := a.Stats().HandleSlots
	require.NoError(t, a.Free(&p))

	_, err = a.Alloc(8)
	require.NoError(t, err)
	slotsAfter := a.Stats().HandleSlots
	require.Equal(t, slotsBefore, slotsAfter)
}

// FuzzAllocFreeRoundTrip churns alloc/free/realloc/defrag against a live
// set of pointers, tagging each block's payload with a value unique to
// that pointer and re-checking every surviving handle's payload after
// each Defrag sweep. Defragmentation under churn is the allocator's
// signature hard case (spec.md §4.1, §8 scenario 1): a handle's slot never
// changes, but the node it resolves to can move underneath it on both
// Realloc-relocate and Defrag, so this is the property that actually
// exercises the handle table doing its job.
func FuzzAllocFreeRoundTrip(f *testing.F) {
	f.Add(uint8(8), uint8(3))
	f.Fuzz(func(t *testing.T, n, seed uint8) {
		if n == 0 {
			return
		}
		a := newTestArena(t, 512)
		r := rand.New(rand.NewSource(int64(seed)))

		type live struct {
			p   Pointer
			tag byte
		}
		var alive []live
		nextTag := byte(1)

		tag := func(p Pointer, b byte) {
			buf, err := p.Get()
			require.NoError(t, err)
			for i := range buf {
				buf[i] = b
			}
		}
		verifyAll := func() {
			for _, l := range alive {
				buf, err := l.p.Get()
				require.NoError(t, err)
				for _, b := range buf {
					require.Equal(t, l.tag, b)
				}
			}
		}

		ops := int(n%32) + 1
		for i := 0; i < ops; i++ {
			switch r.Intn(5) {
			case 0, 1: // alloc a new block and stamp it with a fresh tag
				p, err := a.Alloc(uint64(r.Intn(64)) + 1)
				if err != nil {
					continue
				}
				tag(p, nextTag)
				alive = append(alive, live{p, nextTag})
				nextTag++
			case 2: // free a random live pointer
				if len(alive) == 0 {
					continue
				}
				idx := r.Intn(len(alive))
				require.NoError(t, a.Free(&alive[idx].p))
				alive = append(alive[:idx], alive[idx+1:]...)
			case 3: // resize a random live pointer and re-stamp its (possibly
				// relocated) payload with the same tag
				if len(alive) == 0 {
					continue
				}
				idx := r.Intn(len(alive))
				if err := a.Realloc(&alive[idx].p, uint64(r.Intn(96))+1); err != nil {
					continue
				}
				tag(alive[idx].p, alive[idx].tag)
			case 4: // compact the arena, then confirm every surviving handle
				// still dereferences to its own untouched payload
				a.Defrag()
				verifyAll()
			}
		}
		verifyAll()
	})
}
