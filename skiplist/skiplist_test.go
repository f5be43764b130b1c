package skiplist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func newTestList(t *testing.T) *SkipList[int, string] {
	t.Helper()
	return New[int, string](8, intLess, WithRand[int, string](rand.New(rand.NewSource(42))))
}

// Scenario 3 from spec §8.
func TestInsertOrderAndFind(t *testing.T) {
	sl := newTestList(t)
	for _, k := range []int{5, 3, 9, 1, 7} {
		sl.Put(k, "v")
	}

	var got []int
	for c := sl.Begin(); !c.Done(); c = c.Next() {
		got = append(got, c.Key())
	}
	require.Equal(t, []int{1, 3, 5, 7, 9}, got)

	c := sl.Find(4)
	require.False(t, c.Done())
	require.Equal(t, 5, c.Key())

	old, hadOld := sl.Delete(5)
	require.True(t, hadOld)
	require.Equal(t, "v", old)

	_, ok := sl.Get(5)
	require.False(t, ok)
}

func TestPutReturnsOldValue(t *testing.T) {
	sl := newTestList(t)
	old, hadOld := sl.Put(1, "a")
	require.False(t, hadOld)
	require.Empty(t, old)

	old, hadOld = sl.Put(1, "b")
	require.True(t, hadOld)
	require.Equal(t, "a", old)

	v, ok := sl.Get(1)
	require.True(t, ok)
	require.Equal(t, "b", v)
}

func TestPutIfAbsent(t *testing.T) {
	sl := newTestList(t)
	existing, had := sl.PutIfAbsent(1, "a")
	require.False(t, had)
	require.Empty(t, existing)

	existing, had = sl.PutIfAbsent(1, "b")
	require.True(t, had)
	require.Equal(t, "a", existing)

	v, _ := sl.Get(1)
	require.Equal(t, "a", v)
}

func TestGetMissingKey(t *testing.T) {
	sl := newTestList(t)
	_, ok := sl.Get(42)
	require.False(t, ok)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	sl := newTestList(t)
	sl.Put(1, "a")
	_, hadOld := sl.Delete(999)
	require.False(t, hadOld)
	require.Equal(t, 1, sl.Len())
}

// SkipList size law from spec §8: insert;delete of the same key is
// observationally equivalent to identity on all other keys.
func TestInsertDeleteIdentityOnOtherKeys(t *testing.T) {
	sl := newTestList(t)
	for i := 0; i < 20; i++ {
		if i != 7 {
			sl.Put(i, "kept")
		}
	}
	before := snapshot(sl)

	sl.Put(7, "temp")
	sl.Delete(7)

	after := snapshot(sl)
	require.Equal(t, before, after)
}

func snapshot(sl *SkipList[int, string]) map[int]string {
	m := map[int]string{}
	for c := sl.Begin(); !c.Done(); c = c.Next() {
		m[c.Key()] = c.Value()
	}
	return m
}

func TestOrderingUnderRandomInsertions(t *testing.T) {
	sl := newTestList(t)
	r := rand.New(rand.NewSource(7))
	keys := r.Perm(500)
	for _, k := range keys {
		sl.Put(k, "x")
	}

	prev := -1
	count := 0
	for c := sl.Begin(); !c.Done(); c = c.Next() {
		require.Greater(t, c.Key(), prev)
		prev = c.Key()
		count++
	}
	require.Equal(t, 500, count)
	require.Equal(t, 500, sl.Len())
}

func FuzzSkipListRoundTrip(f *testing.F) {
	f.Add(3, "a")
	f.Fuzz(func(t *testing.T, key int, value string) {
		sl := newTestList(t)
		sl.Put(key, value)
		got, ok := sl.Get(key)
		if !ok || got != value {
			t.Fatalf("round trip failed: got=%q ok=%v want=%q", got, ok, value)
		}
		sl.Delete(key)
		if _, ok := sl.Get(key); ok {
			t.Fatalf("key %d still present after delete", key)
		}
	})
}
