package extsort

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func int64Less(a, b int64) bool { return a < b }

func writeInput(t *testing.T, path string, values []int64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, (&recordFile[int64]{f: f, path: path}).Write(values))
}

func readOutput(t *testing.T, path string) []int64 {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n := len(data) / recordSize[int64]()
	out := make([]int64, n)
	copy(bytesView(out), data)
	return out
}

func TestSortSmallFitsInOneBuffer(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")

	values := []int64{5, 3, 9, 1, 7}
	writeInput(t, in, values)

	opts := Options{BufLen: 64, Ways: 4}
	require.NoError(t, Sort[int64](in, out, opts, int64Less))

	got := readOutput(t, out)
	require.Equal(t, []int64{1, 3, 5, 7, 9}, got)
}

func TestSortEmptyInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	writeInput(t, in, nil)

	opts := Options{BufLen: 16, Ways: 4}
	require.NoError(t, Sort[int64](in, out, opts, int64Less))

	got := readOutput(t, out)
	require.Empty(t, got)
}

// Scenario 4 from spec §8 (scaled down): many shuffled records, multi-pass
// merge required.
func TestSortMultiPassCorrectness(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")

	r := rand.New(rand.NewSource(1))
	n := 10000
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	r.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
	writeInput(t, in, values)

	opts := Options{BufLen: 16, Ways: 4}
	require.NoError(t, Sort[int64](in, out, opts, int64Less))

	got := readOutput(t, out)
	require.Len(t, got, n)
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}

	seen := map[int64]bool{}
	for _, v := range got {
		seen[v] = true
	}
	require.Len(t, seen, n)
}

func TestSortRejectsBadBufLen(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	writeInput(t, in, []int64{1, 2, 3})

	opts := Options{BufLen: 5, Ways: 4}
	err := Sort[int64](in, out, opts, int64Less)
	require.Error(t, err)
}

func TestSortRunsExactlyWays(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")

	values := make([]int64, 32)
	for i := range values {
		values[i] = int64(len(values) - i)
	}
	writeInput(t, in, values)

	opts := Options{BufLen: 8, Ways: 4}
	require.NoError(t, Sort[int64](in, out, opts, int64Less))

	got := readOutput(t, out)
	require.Len(t, got, len(values))
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}
}
