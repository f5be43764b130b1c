// Package extsort implements ExternalMergeSort: a k-way external sorter
// for files whose contents do not fit in memory, using a bounded RAM
// budget partitioned between input readers and an output writer.
//
// Grounded on the sorting exercise's algo.h/file.h: phase 1 forms sorted
// runs round-robin across k temp files; phase 2 repeatedly merges rows of
// k runs with a barriered k-way heap until one run remains. The phase-1
// loop condition is corrected per spec §9 (the source's "while
// file_in.eof()" is inverted); this port loops until EOF is actually
// reached.
package extsort

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Options bounds the sorter's RAM budget and fan-out.
type Options struct {
	BufLen int // B: records held in RAM at once
	Ways   int // k: temp files per pass
}

// DefaultOptions returns the fixed defaults the CLI uses.
func DefaultOptions() Options {
	return Options{BufLen: 4096, Ways: 4}
}

func (o Options) validate() error {
	if o.Ways < 2 {
		return fmt.Errorf("extsort: ways must be at least 2, got %d", o.Ways)
	}
	if o.BufLen <= 0 || o.BufLen%(2*o.Ways) != 0 {
		return fmt.Errorf("extsort: buf len %d must be a positive multiple of 2*ways (2*%d)", o.BufLen, o.Ways)
	}
	return nil
}

// Sort sorts the fixed-width records of inPath into outPath using less as
// the ordering predicate, per spec §4.3. Grounded on the extsort<T,LESS>
// function template in algo.h.
func Sort[T Number](inPath, outPath string, opts Options, less Less[T]) error {
	if err := opts.validate(); err != nil {
		return err
	}

	dir := filepath.Dir(outPath)
	buf := make([]T, opts.BufLen)

	in, err := openInput[T](inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	dst, err := createTempFiles[T](dir, opts.Ways)
	if err != nil {
		return err
	}

	c := 0
	lastN := 0
	for {
		n, rerr := in.Read(buf)
		if rerr != nil {
			closeAll(dst)
			return rerr
		}
		if n > 0 {
			sortRecords(buf[:n], less)
			if werr := dst[c%opts.Ways].Write(buf[:n]); werr != nil {
				closeAll(dst)
				return werr
			}
			c++
			lastN = n
		}
		if in.EOF() {
			break
		}
	}

	if c <= 1 {
		closeAll(dst)
		out, err := createOutput[T](outPath)
		if err != nil {
			return err
		}
		if err := out.Write(buf[:lastN]); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}

	L := uint64(opts.BufLen)
	R := c

	for R > 1 {
		src := dst
		for _, f := range src {
			if err := f.Rewind(); err != nil {
				closeAll(src)
				return err
			}
		}

		var newDst []*recordFile[T]
		if R > opts.Ways {
			newDst, err = createTempFiles[T](dir, opts.Ways)
		} else {
			var out *recordFile[T]
			out, err = createOutput[T](outPath)
			if err == nil {
				newDst = []*recordFile[T]{out}
			}
		}
		if err != nil {
			closeAll(src)
			return err
		}

		readerWindowTotal := opts.BufLen / 2
		writerWindowTotal := opts.BufLen - readerWindowTotal

		readers := make([]*barrieredReader[T], opts.Ways)
		for i := 0; i < opts.Ways; i++ {
			lo := (i * readerWindowTotal) / opts.Ways
			hi := ((i + 1) * readerWindowTotal) / opts.Ways
			fr := newFileReader[T](src[i], buf[lo:hi])
			readers[i] = newBarrieredReader[T](fr, L)
		}

		writers := make([]*fileWriter[T], len(newDst))
		for i := range newDst {
			lo := readerWindowTotal + (i*writerWindowTotal)/len(newDst)
			hi := readerWindowTotal + ((i+1)*writerWindowTotal)/len(newDst)
			writers[i] = newFileWriter[T](newDst[i], buf[lo:hi])
		}

		runIndex := 0
		newC := 0
		mh := newMergeHeap[T](readers, less)
		for {
			ok, merr := mh.make()
			if merr != nil {
				closeAll(src)
				closeAll(newDst)
				return merr
			}
			if !ok {
				break
			}

			w := writers[runIndex%len(writers)]
			for {
				v, hasMore, perr := mh.pop()
				if perr != nil {
					closeAll(src)
					closeAll(newDst)
					return perr
				}
				if !hasMore {
					break
				}
				if perr := w.put(v); perr != nil {
					closeAll(src)
					closeAll(newDst)
					return perr
				}
			}
			runIndex++
			newC++
		}

		for _, w := range writers {
			if err := w.flush(); err != nil {
				closeAll(src)
				closeAll(newDst)
				return err
			}
		}
		closeAll(src)

		dst = newDst
		L *= uint64(opts.Ways)
		R = newC
	}

	return closeAll(dst)
}

func sortRecords[T Number](recs []T, less Less[T]) {
	sort.Slice(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}

func createTempFiles[T Number](dir string, n int) ([]*recordFile[T], error) {
	files := make([]*recordFile[T], 0, n)
	for i := 0; i < n; i++ {
		f, err := createTemp[T](dir)
		if err != nil {
			closeAll(files)
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func closeAll[T Number](files []*recordFile[T]) error {
	var first error
	for _, f := range files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
