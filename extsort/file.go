package extsort

import (
	"io"
	"os"
)

// recordFile wraps an *os.File for record-oriented I/O, grounded on
// File<T> in the sorting exercise's file.h.
type recordFile[T Number] struct {
	f       *os.File
	path    string
	temp    bool
	lastEOF bool
}

func createTemp[T Number](dir string) (*recordFile[T], error) {
	f, err := os.CreateTemp(dir, "extsort-run-*.tmp")
	if err != nil {
		return nil, &IOError{Op: "create temp", Path: dir, Err: err}
	}
	return &recordFile[T]{f: f, path: f.Name(), temp: true}, nil
}

func createOutput[T Number](path string) (*recordFile[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}
	return &recordFile[T]{f: f, path: path}, nil
}

func openInput[T Number](path string) (*recordFile[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return &recordFile[T]{f: f, path: path}, nil
}

// Write appends recs verbatim to the file.
func (rf *recordFile[T]) Write(recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	if _, err := rf.f.Write(bytesView(recs)); err != nil {
		return &IOError{Op: "write", Path: rf.path, Err: err}
	}
	return nil
}

// Read fills buf with up to len(buf) records, returning how many were
// read. It sets lastEOF when the underlying file has no more data.
func (rf *recordFile[T]) Read(buf []T) (int, error) {
	raw := bytesView(buf)
	n, err := io.ReadFull(rf.f, raw)
	recSize := recordSize[T]()
	if n%recSize != 0 {
		st, _ := rf.f.Stat()
		var size int64
		if st != nil {
			size = st.Size()
		}
		return 0, &FormatError{Path: rf.path, Size: size, RecordSize: recSize}
	}
	switch {
	case err == nil:
		rf.lastEOF = false
	case err == io.ErrUnexpectedEOF || err == io.EOF:
		rf.lastEOF = true
		err = nil
	default:
		return 0, &IOError{Op: "read", Path: rf.path, Err: err}
	}
	return n / recSize, err
}

func (rf *recordFile[T]) EOF() bool { return rf.lastEOF }

func (rf *recordFile[T]) Rewind() error {
	rf.lastEOF = false
	_, err := rf.f.Seek(0, io.SeekStart)
	if err != nil {
		return &IOError{Op: "rewind", Path: rf.path, Err: err}
	}
	return nil
}

func (rf *recordFile[T]) Close() error {
	err := rf.f.Close()
	if rf.temp {
		_ = os.Remove(rf.path)
	}
	if err != nil {
		return &IOError{Op: "close", Path: rf.path, Err: err}
	}
	return nil
}

// fileReader owns a private window in the caller's RAM buffer, refilling
// it from disk on demand. Grounded on FileReader<T> in file.h.
type fileReader[T Number] struct {
	rf   *recordFile[T]
	buf  []T
	cur  int
	top  int
	done bool
}

func newFileReader[T Number](rf *recordFile[T], window []T) *fileReader[T] {
	return &fileReader[T]{rf: rf, buf: window}
}

// get returns the next record and true, or the zero value and false once
// the underlying file is exhausted.
func (r *fileReader[T]) get() (T, bool, error) {
	if r.cur == r.top {
		if r.done {
			var zero T
			return zero, false, nil
		}
		n, err := r.rf.Read(r.buf)
		if err != nil {
			var zero T
			return zero, false, err
		}
		r.cur, r.top = 0, n
		if r.rf.EOF() {
			r.done = true
		}
		if n == 0 {
			var zero T
			return zero, false, nil
		}
	}
	v := r.buf[r.cur]
	r.cur++
	return v, true, nil
}

func (r *fileReader[T]) eof() bool { return r.done && r.cur == r.top }

// barrieredReader caps get() at limit records per run, used to merge one
// run at a time out of an interleaved multi-run temp file. Grounded on
// BarrieredFileReader<T>.
type barrieredReader[T Number] struct {
	fr    *fileReader[T]
	limit uint64
	rdcnt uint64
}

func newBarrieredReader[T Number](fr *fileReader[T], limit uint64) *barrieredReader[T] {
	return &barrieredReader[T]{fr: fr, limit: limit}
}

func (b *barrieredReader[T]) get() (T, bool, error) {
	if b.rdcnt >= b.limit {
		var zero T
		return zero, false, nil
	}
	v, ok, err := b.fr.get()
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	b.rdcnt++
	return v, true, nil
}

func (b *barrieredReader[T]) atBarrier() bool { return b.rdcnt >= b.limit }
func (b *barrieredReader[T]) eof() bool       { return b.fr.eof() }

// advancePastBarrier resets the run counter so the next run in the file
// can be read. Permitted only when not at EOF.
func (b *barrieredReader[T]) advancePastBarrier() {
	b.rdcnt = 0
}

// fileWriter owns a private window in the caller's RAM buffer, flushing
// to disk once it fills. Grounded on FileWriter<T>.
type fileWriter[T Number] struct {
	rf  *recordFile[T]
	buf []T
	n   int
}

func newFileWriter[T Number](rf *recordFile[T], window []T) *fileWriter[T] {
	return &fileWriter[T]{rf: rf, buf: window}
}

func (w *fileWriter[T]) put(v T) error {
	w.buf[w.n] = v
	w.n++
	if w.n == len(w.buf) {
		return w.flush()
	}
	return nil
}

func (w *fileWriter[T]) flush() error {
	if w.n == 0 {
		return nil
	}
	if err := w.rf.Write(w.buf[:w.n]); err != nil {
		return err
	}
	w.n = 0
	return nil
}
