package extsort

import "unsafe"

// Number constrains the record type ExternalMergeSort can order:
// platform-native fixed-width integers, per spec §6. Records are written
// and read via a direct memory reinterpretation of a []T as bytes (see
// bytesView), so the on-disk representation is the platform's native
// byte order — matching "the output file is a verbatim concatenation of
// sorted records of type T in the platform's native representation."
type Number interface {
	~int64 | ~uint64 | ~int32 | ~uint32
}

// Less is a strict-weak-ordering predicate over records.
type Less[T Number] func(a, b T) bool

// recordSize returns sizeof(T) in bytes.
func recordSize[T Number]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// bytesView reinterprets a []T as its underlying bytes without copying,
// grounded on the teacher's internal/fixed.go fixed-width (de)serialization
// idiom (bytesViewOf), generalized from a single fixed struct to a slice
// of numeric records.
func bytesView[T Number](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}
