//go:build unix

package allocator

import "golang.org/x/sys/unix"

// mmapAnon maps an anonymous, process-private region of size bytes. Unlike
// the teacher's internal/mmap package, which maps a file descriptor, the
// allocator's arena has no backing file: it is transient memory per spec §6.
func mmapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
