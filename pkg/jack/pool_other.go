//go:build !unix

package jack

import "os"

func pageSize() int {
	return os.Getpagesize()
}

// allocRegion falls back to heap memory where mmap is unavailable. Buffers
// are still page-strided but not page-aligned.
func allocRegion(size int) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
