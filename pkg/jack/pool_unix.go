//go:build unix

package jack

import "golang.org/x/sys/unix"

func pageSize() int {
	return unix.Getpagesize()
}

// allocRegion maps size bytes of anonymous, zero-filled memory.
func allocRegion(size int) ([]byte, func() error, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return region, func() error { return unix.Munmap(region) }, nil
}
