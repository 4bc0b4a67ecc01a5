//go:build linux

package jack

import "github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/libjack"

func loadNative(paths []string) (Native, error) {
	lib, err := libjack.Open(paths...)
	if err != nil {
		return nil, err
	}
	return lib, nil
}
