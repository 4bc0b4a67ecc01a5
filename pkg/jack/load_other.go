//go:build !linux

package jack

import "github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/libjack"

func loadNative([]string) (Native, error) {
	return nil, libjack.ErrUnsupportedPlatform
}
