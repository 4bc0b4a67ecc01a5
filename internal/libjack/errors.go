// Package libjack binds the JACK client library at run time with purego,
// without cgo. Open loads the shared library and resolves every symbol the
// binding uses; nothing is loaded at process start.
package libjack

import "errors"

var (
	ErrLibraryNotFound     = errors.New("libjack: no loadable JACK client library")
	ErrSymbolMissing       = errors.New("libjack: symbol missing from JACK client library")
	ErrUnsupportedPlatform = errors.New("libjack: run-time binding is only available on linux")
)

// DefaultPaths are tried by Open when it is given no paths.
var DefaultPaths = []string{"libjack.so.0", "libjack.so"}
