package jack

import "github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/bitmask"

// Status is the bitmask the native library reports from ClientOpen. It is
// surfaced verbatim; the predicates each test one documented bit.
type Status uint32

const (
	statusFailure       Status = 0x01
	statusInvalidOption Status = 0x02
	statusNameNotUnique Status = 0x04
	statusServerStarted Status = 0x08
	statusServerFailed  Status = 0x10
	statusServerError   Status = 0x20
	statusNoSuchClient  Status = 0x40
	statusLoadFailure   Status = 0x80
	statusInitFailure   Status = 0x100
	statusShmFailure    Status = 0x200
	statusVersionError  Status = 0x400
	statusBackendError  Status = 0x800
	statusClientZombie  Status = 0x1000
)

// statusInvalidRequest is reported for requests rejected before they reach
// the native library.
const statusInvalidRequest = statusFailure | statusInvalidOption

var knownStatusBits = []Status{
	statusFailure, statusInvalidOption, statusNameNotUnique, statusServerStarted,
	statusServerFailed, statusServerError, statusNoSuchClient, statusLoadFailure,
	statusInitFailure, statusShmFailure, statusVersionError, statusBackendError,
	statusClientZombie,
}

var statusNames = map[Status]string{
	statusFailure:       "failure",
	statusInvalidOption: "invalid-option",
	statusNameNotUnique: "name-not-unique",
	statusServerStarted: "server-started",
	statusServerFailed:  "server-failed",
	statusServerError:   "server-error",
	statusNoSuchClient:  "no-such-client",
	statusLoadFailure:   "load-failure",
	statusInitFailure:   "init-failure",
	statusShmFailure:    "shm-failure",
	statusVersionError:  "version-error",
	statusBackendError:  "backend-error",
	statusClientZombie:  "client-zombie",
}

// HasFailure reports that the overall operation failed.
func (s Status) HasFailure() bool { return s&statusFailure != 0 }

// HasInvalidOption reports an invalid or unsupported option.
func (s Status) HasInvalidOption() bool { return s&statusInvalidOption != 0 }

// HasNameNotUnique reports that the requested client name was taken. With
// UseExactName this is fatal; otherwise the server appended "-01".."-99" and
// ClientName returns the name actually used.
func (s Status) HasNameNotUnique() bool { return s&statusNameNotUnique != 0 }

// HasServerStarted reports that the server was started by this operation.
func (s Status) HasServerStarted() bool { return s&statusServerStarted != 0 }

// HasServerFailed reports that the server could not be reached.
func (s Status) HasServerFailed() bool { return s&statusServerFailed != 0 }

// HasServerError reports a communication error with the server.
func (s Status) HasServerError() bool { return s&statusServerError != 0 }

// HasNoSuchClient reports that the requested client does not exist.
func (s Status) HasNoSuchClient() bool { return s&statusNoSuchClient != 0 }

// HasLoadFailure reports that an internal client could not be loaded.
func (s Status) HasLoadFailure() bool { return s&statusLoadFailure != 0 }

// HasInitFailure reports that the client could not be initialized.
func (s Status) HasInitFailure() bool { return s&statusInitFailure != 0 }

// HasShmFailure reports that shared memory could not be accessed.
func (s Status) HasShmFailure() bool { return s&statusShmFailure != 0 }

// HasVersionError reports a protocol version mismatch.
func (s Status) HasVersionError() bool { return s&statusVersionError != 0 }

// HasBackendError reports a backend error.
func (s Status) HasBackendError() bool { return s&statusBackendError != 0 }

// HasClientZombie reports that the client was zombified.
func (s Status) HasClientZombie() bool { return s&statusClientZombie != 0 }

func (s Status) String() string {
	return bitmask.Format(s, knownStatusBits, func(b Status) string { return statusNames[b] })
}
