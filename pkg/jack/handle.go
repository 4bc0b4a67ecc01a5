package jack

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// handle holds a native reference and its liveness. The reference is zero
// once invalidated and never becomes non-zero again.
type handle struct {
	ref     atomic.Uintptr
	closing atomic.Bool

	// Set at construction and never changed. A nil cell means the handle is
	// not tracked by any arena.
	owner *arena
	cell  *cell
	gen   uint32
}

func (h *handle) init(ref uintptr, owner *arena, c *cell, gen uint32) {
	h.ref.Store(ref)
	h.owner = owner
	h.cell = c
	h.gen = gen
}

// bindTo attaches the handle to a cell of a. It must run before the handle
// is shared.
func (h *handle) bindTo(a *arena, parent uintptr) {
	c, gen := a.bind(h.ref.Load(), parent)
	h.owner = a
	h.cell = c
	h.gen = gen
}

// claim reports whether the caller is the first to start destroying the
// object behind h. Handles sharing an arena cell share the claim.
func (h *handle) claim() bool {
	if h.cell != nil {
		return h.owner.claim(h.cell, h.gen)
	}
	return h.closing.CompareAndSwap(false, true)
}

// load returns the reference, or zero when the handle was invalidated or its
// arena cell has moved on to another generation.
func (h *handle) load() uintptr {
	ref := h.ref.Load()
	if ref == 0 {
		return 0
	}
	if h.cell != nil && h.cell.gen.Load() != h.gen {
		return 0
	}
	return ref
}

// loadFor is load restricted to handles issued by the arena a.
func (h *handle) loadFor(a *arena) uintptr {
	if h.owner != a {
		return 0
	}
	return h.load()
}

func (h *handle) invalidate() {
	h.ref.Store(0)
}

// --------------------------------------------------------------------------------
// ClientHandle

// ClientHandle refers to a client opened on the native server. Only a Server
// creates client handles; a nil *ClientHandle is the null handle.
//
// A handle is valid until the Server closes the client. Validity does not
// prove that the native client still exists: a client the server destroyed
// on its own (for example after a shutdown) keeps a valid handle until
// ClientClose is called on it.
type ClientHandle struct {
	h handle

	id        uuid.UUID
	name      string
	requested string
	logger    *slog.Logger
	stats     *clientStats
}

func newClientHandle(ref uintptr) *ClientHandle {
	c := &ClientHandle{id: uuid.New(), stats: &clientStats{}}
	c.h.init(ref, nil, nil, 0)
	c.logger = slog.Default().With("jack client uuid", c.id)
	return c
}

// IsValid reports whether the handle still refers to an open client. It is
// safe to call on a nil handle and from any goroutine.
func (c *ClientHandle) IsValid() bool {
	return c != nil && c.h.load() != 0
}

// Name returns the name the server assigned at open time, which differs from
// the requested name when the status reported HasNameNotUnique.
func (c *ClientHandle) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// ID returns the identifier used to tag this client's log records.
func (c *ClientHandle) ID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.id
}

func (c *ClientHandle) reference() uintptr {
	if c == nil {
		return 0
	}
	return c.h.load()
}

func (c *ClientHandle) invalidate() {
	c.h.invalidate()
}

// --------------------------------------------------------------------------------
// PortHandle

// PortHandle refers to a port on the native server. Only a Server creates
// port handles; a nil *PortHandle is the null handle.
//
// Handles obtained for the same port through PortRegister and PortByName
// share their liveness: unregistering through one invalidates the others.
type PortHandle struct {
	h handle

	shortName string
	fullName  string
	portType  PortType
	flags     PortFlags
	client    uintptr
}

func newPortHandle(ref uintptr, shortName string, portType PortType, flags PortFlags) *PortHandle {
	p := &PortHandle{
		shortName: shortName,
		portType:  portType,
		flags:     flags,
	}
	p.h.init(ref, nil, nil, 0)
	return p
}

// IsValid reports whether the handle still refers to a registered port.
func (p *PortHandle) IsValid() bool {
	return p != nil && p.h.load() != 0
}

// ShortName returns the cached short name, without the "client:" prefix.
func (p *PortHandle) ShortName() string {
	if p == nil {
		return ""
	}
	return p.shortName
}

// Type returns the cached port type.
func (p *PortHandle) Type() PortType {
	if p == nil {
		return ""
	}
	return p.portType
}

// Flags returns the cached port flags.
func (p *PortHandle) Flags() PortFlags {
	if p == nil {
		return PortFlags{}
	}
	return p.flags
}

func (p *PortHandle) reference() uintptr {
	if p == nil {
		return 0
	}
	return p.h.load()
}

func (p *PortHandle) invalidate() {
	p.h.invalidate()
}
