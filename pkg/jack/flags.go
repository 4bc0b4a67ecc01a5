package jack

import (
	"fmt"
	"strings"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/bitmask"
)

// --------------------------------------------------------------------------------
// Port flags

// PortFlag is a single port property, bound to the bit the native library
// uses for it.
type PortFlag uint64

const (
	// PortIsInput marks a port that can receive data.
	PortIsInput PortFlag = 0x1
	// PortIsOutput marks a port whose data can be read.
	PortIsOutput PortFlag = 0x2
	// PortIsPhysical marks a port that corresponds to a physical I/O connector.
	PortIsPhysical PortFlag = 0x4
	// PortCanMonitor marks a port for which PortRequestMonitor makes sense.
	// Clients that do not control physical interfaces should never set it.
	PortCanMonitor PortFlag = 0x8
	// PortIsTerminal marks a port at the boundary to the outside world: data
	// received is not passed on, or data produced does not originate from
	// another port. Synthesizers and I/O hardware clients set it.
	PortIsTerminal PortFlag = 0x10
)

var knownPortFlags = []PortFlag{PortIsInput, PortIsOutput, PortIsPhysical, PortCanMonitor, PortIsTerminal}

var portFlagNames = map[PortFlag]string{
	PortIsInput:    "input",
	PortIsOutput:   "output",
	PortIsPhysical: "physical",
	PortCanMonitor: "monitor",
	PortIsTerminal: "terminal",
}

func (f PortFlag) String() string {
	if name, ok := portFlagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PortFlag(0x%x)", uint64(f))
}

// ParsePortFlag returns the flag with the given name, as printed by String.
// Matching ignores case.
func ParsePortFlag(name string) (PortFlag, error) {
	for f, n := range portFlagNames {
		if strings.EqualFold(n, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: port flag %q", ErrUnknownFlag, name)
}

// PortFlags is a set of port flags. The zero value is the empty set.
//
// Bits without a known PortFlag survive decoding, so a mask read from the
// native library encodes back to exactly the same value.
type PortFlags struct {
	mask PortFlag
}

// PortFlagsOf builds a set from the given flags. Duplicates and order are
// irrelevant; no flags give the empty set.
func PortFlagsOf(flags ...PortFlag) PortFlags {
	return PortFlags{mask: bitmask.Encode(flags...)}
}

// DecodePortFlags interprets a native bitmask as a set.
func DecodePortFlags(mask uint64) PortFlags {
	return PortFlags{mask: PortFlag(mask)}
}

// Mask returns the bitmask handed to the native library.
func (s PortFlags) Mask() uint64 {
	return uint64(s.mask)
}

// Contains reports whether flag is a member of the set.
func (s PortFlags) Contains(flag PortFlag) bool {
	return bitmask.Contains(s.mask, flag)
}

// With returns a copy of the set that also contains flags.
func (s PortFlags) With(flags ...PortFlag) PortFlags {
	return PortFlags{mask: s.mask | bitmask.Encode(flags...)}
}

// Members lists the known flags in the set, lowest bit first.
func (s PortFlags) Members() []PortFlag {
	members, _ := bitmask.Decode(s.mask, knownPortFlags)
	return members
}

// Unknown returns the bits of the set that no PortFlag names.
func (s PortFlags) Unknown() uint64 {
	_, unknown := bitmask.Decode(s.mask, knownPortFlags)
	return uint64(unknown)
}

// IsEmpty reports whether no bit is set.
func (s PortFlags) IsEmpty() bool {
	return s.mask == 0
}

func (s PortFlags) String() string {
	return bitmask.Format(s.mask, knownPortFlags, PortFlag.String)
}

// ParsePortFlags parses names separated by "|" or ",". The empty string is
// the empty set.
func ParsePortFlags(s string) (PortFlags, error) {
	var set PortFlags
	for _, name := range splitFlagList(s) {
		f, err := ParsePortFlag(name)
		if err != nil {
			return PortFlags{}, err
		}
		set = set.With(f)
	}
	return set, nil
}

// --------------------------------------------------------------------------------
// Open options

// OpenOption requests a specific behaviour when opening a client.
type OpenOption uint32

const (
	// NoStartServer does not start the server when it is not already running.
	// Always in effect when JACK_NO_START_SERVER is set in the environment.
	NoStartServer OpenOption = 0x01
	// UseExactName fails instead of generating a unique client name.
	UseExactName OpenOption = 0x02
	// ServerName selects the server named in the open call.
	ServerName OpenOption = 0x04
	// LoadName loads an internal client by name.
	LoadName OpenOption = 0x08
	// LoadInit passes an init string to an internal client.
	LoadInit OpenOption = 0x10
	// SessionID passes a session token so a session manager can identify the
	// client again.
	SessionID OpenOption = 0x20
)

var knownOpenOptions = []OpenOption{NoStartServer, UseExactName, ServerName, LoadName, LoadInit, SessionID}

var openOptionNames = map[OpenOption]string{
	NoStartServer: "nostartserver",
	UseExactName:  "useexactname",
	ServerName:    "servername",
	LoadName:      "loadname",
	LoadInit:      "loadinit",
	SessionID:     "sessionid",
}

func (o OpenOption) String() string {
	if name, ok := openOptionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OpenOption(0x%x)", uint32(o))
}

// ParseOpenOption returns the option with the given name, as printed by
// String. Matching ignores case.
func ParseOpenOption(name string) (OpenOption, error) {
	for o, n := range openOptionNames {
		if strings.EqualFold(n, name) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: open option %q", ErrUnknownFlag, name)
}

// OpenOptions is a set of open options. The zero value is the empty set.
type OpenOptions struct {
	mask OpenOption
}

// OpenOptionsOf builds a set from the given options.
func OpenOptionsOf(options ...OpenOption) OpenOptions {
	return OpenOptions{mask: bitmask.Encode(options...)}
}

// DecodeOpenOptions interprets a native bitmask as a set.
func DecodeOpenOptions(mask uint32) OpenOptions {
	return OpenOptions{mask: OpenOption(mask)}
}

// Mask returns the bitmask handed to the native library.
func (s OpenOptions) Mask() uint32 {
	return uint32(s.mask)
}

// Contains reports whether option is a member of the set.
func (s OpenOptions) Contains(option OpenOption) bool {
	return bitmask.Contains(s.mask, option)
}

// With returns a copy of the set that also contains options.
func (s OpenOptions) With(options ...OpenOption) OpenOptions {
	return OpenOptions{mask: s.mask | bitmask.Encode(options...)}
}

// Without returns a copy of the set with options removed.
func (s OpenOptions) Without(options ...OpenOption) OpenOptions {
	return OpenOptions{mask: s.mask &^ bitmask.Encode(options...)}
}

// Members lists the known options in the set, lowest bit first.
func (s OpenOptions) Members() []OpenOption {
	members, _ := bitmask.Decode(s.mask, knownOpenOptions)
	return members
}

// Unknown returns the bits of the set that no OpenOption names.
func (s OpenOptions) Unknown() uint32 {
	_, unknown := bitmask.Decode(s.mask, knownOpenOptions)
	return uint32(unknown)
}

func (s OpenOptions) String() string {
	return bitmask.Format(s.mask, knownOpenOptions, OpenOption.String)
}

// ParseOpenOptions parses names the same way ParsePortFlags does.
func ParseOpenOptions(names ...string) (OpenOptions, error) {
	var set OpenOptions
	for _, list := range names {
		for _, name := range splitFlagList(list) {
			o, err := ParseOpenOption(name)
			if err != nil {
				return OpenOptions{}, err
			}
			set = set.With(o)
		}
	}
	return set, nil
}

func splitFlagList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ','
	})
	names := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, f)
		}
	}
	return names
}
