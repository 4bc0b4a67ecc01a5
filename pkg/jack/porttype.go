package jack

// PortType names the kind of data a port carries. Two ports can only be
// connected when their types are equal; equality is by name.
type PortType string

const (
	// DefaultAudio is the built-in type for 32 bit float mono audio ports.
	DefaultAudio PortType = "32 bit float mono audio"
	// DefaultMidi is the built-in type for raw MIDI ports.
	DefaultMidi PortType = "8 bit raw midi"
)

// CustomPortType describes a client supplied port type. The name may be at
// most PortTypeSize bytes long, otherwise registration fails. Ports of a
// custom type need a non-zero buffer size at registration.
func CustomPortType(name string) PortType {
	return PortType(name)
}

// IsAudio reports whether t is the built-in audio type.
func (t PortType) IsAudio() bool {
	return t == DefaultAudio
}

// IsBuiltin reports whether t is one of the types the server knows without a
// buffer size.
func (t PortType) IsBuiltin() bool {
	return t == DefaultAudio || t == DefaultMidi
}

func (t PortType) String() string {
	return string(t)
}
