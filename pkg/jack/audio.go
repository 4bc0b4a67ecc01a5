package jack

import "unsafe"

// Slice is implemented by *Immutable and *Mutable.
type Slice interface {
	Len() int
	Get(i int) (float32, error)
	IsExpired() bool
	Expire() error
}

func storeOf(sl Slice) *sliceStore {
	switch v := sl.(type) {
	case *Mutable:
		if v != nil {
			return v.reader.s
		}
	case *Immutable:
		if v != nil {
			return v.reader.s
		}
	}
	return nil
}

// ReadAudio copies the first nframes samples arriving at the audio input
// port p in the current cycle into dst. Call it only from a process listener
// of the client owning p. dst must come from a Pool.
func (s *Server) ReadAudio(p *PortHandle, dst *Mutable, nframes uint32) error {
	ref, samples, err := s.transfer(p, storeOf(dst), nframes, PortIsInput)
	if err != nil {
		return err
	}
	ptr := s.native.PortGetBuffer(ref, nframes)
	if ptr == nil {
		return ErrNativeBuffer
	}
	copy(samples, unsafe.Slice((*float32)(ptr), nframes))
	return nil
}

// WriteAudio copies the first nframes samples of src to the audio output port
// p for the current cycle. Call it only from a process listener of the
// client owning p. src must come from a Pool.
func (s *Server) WriteAudio(p *PortHandle, src Slice, nframes uint32) error {
	ref, samples, err := s.transfer(p, storeOf(src), nframes, PortIsOutput)
	if err != nil {
		return err
	}
	ptr := s.native.PortGetBuffer(ref, nframes)
	if ptr == nil {
		return ErrNativeBuffer
	}
	copy(unsafe.Slice((*float32)(ptr), nframes), samples[:nframes])
	return nil
}

// transfer validates a ReadAudio or WriteAudio request and returns the
// port reference and the slice memory to copy through.
func (s *Server) transfer(p *PortHandle, st *sliceStore, nframes uint32, direction PortFlag) (uintptr, []float32, error) {
	ref := s.portRef(p)
	if ref == 0 {
		return 0, nil, ErrInvalidHandle
	}
	if !p.portType.IsAudio() {
		return 0, nil, ErrNotAudioPort
	}
	if !p.flags.Contains(direction) {
		return 0, nil, ErrWrongDirection
	}
	if st == nil {
		return 0, nil, ErrNotTransferable
	}
	samples, err := st.direct()
	if err != nil {
		return 0, nil, err
	}
	if int(nframes) > len(samples) {
		return 0, nil, ErrFrameCount
	}
	return ref, samples, nil
}
