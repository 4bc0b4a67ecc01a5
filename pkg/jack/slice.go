package jack

// sliceStore is the state shared by the capabilities of one audio slice.
type sliceStore struct {
	samples []float32
	cursor  int
	expired bool

	// nil for slices over heap memory.
	buf *poolBuffer
}

// direct returns the backing samples for a native transfer. Only pool memory
// qualifies.
func (s *sliceStore) direct() ([]float32, error) {
	if s.expired {
		return nil, ErrExpired
	}
	if s.buf == nil {
		return nil, ErrNotTransferable
	}
	return s.samples, nil
}

func (s *sliceStore) check(i int) error {
	if s.expired {
		return ErrExpired
	}
	if i < 0 || i >= len(s.samples) {
		return &IndexError{Index: i, Len: len(s.samples)}
	}
	return nil
}

// --------------------------------------------------------------------------------
// Capabilities

// reader is the read capability of a slice.
type reader struct {
	s *sliceStore
}

// Len returns the number of samples. It does not change while the slice is
// live and is zero once it has expired.
func (r reader) Len() int {
	return len(r.s.samples)
}

// Get returns the sample at index i.
func (r reader) Get(i int) (float32, error) {
	if err := r.s.check(i); err != nil {
		return 0, err
	}
	return r.s.samples[i], nil
}

// Reset rewinds the sequential cursor to the first sample.
func (r reader) Reset() {
	r.s.cursor = 0
}

// HasNext reports whether GetNext would return a sample.
func (r reader) HasNext() bool {
	return !r.s.expired && r.s.cursor < len(r.s.samples)
}

// GetNext returns the sample under the cursor and advances it.
func (r reader) GetNext() (float32, error) {
	s := r.s
	if s.expired {
		return 0, ErrExpired
	}
	if s.cursor >= len(s.samples) {
		return 0, ErrUnderflow
	}
	v := s.samples[s.cursor]
	s.cursor++
	return v, nil
}

// CopyTo copies the samples into dst and returns how many were copied.
func (r reader) CopyTo(dst []float32) (int, error) {
	if r.s.expired {
		return 0, ErrExpired
	}
	return copy(dst, r.s.samples), nil
}

// Expire releases the backing storage, returning pool memory to its pool.
// Every later access fails with ErrExpired, including a second Expire.
func (r reader) Expire() error {
	s := r.s
	if s.expired {
		return ErrExpired
	}
	b := s.buf
	s.expired = true
	s.samples = nil
	s.cursor = 0
	s.buf = nil
	if b != nil {
		b.pool.recycle(b)
	}
	return nil
}

// IsExpired reports whether Expire has been called.
func (r reader) IsExpired() bool {
	return r.s.expired
}

// MutableCopy returns a new slice holding a copy of the samples. Pool-backed
// slices copy into another buffer of the same pool, so the copy fails with
// ErrPoolExhausted when the pool is empty.
func (r reader) MutableCopy() (*Mutable, error) {
	s := r.s
	if s.expired {
		return nil, ErrExpired
	}
	if s.buf == nil {
		return WrapSamples(append([]float32(nil), s.samples...)), nil
	}
	m, err := s.buf.pool.Acquire()
	if err != nil {
		return nil, err
	}
	copy(m.reader.s.samples, s.samples)
	return m, nil
}

// writer is the write capability of a slice.
type writer struct {
	s *sliceStore
}

// Put stores v at index i.
func (w writer) Put(i int, v float32) error {
	if err := w.s.check(i); err != nil {
		return err
	}
	w.s.samples[i] = v
	return nil
}

// PutNext stores v under the cursor and advances it. The cursor is shared
// with GetNext.
func (w writer) PutNext(v float32) error {
	s := w.s
	if s.expired {
		return ErrExpired
	}
	if s.cursor >= len(s.samples) {
		return ErrUnderflow
	}
	s.samples[s.cursor] = v
	s.cursor++
	return nil
}

// Fill sets every sample to v.
func (w writer) Fill(v float32) error {
	if w.s.expired {
		return ErrExpired
	}
	for i := range w.s.samples {
		w.s.samples[i] = v
	}
	return nil
}

// --------------------------------------------------------------------------------
// Slices

// Immutable is a read-only audio slice holding one cycle of mono samples.
// Slices are owned by one goroutine at a time.
type Immutable struct {
	reader
}

// Mutable is an audio slice that can also be written.
type Mutable struct {
	reader
	writer
}

func newMutable(s *sliceStore) *Mutable {
	return &Mutable{reader: reader{s: s}, writer: writer{s: s}}
}

// WrapSamples returns a slice over samples. It is heap-backed: the slice is
// usable locally but cannot be handed to ReadAudio or WriteAudio, which fail
// with ErrNotTransferable.
func WrapSamples(samples []float32) *Mutable {
	return newMutable(&sliceStore{samples: samples})
}

// AsImmutable returns a read-only snapshot of m. Writes to m after the call
// are not visible through the snapshot, and the two expire independently.
func (m *Mutable) AsImmutable() (*Immutable, error) {
	c, err := m.MutableCopy()
	if err != nil {
		return nil, err
	}
	return &Immutable{reader: c.reader}, nil
}
