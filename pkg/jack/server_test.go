package jack

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/internal/jacktest"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *jacktest.Server) {
	t.Helper()
	fake := jacktest.New()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMeterProvider(noop.NewMeterProvider()),
	}, opts...)
	s, err := New(fake, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func openClient(t *testing.T, s *Server, name string) *ClientHandle {
	t.Helper()
	c, status := s.ClientOpen(name, OpenOptionsOf(NoStartServer), "")
	if !c.IsValid() {
		t.Fatalf("ClientOpen(%q) failed: %v", name, status)
	}
	return c
}

func TestNew_NilNative(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); !errors.Is(err, ErrNilNative) {
		t.Errorf("New(nil) error = %v, want ErrNilNative", err)
	}
}

func TestServer_Version(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	if got := s.Version().String(); got != "1.9.22-0" {
		t.Errorf("Version() = %q, want 1.9.22-0", got)
	}
}

func TestServer_NameSizes(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	if got := s.ClientNameSize(); got != 64 {
		t.Errorf("ClientNameSize() = %d, want 64", got)
	}
	if got := s.PortNameSize(); got != 320 {
		t.Errorf("PortNameSize() = %d, want 320", got)
	}
	if got := s.PortTypeSize(); got != 32 {
		t.Errorf("PortTypeSize() = %d, want 32", got)
	}
}

// --------------------------------------------------------------------------------
// Clients

func TestClientOpenClose(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c, status := s.ClientOpen("recorder", OpenOptions{}, "")
	if !c.IsValid() {
		t.Fatalf("ClientOpen failed: %v", status)
	}
	if status != 0 {
		t.Errorf("status = %v, want 0", status)
	}
	if c.Name() != "recorder" || s.ClientName(c) != "recorder" {
		t.Errorf("Name() = %q, ClientName() = %q", c.Name(), s.ClientName(c))
	}
	if s.SampleRate(c) != 48000 || s.BufferSize(c) != 128 {
		t.Errorf("SampleRate() = %d, BufferSize() = %d", s.SampleRate(c), s.BufferSize(c))
	}
	if code := s.Activate(c); code != 0 {
		t.Errorf("Activate = %d", code)
	}
	if code := s.Deactivate(c); code != 0 {
		t.Errorf("Deactivate = %d", code)
	}

	if code := s.ClientClose(c); code != 0 {
		t.Errorf("ClientClose = %d, want 0", code)
	}
	if c.IsValid() {
		t.Error("client handle valid after ClientClose")
	}
	if code := s.ClientClose(c); code == 0 {
		t.Error("closing a closed client returned 0")
	}
	if n := fake.Calls("ClientClose"); n != 1 {
		t.Errorf("native ClientClose called %d times, want 1", n)
	}
	if len(fake.Clients()) != 0 {
		t.Errorf("clients left open: %v", fake.Clients())
	}
}

func TestClientOpen_NameNotUnique(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	first := openClient(t, s, "dup")

	second, status := s.ClientOpen("dup", OpenOptions{}, "")
	if !second.IsValid() {
		t.Fatalf("second ClientOpen failed: %v", status)
	}
	if !status.HasNameNotUnique() || status.HasFailure() {
		t.Errorf("status = %v, want name-not-unique only", status)
	}
	if second.Name() != "dup-01" {
		t.Errorf("Name() = %q, want dup-01", second.Name())
	}

	exact, status := s.ClientOpen("dup", OpenOptionsOf(UseExactName), "")
	if exact != nil {
		t.Error("ClientOpen with UseExactName returned a handle for a taken name")
	}
	if !status.HasFailure() || !status.HasNameNotUnique() {
		t.Errorf("status = %v, want failure|name-not-unique", status)
	}

	s.ClientClose(second)
	s.ClientClose(first)
}

func TestClientOpen_RejectedBeforeNative(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c, status := s.ClientOpen("", OpenOptions{}, "")
	if c != nil {
		t.Error("ClientOpen with an empty name returned a handle")
	}
	if !status.HasFailure() {
		t.Errorf("status = %v, want failure", status)
	}
	if n := fake.Calls("ClientOpen"); n != 0 {
		t.Errorf("native ClientOpen called %d times", n)
	}
}

func TestClientOpen_ServerName(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	c, status := s.ClientOpen("named", OpenOptions{}, "default")
	if !c.IsValid() {
		t.Fatalf("ClientOpen on the default server failed: %v", status)
	}
	s.ClientClose(c)

	c, status = s.ClientOpen("named", OpenOptions{}, "elsewhere")
	if c != nil || !status.HasServerFailed() {
		t.Errorf("ClientOpen on a missing server = %v, %v", c, status)
	}
}

// Handles that are nil or no longer valid are answered locally.
func TestInvalidHandles_NeverReachNative(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	closed := openClient(t, s, "closed")
	port := s.PortRegister(closed, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	if port == nil {
		t.Fatal("PortRegister failed")
	}
	s.ClientClose(closed)

	before := map[string]int{}
	methods := []string{
		"ClientName", "ClientClose", "Activate", "Deactivate", "SetProcessCallback",
		"OnShutdown", "SampleRate", "BufferSize", "PortRegister", "PortUnregister",
		"PortByName", "PortName", "PortShortName", "PortRequestMonitor", "PortGetBuffer",
		"Connect", "Disconnect", "GetPorts",
	}
	for _, m := range methods {
		before[m] = fake.Calls(m)
	}

	pool := newTestPool(t, 1, 128)
	buf, _ := pool.Acquire()
	defer buf.Expire()

	for _, c := range []*ClientHandle{nil, closed} {
		if code := s.ClientClose(c); code != CodeInvalidArgument {
			t.Errorf("ClientClose = %d", code)
		}
		if name := s.ClientName(c); name != "" {
			t.Errorf("ClientName = %q", name)
		}
		if code := s.Activate(c); code != CodeInvalidArgument {
			t.Errorf("Activate = %d", code)
		}
		if code := s.Deactivate(c); code != CodeInvalidArgument {
			t.Errorf("Deactivate = %d", code)
		}
		if code := s.RegisterProcessListener(c, ProcessFunc(func(uint32) int { return 0 })); code != CodeInvalidArgument {
			t.Errorf("RegisterProcessListener = %d", code)
		}
		if code := s.RegisterShutdownListener(c, ShutdownFunc(func() {})); code != CodeInvalidArgument {
			t.Errorf("RegisterShutdownListener = %d", code)
		}
		if s.SampleRate(c) != 0 || s.BufferSize(c) != 0 {
			t.Error("SampleRate or BufferSize non-zero")
		}
		if p := s.PortRegister(c, "x", DefaultAudio, PortFlagsOf(PortIsOutput), 0); p != nil {
			t.Error("PortRegister returned a handle")
		}
		if p := s.PortByName(c, "system:capture_1"); p != nil {
			t.Error("PortByName returned a handle")
		}
		if code := s.PortUnregister(c, port); code != CodeInvalidArgument {
			t.Errorf("PortUnregister = %d", code)
		}
		if code := s.Connect(c, "system:capture_1", "system:playback_1"); code != CodeInvalidArgument {
			t.Errorf("Connect = %d", code)
		}
		if code := s.Disconnect(c, "system:capture_1", "system:playback_1"); code != CodeInvalidArgument {
			t.Errorf("Disconnect = %d", code)
		}
		if _, err := s.GetPorts(c, "", "", PortFlags{}); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("GetPorts error = %v", err)
		}
	}

	for _, p := range []*PortHandle{nil, port} {
		if name := s.PortName(p); name != InvalidPortName {
			t.Errorf("PortName = %q", name)
		}
		if name := s.PortShortName(p); name != InvalidPortName {
			t.Errorf("PortShortName = %q", name)
		}
		if code := s.PortRequestMonitor(p, true); code != CodeInvalidArgument {
			t.Errorf("PortRequestMonitor = %d", code)
		}
		if err := s.ReadAudio(p, buf, 128); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("ReadAudio error = %v", err)
		}
		if err := s.WriteAudio(p, buf, 128); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("WriteAudio error = %v", err)
		}
	}

	for _, m := range methods {
		if got := fake.Calls(m); got != before[m] {
			t.Errorf("native %s called %d times with invalid handles", m, got-before[m])
		}
	}
}

func TestForeignHandles(t *testing.T) {
	t.Parallel()

	a, _ := newTestServer(t)
	b, fakeB := newTestServer(t)
	c := openClient(t, a, "owner")
	defer a.ClientClose(c)

	if name := b.ClientName(c); name != "" {
		t.Errorf("foreign ClientName = %q", name)
	}
	if code := b.ClientClose(c); code != CodeInvalidArgument {
		t.Errorf("foreign ClientClose = %d", code)
	}
	if !c.IsValid() {
		t.Error("foreign ClientClose invalidated the handle")
	}
	if n := fakeB.Calls("ClientName") + fakeB.Calls("ClientClose"); n != 0 {
		t.Errorf("foreign server reached its native library %d times", n)
	}
}

// --------------------------------------------------------------------------------
// Ports

func TestPortRegisterUnregister(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	p := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	if !p.IsValid() {
		t.Fatal("PortRegister failed")
	}
	if got := s.PortName(p); got != "tester:in" {
		t.Errorf("PortName = %q, want tester:in", got)
	}
	if got := s.PortShortName(p); got != "in" {
		t.Errorf("PortShortName = %q, want in", got)
	}
	if p.Type() != DefaultAudio || !p.Flags().Contains(PortIsInput) {
		t.Errorf("cached type %q flags %v", p.Type(), p.Flags())
	}

	if dup := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0); dup != nil {
		t.Error("registered the same port name twice")
	}

	sibling := s.PortByName(c, "tester:in")
	if !sibling.IsValid() {
		t.Fatal("PortByName failed")
	}

	if code := s.PortUnregister(c, p); code != 0 {
		t.Errorf("PortUnregister = %d, want 0", code)
	}
	if p.IsValid() || sibling.IsValid() {
		t.Error("port handles valid after PortUnregister")
	}
	if got := s.PortName(sibling); got != InvalidPortName {
		t.Errorf("PortName of an unregistered port = %q", got)
	}
	if code := s.PortUnregister(c, p); code != CodeInvalidArgument {
		t.Errorf("second PortUnregister = %d", code)
	}
}

func TestPortUnregister_ForeignPortKeepsOwnerHandle(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	a := openClient(t, s, "a")
	defer s.ClientClose(a)
	b := openClient(t, s, "b")
	defer s.ClientClose(b)

	owned := s.PortRegister(a, "out", DefaultAudio, PortFlagsOf(PortIsOutput), 0)
	if owned == nil {
		t.Fatal("PortRegister failed")
	}
	borrowed := s.PortByName(b, "a:out")
	if !borrowed.IsValid() {
		t.Fatal("PortByName failed")
	}

	if code := s.PortUnregister(b, borrowed); code != CodeInvalidArgument {
		t.Errorf("PortUnregister through another client = %d, want %d", code, CodeInvalidArgument)
	}
	if fake.Calls("PortUnregister") != 0 {
		t.Error("unregistering another client's port reached the native library")
	}
	if !owned.IsValid() || !borrowed.IsValid() {
		t.Fatal("rejected PortUnregister invalidated the port")
	}
	if ports, _ := s.GetPorts(a, "a:out", "", PortFlags{}); !slices.Equal(ports, []string{"a:out"}) {
		t.Errorf("GetPorts = %v, want [a:out]", ports)
	}

	if code := s.PortUnregister(a, owned); code != 0 {
		t.Errorf("owner PortUnregister = %d, want 0", code)
	}
	if borrowed.IsValid() {
		t.Error("borrowed handle valid after the owner unregistered the port")
	}
}

func TestPortUnregister_SiblingsUnregisterOnce(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	p := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	sibling := s.PortByName(c, "tester:in")
	if !p.IsValid() || !sibling.IsValid() {
		t.Fatal("could not set up sibling handles")
	}

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i, h := range []*PortHandle{p, sibling} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = s.PortUnregister(c, h)
		}()
	}
	wg.Wait()

	if n := fake.Calls("PortUnregister"); n != 1 {
		t.Errorf("native PortUnregister called %d times, want 1", n)
	}
	succeeded := 0
	for _, code := range codes {
		if code == 0 {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("codes = %v, want exactly one success", codes)
	}
}

func TestClientClose_InvalidatesPorts(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	c := openClient(t, s, "tester")
	in := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	out := s.PortRegister(c, "out", DefaultAudio, PortFlagsOf(PortIsOutput), 0)
	byName := s.PortByName(c, "tester:out")
	if !in.IsValid() || !out.IsValid() || !byName.IsValid() {
		t.Fatal("port setup failed")
	}

	s.ClientClose(c)
	for _, p := range []*PortHandle{in, out, byName} {
		if p.IsValid() {
			t.Errorf("port %q valid after its client closed", p.ShortName())
		}
	}
}

func TestPortRegister_CustomType(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	osc := CustomPortType("osc messages")
	if p := s.PortRegister(c, "osc", osc, PortFlagsOf(PortIsOutput), 0); p != nil {
		t.Error("custom port registered without a buffer size")
	}
	if n := fake.Calls("PortRegister"); n != 0 {
		t.Errorf("native PortRegister called %d times", n)
	}
	p := s.PortRegister(c, "osc", osc, PortFlagsOf(PortIsOutput), 1024)
	if !p.IsValid() || p.Type() != osc {
		t.Errorf("custom port = %v", p)
	}
}

func TestPortByName_ReadsNativeAttributes(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	p := s.PortByName(c, "system:capture_1")
	if !p.IsValid() {
		t.Fatal("PortByName(system:capture_1) failed")
	}
	if p.ShortName() != "capture_1" || p.Type() != DefaultAudio {
		t.Errorf("ShortName = %q, Type = %q", p.ShortName(), p.Type())
	}
	want := PortFlagsOf(PortIsOutput, PortIsPhysical, PortIsTerminal)
	if p.Flags() != want {
		t.Errorf("Flags = %v, want %v", p.Flags(), want)
	}

	if s.PortByName(c, "system:nothing") != nil {
		t.Error("PortByName found a missing port")
	}
}

func TestPortRequestMonitor(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	playback := s.PortByName(c, "system:playback_1")
	if code := s.PortRequestMonitor(playback, true); code != 0 {
		t.Errorf("PortRequestMonitor = %d, want 0", code)
	}
	if !fake.Monitoring("system:playback_1") {
		t.Error("monitoring not requested natively")
	}

	capture := s.PortByName(c, "system:capture_1")
	if code := s.PortRequestMonitor(capture, true); code != CodeInvalidArgument {
		t.Errorf("PortRequestMonitor without PortCanMonitor = %d", code)
	}
}

func TestGetPorts(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	for _, pattern := range []string{"*1", "[", "a(b"} {
		if _, err := s.GetPorts(c, pattern, "", PortFlags{}); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("GetPorts(%q) error = %v, want ErrInvalidPattern", pattern, err)
		}
		if _, err := s.GetPorts(c, "", pattern, PortFlags{}); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("GetPorts(type %q) error = %v, want ErrInvalidPattern", pattern, err)
		}
	}
	if n := fake.Calls("GetPorts"); n != 0 {
		t.Errorf("native GetPorts called %d times with invalid patterns", n)
	}

	tests := []struct {
		name        string
		namePattern string
		typePattern string
		flags       PortFlags
		want        []string
	}{
		{"no match", "impossible", "", PortFlags{}, []string{}},
		{"capture", "system:capture_.*", "", PortFlags{}, []string{"system:capture_1", "system:capture_2"}},
		{"physical inputs", "", "", PortFlagsOf(PortIsInput, PortIsPhysical), []string{"system:playback_1", "system:playback_2"}},
		{"midi", "", "midi", PortFlags{}, []string{}},
		{"repetition", "1*", "audio", PortFlagsOf(PortIsOutput), []string{"system:capture_1", "system:capture_2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetPorts(c, tt.namePattern, tt.typePattern, tt.flags)
			if err != nil {
				t.Fatalf("GetPorts: %v", err)
			}
			if got == nil {
				t.Fatal("GetPorts returned nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("GetPorts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyPattern(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"", "1*", "system:.*", "^a|b$", "[[:digit:]]+"} {
		if err := VerifyPattern(ok); err != nil {
			t.Errorf("VerifyPattern(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"*1", "(", "x{2,1}"} {
		if err := VerifyPattern(bad); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("VerifyPattern(%q) = %v, want ErrInvalidPattern", bad, err)
		}
	}
}

func TestConnectDisconnect(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	const src, dst = "system:capture_1", "system:playback_1"
	if code := s.Connect(c, src, dst); code != 0 {
		t.Fatalf("Connect = %d, want 0", code)
	}
	if !fake.Connected(src, dst) {
		t.Error("ports not connected natively")
	}
	if code := s.Connect(c, src, dst); code != jacktest.EEXIST {
		t.Errorf("second Connect = %d, want EEXIST", code)
	}
	if code := s.Connect(c, dst, src); code == 0 {
		t.Error("connected an input to an output")
	}
	if code := s.Disconnect(c, src, dst); code != 0 {
		t.Errorf("Disconnect = %d, want 0", code)
	}
	if code := s.Disconnect(c, src, dst); code == 0 {
		t.Error("disconnected an unconnected pair")
	}

	calls := fake.Calls("Connect")
	if code := s.Connect(c, "", dst); code != CodeInvalidArgument {
		t.Errorf("Connect with an empty name = %d", code)
	}
	if fake.Calls("Connect") != calls {
		t.Error("empty port name reached the native library")
	}
}

// --------------------------------------------------------------------------------
// Audio

func TestReadWriteAudio_Passthrough(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	in := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	out := s.PortRegister(c, "out", DefaultAudio, PortFlagsOf(PortIsOutput), 0)
	pool, err := s.NewClientPool(c, 2)
	if err != nil {
		t.Fatalf("NewClientPool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	ramp := make([]float32, 128)
	for i := range ramp {
		ramp[i] = float32(i) / 128
	}
	if err := fake.Fill("system:capture_1", ramp); err != nil {
		t.Fatal(err)
	}

	var cycleErr error
	code := s.RegisterProcessListener(c, ProcessFunc(func(nframes uint32) int {
		m, err := pool.Acquire()
		if err != nil {
			cycleErr = err
			return 1
		}
		defer m.Expire()
		if err := s.ReadAudio(in, m, nframes); err != nil {
			cycleErr = err
			return 1
		}
		for i := range m.Len() {
			v, _ := m.Get(i)
			_ = m.Put(i, 2*v)
		}
		if err := s.WriteAudio(out, m, nframes); err != nil {
			cycleErr = err
			return 1
		}
		return 0
	}))
	if code != 0 {
		t.Fatalf("RegisterProcessListener = %d", code)
	}
	s.Connect(c, "system:capture_1", "tester:in")
	s.Connect(c, "tester:out", "system:playback_1")
	s.Activate(c)

	// The second cycle delivers the first cycle's output to the playback port.
	for range 2 {
		if failed := fake.Cycle(); failed != 0 {
			t.Fatalf("cycle failed: %v", cycleErr)
		}
	}

	got := fake.Buffer("system:playback_1")
	for i := range ramp {
		if got[i] != 2*ramp[i] {
			t.Fatalf("playback[%d] = %v, want %v", i, got[i], 2*ramp[i])
		}
	}
	if total, failed := c.Cycles(); total != 2 || failed != 0 {
		t.Errorf("Cycles() = %d, %d, want 2, 0", total, failed)
	}
	if pool.Available() != 2 {
		t.Errorf("pool leaked buffers: %d available", pool.Available())
	}
}

func TestReadWriteAudio_Errors(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	in := s.PortRegister(c, "in", DefaultAudio, PortFlagsOf(PortIsInput), 0)
	out := s.PortRegister(c, "out", DefaultAudio, PortFlagsOf(PortIsOutput), 0)
	midi := s.PortRegister(c, "midi", DefaultMidi, PortFlagsOf(PortIsInput), 0)

	pool := newTestPool(t, 2, 128)
	m, _ := pool.Acquire()
	defer m.Expire()
	expired, _ := pool.Acquire()
	_ = expired.Expire()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"read from output", s.ReadAudio(out, m, 128), ErrWrongDirection},
		{"write to input", s.WriteAudio(in, m, 128), ErrWrongDirection},
		{"midi port", s.ReadAudio(midi, m, 128), ErrNotAudioPort},
		{"heap slice", s.ReadAudio(in, WrapSamples(make([]float32, 128)), 128), ErrNotTransferable},
		{"nil slice", s.ReadAudio(in, nil, 128), ErrNotTransferable},
		{"nil source", s.WriteAudio(out, (*Immutable)(nil), 128), ErrNotTransferable},
		{"too many frames", s.ReadAudio(in, m, 129), ErrFrameCount},
		{"expired slice", s.WriteAudio(out, expired, 128), ErrExpired},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, tt.err, tt.want)
		}
	}
	if n := fake.Calls("PortGetBuffer"); n != 0 {
		t.Errorf("native PortGetBuffer called %d times", n)
	}
}

// --------------------------------------------------------------------------------
// Listeners

func TestProcessListener_PanicCountsAsFailure(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	cycle := 0
	s.RegisterProcessListener(c, ProcessFunc(func(uint32) int {
		cycle++
		if cycle == 2 {
			panic("boom")
		}
		return 0
	}))
	s.Activate(c)

	fake.Cycle()
	if failed := fake.Cycle(); failed != 1 {
		t.Errorf("panicking cycle reported %d failures, want 1", failed)
	}
	fake.Cycle()

	if total, failed := c.Cycles(); total != 3 || failed != 1 {
		t.Errorf("Cycles() = %d, %d, want 3, 1", total, failed)
	}
}

func TestProcessListener_RejectedAfterActivate(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	c := openClient(t, s, "tester")
	defer s.ClientClose(c)

	s.Activate(c)
	if code := s.RegisterProcessListener(c, ProcessFunc(func(uint32) int { return 0 })); code == 0 {
		t.Error("process listener installed on an active client")
	}
	if code := s.RegisterProcessListener(c, nil); code != CodeInvalidArgument {
		t.Errorf("nil listener = %d", code)
	}
}

func TestShutdownListener(t *testing.T) {
	t.Parallel()

	s, fake := newTestServer(t)
	c := openClient(t, s, "tester")

	var notified bool
	if code := s.RegisterShutdownListener(c, ShutdownFunc(func() { notified = true })); code != 0 {
		t.Fatalf("RegisterShutdownListener = %d", code)
	}
	fake.Shutdown()

	if !notified {
		t.Error("shutdown listener not called")
	}
	if !c.IsValid() {
		t.Error("server shutdown invalidated the handle")
	}
	if code := s.ClientClose(c); code != 0 {
		t.Errorf("ClientClose after shutdown = %d", code)
	}
}

// --------------------------------------------------------------------------------
// Logging

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) take() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.records
	h.records = nil
	return r
}

func TestLoggingBridge(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	s, fake := newTestServer(t, WithLogger(slog.New(h)))
	h.take()

	if s.LoggingLevel() != NativeInfo {
		t.Errorf("default LoggingLevel = %v, want info", s.LoggingLevel())
	}

	fake.EmitInfo("server started")
	fake.EmitError("cannot connect")
	records := h.take()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Level != slog.LevelInfo || records[0].Message != "server started" {
		t.Errorf("info record = %v %q", records[0].Level, records[0].Message)
	}
	if records[1].Level != slog.LevelError {
		t.Errorf("error record level = %v", records[1].Level)
	}

	s.SetLoggingLevel(slog.LevelWarn)
	fake.EmitInfo("dropped")
	fake.EmitError("kept")
	if records := h.take(); len(records) != 1 || records[0].Message != "kept" {
		t.Errorf("at warn: %d records", len(records))
	}

	s.SetLoggingLevel(LevelOff)
	fake.EmitError("silenced")
	if records := h.take(); len(records) != 0 {
		t.Errorf("at off: %d records", len(records))
	}
}
