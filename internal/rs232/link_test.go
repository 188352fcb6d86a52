package rs232

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// fakePort answers frames through respond. An empty answer behaves like
// a read timeout.
type fakePort struct {
	mu       sync.Mutex
	respond  func(req string) string
	pending  []byte
	written  []string
	writeErr error
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	req := string(b)
	p.written = append(p.written, req)
	if p.respond != nil {
		p.pending = append(p.pending, p.respond(req)...)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// tv simulates a set that acknowledges everything and remembers state.
type tv struct {
	on     bool
	volume string
	mute   string
	input  string
}

func (s *tv) respond(req string) string {
	f := strings.Fields(strings.TrimSpace(req))
	code, id, data := f[0], f[1], f[2]
	switch code {
	case "ka":
		if data == "ff" {
			if s.on {
				data = "01"
			} else {
				data = "00"
			}
		} else {
			s.on = data == "01"
		}
	case "kf":
		if data == "ff" {
			data = s.volume
		} else {
			s.volume = data
		}
	case "ke":
		if data == "ff" {
			data = s.mute
		} else {
			s.mute = data
		}
	case "xb":
		if data == "ff" {
			data = s.input
		} else {
			s.input = data
		}
	}
	return code[1:] + " " + id + " OK" + data + "x"
}

func withFakePort(t *testing.T, p *fakePort) {
	t.Helper()
	orig := openPort
	openPort = func(string, Options) (port, error) { return p, nil }
	t.Cleanup(func() { openPort = orig })
}

func TestOpen_InvalidSetID(t *testing.T) {
	for _, id := range []int{-1, 100} {
		if _, err := Open("/dev/ttyUSB0", id, Options{}); !errors.Is(err, ErrInvalidSetID) {
			t.Errorf("Open(id=%d) error = %v, want ErrInvalidSetID", id, err)
		}
	}
}

func TestOpen_PortFailure(t *testing.T) {
	orig := openPort
	openPort = func(string, Options) (port, error) { return nil, errors.New("no such file") }
	defer func() { openPort = orig }()

	_, err := Open("/dev/ttyUSB9", 1, Options{})
	if !errors.Is(err, ErrOpenFailed) {
		t.Errorf("Open() error = %v, want ErrOpenFailed", err)
	}
}

func TestRequest_Frames(t *testing.T) {
	tests := []struct {
		category, action string
		want             string
	}{
		{"power", "on", "ka 07 01\r"},
		{"power", "off", "ka 07 00\r"},
		{"power", "check", "ka 07 ff\r"},
		{"volume", "42", "kf 07 2a\r"},
		{"volume", "100", "kf 07 64\r"},
		{"volume", "up", "mc 07 02\r"},
		{"sound", "on", "ke 07 00\r"},
		{"mute", "off", "ke 07 01\r"},
		{"input", "hdmi2", "xb 07 91\r"},
		{"channel", "down", "mc 07 01\r"},
		{"key", "home", "mc 07 7c\r"},
	}

	for _, tt := range tests {
		t.Run(tt.category+"_"+tt.action, func(t *testing.T) {
			set := &tv{}
			p := &fakePort{respond: set.respond}
			withFakePort(t, p)

			link, err := Open("/dev/ttyUSB0", 7, Options{})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			ok, err := link.Request(tt.category, tt.action)
			if err != nil || !ok {
				t.Fatalf("Request() = %v, %v; want true, nil", ok, err)
			}
			if len(p.written) != 1 || p.written[0] != tt.want {
				t.Errorf("written = %q, want %q", p.written, tt.want)
			}
		})
	}
}

func TestRequest_UnknownCommand(t *testing.T) {
	p := &fakePort{}
	withFakePort(t, p)
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	for _, c := range [][2]string{{"volume", "101"}, {"input", "scart"}, {"warp", "9"}} {
		ok, err := link.Request(c[0], c[1])
		if ok || !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("Request(%s, %s) = %v, %v; want false, ErrUnknownCommand", c[0], c[1], ok, err)
		}
	}
	if len(p.written) != 0 {
		t.Errorf("nothing should be written, got %q", p.written)
	}
}

func TestRequest_NoAnswerAndNG(t *testing.T) {
	tests := []struct {
		name    string
		respond func(string) string
	}{
		{"timeout", func(string) string { return "" }},
		{"rejected", func(string) string { return "a 01 NG01x" }},
		{"garbage", func(string) string { return "zzzzx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFakePort(t, &fakePort{respond: tt.respond})
			link, _ := Open("/dev/ttyUSB0", 1, Options{})

			ok, err := link.Request("power", "on")
			if ok || err != nil {
				t.Errorf("Request() = %v, %v; want false, nil", ok, err)
			}
			if link.Status().On {
				t.Error("unacknowledged power on must not mark the set on")
			}
		})
	}
}

func TestRequest_WriteFailure(t *testing.T) {
	withFakePort(t, &fakePort{writeErr: errors.New("i/o error")})
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	_, err := link.Request("power", "on")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Request() error = %v, want ErrWriteFailed", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	set := &tv{on: true, volume: "2a", mute: "00", input: "92"}
	withFakePort(t, &fakePort{respond: set.respond})
	link, _ := Open("/dev/ttyUSB0", 3, Options{})

	if err := link.UpdateStatus(); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got := link.Status()
	want := Status{ID: 3, On: true, Volume: 42, Muted: true, Input: "hdmi3", Sources: Sources()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Status() = %+v, want %+v", got, want)
	}
}

func TestUpdateStatus_OffSkipsDetailQueries(t *testing.T) {
	set := &tv{on: false}
	p := &fakePort{respond: set.respond}
	withFakePort(t, p)
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	if err := link.UpdateStatus(); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if link.Status().On {
		t.Error("Status().On = true, want false")
	}
	if len(p.written) != 1 {
		t.Errorf("expected only the power query, got %q", p.written)
	}
}

func TestRequest_UpdatesCachedStatus(t *testing.T) {
	set := &tv{}
	withFakePort(t, &fakePort{respond: set.respond})
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	_, _ = link.Request("power", "on")
	_, _ = link.Request("volume", "30")
	_, _ = link.Request("input", "av1")

	s := link.Status()
	if !s.On || s.Volume != 30 || s.Input != "av1" {
		t.Errorf("Status() = %+v, want on, volume 30, input av1", s)
	}
}

func TestStatus_ReturnsCopy(t *testing.T) {
	withFakePort(t, &fakePort{})
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	s := link.Status()
	s.Sources[0] = "mutated"
	if link.Status().Sources[0] != "dtv" {
		t.Error("Status() must not expose internal slice")
	}
}

func TestClose(t *testing.T) {
	p := &fakePort{}
	withFakePort(t, p)
	link, _ := Open("/dev/ttyUSB0", 1, Options{})

	if err := link.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.closed {
		t.Error("port not closed")
	}
	if err := link.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := link.Request("power", "on"); !errors.Is(err, ErrClosed) {
		t.Errorf("Request() after Close error = %v, want ErrClosed", err)
	}
}

func TestPorts(t *testing.T) {
	orig := getPortsList
	defer func() { getPortsList = orig }()

	getPortsList = func() ([]string, error) {
		return []string{"/dev/ttyUSB1", "/dev/ttyS0", "/dev/ttyUSB0"}, nil
	}
	got, err := Ports()
	if err != nil {
		t.Fatalf("Ports() error = %v", err)
	}
	want := []string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyUSB1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ports() = %v, want %v", got, want)
	}

	getPortsList = func() ([]string, error) { return nil, errors.New("permission denied") }
	if _, err := Ports(); err == nil {
		t.Error("Ports() expected error")
	}
}

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		raw      string
		code     string
		wantOK   bool
		wantData string
		parsed   bool
	}{
		{"a 01 OK01x", "ka", true, "01", true},
		{"a 01 NG00x", "ka", false, "00", true},
		{"f 01 OK2Ax", "kf", true, "2a", true},
		{"b 01 OK01x", "ka", false, "", false},
		{"a 01", "ka", false, "", false},
		{"", "ka", false, "", false},
	}

	for _, tt := range tests {
		r, parsed := decodeReply([]byte(tt.raw), tt.code)
		if parsed != tt.parsed || r.ok != tt.wantOK || r.data != tt.wantData {
			t.Errorf("decodeReply(%q) = %+v, %v; want ok=%v data=%q parsed=%v",
				tt.raw, r, parsed, tt.wantOK, tt.wantData, tt.parsed)
		}
	}
}
