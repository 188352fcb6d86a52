package rs232

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// maxReplyLen bounds a reply frame; anything longer is line noise.
const maxReplyLen = 32

// Options are the line settings for a link.
type Options struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Status is the last state read from the set.
type Status struct {
	ID      int
	On      bool
	Volume  int
	Muted   bool
	Input   string
	Sources []string
}

// port is the subset of serial.Port the link uses.
type port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// openPort opens the OS serial device. Tests replace it.
var openPort = func(name string, opts Options) (port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(opts.ReadTimeout); err != nil {
		p.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return p, nil
}

// Link is a synchronous client for one set on one serial port.
//
// Thread Safety:
//   - Methods are safe for concurrent use; requests are serialised.
type Link struct {
	name  string
	setID int

	mu     sync.Mutex
	port   port
	status Status
	closed bool
}

// Open opens the serial port and binds the link to setID.
//
// Parameters:
//   - name: OS device path, e.g. "/dev/ttyUSB0"
//   - setID: Display set ID, 0-99
//   - opts: Line settings
//
// Returns:
//   - *Link: Ready link; no traffic has been sent yet
//   - error: ErrInvalidSetID, or ErrOpenFailed wrapping the OS error
func Open(name string, setID int, opts Options) (*Link, error) {
	if setID < 0 || setID > MaxSetID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSetID, setID)
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = time.Second
	}

	p, err := openPort(name, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, name, err)
	}

	return &Link{
		name:  name,
		setID: setID,
		port:  p,
		status: Status{
			ID:      setID,
			Sources: Sources(),
		},
	}, nil
}

// Port returns the device path the link was opened on.
func (l *Link) Port() string { return l.name }

// Request sends one command and waits for the acknowledgement.
//
// Returns:
//   - bool: true when the set answered OK; false on NG or no answer
//   - error: ErrUnknownCommand, ErrWriteFailed, ErrReadFailed or ErrClosed
func (l *Link) Request(category, action string) (bool, error) {
	f, err := encode(category, action)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, answered, err := l.exchange(f)
	if err != nil || !answered || !r.ok {
		return false, err
	}
	l.applyLocked(f, r)
	return true, nil
}

// UpdateStatus refreshes the cached Status from the set. A set that does
// not answer the power query is reported as off.
func (l *Link) UpdateStatus() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, code := range []string{codePower, codeVolume, codeMute, codeInput} {
		f := frame{code: code, data: queryData}
		r, answered, err := l.exchange(f)
		if err != nil {
			return err
		}
		if !answered || !r.ok {
			if code == codePower {
				l.status.On = false
				return nil
			}
			continue
		}
		l.applyLocked(f, r)
		if code == codePower && !l.status.On {
			return nil
		}
	}
	return nil
}

// Status returns a copy of the cached state.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.status
	s.Sources = append([]string(nil), l.status.Sources...)
	return s
}

// Close releases the serial port. Further calls return ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}

// exchange writes f and reads one reply. answered is false on timeout or
// an unparseable reply.
func (l *Link) exchange(f frame) (r reply, answered bool, err error) {
	if l.closed {
		return reply{}, false, ErrClosed
	}

	// Drop stale bytes from an earlier timed-out exchange.
	_ = l.port.ResetInputBuffer() //nolint:errcheck // Stale input is also rejected by decodeReply

	if _, err := l.port.Write(f.bytes(l.setID)); err != nil {
		return reply{}, false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	raw, err := l.readReply()
	if err != nil {
		return reply{}, false, err
	}
	r, answered = decodeReply(raw, f.code)
	return r, answered, nil
}

// readReply reads until the terminator, a read timeout (zero-byte read),
// or maxReplyLen bytes.
func (l *Link) readReply() ([]byte, error) {
	buf := make([]byte, 0, maxReplyLen)
	one := make([]byte, 1)
	for len(buf) < maxReplyLen {
		n, err := l.port.Read(one)
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
		}
		if n == 0 {
			return buf, nil
		}
		buf = append(buf, one[0])
		if one[0] == replyTerminator {
			return buf, nil
		}
	}
	return buf, nil
}

// applyLocked folds an acknowledged reply into the cached status.
func (l *Link) applyLocked(f frame, r reply) {
	data := r.data
	if data == "" {
		data = f.data
	}

	switch f.code {
	case codePower:
		l.status.On = data == "01"
	case codeVolume:
		if v, err := strconv.ParseUint(data, 16, 8); err == nil && v <= 100 {
			l.status.Volume = int(v)
		}
	case codeMute:
		l.status.Muted = data == "00"
	case codeInput:
		if name := inputName(data); name != "" {
			l.status.Input = name
		}
	}
}
