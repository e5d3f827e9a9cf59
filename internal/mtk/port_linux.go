//go:build linux

package mtk

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SerialPort is a Linux tty opened raw and exclusive. Reads are bounded by
// the configured timeout (termios VTIME), so a reader blocked on a silent
// chip always wakes and can re-check its cancellation state.
type SerialPort struct {
	path  string
	vtime uint8

	mu   sync.Mutex
	fd   int
	baud int
}

// Open opens the tty at path in raw 8N1 mode at the given rate. The port is
// held exclusively: a device already driven by another process makes Open
// fail with ErrBusy. readTimeout is rounded to deciseconds and clamped to
// the VTIME range.
func Open(path string, rate int, readTimeout time.Duration) (*SerialPort, error) {
	p := &SerialPort{path: path, fd: -1, vtime: toVtime(readTimeout)}
	if err := p.open(rate); err != nil {
		return nil, err
	}
	return p, nil
}

func toVtime(d time.Duration) uint8 {
	ds := d / (100 * time.Millisecond)
	if ds < 1 {
		ds = 1
	}
	if ds > 255 {
		ds = 255
	}
	return uint8(ds)
}

func (p *SerialPort) open(rate int) error {
	fd, err := unix.Open(p.path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		if err == unix.EBUSY {
			return fmt.Errorf("%w: %s", ErrBusy, p.path)
		}
		return fmt.Errorf("open %s: %w", p.path, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	// Exclusive access, both ways: TIOCEXCL makes later opens fail with
	// EBUSY, flock detects a holder that only took the advisory lock.
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("%w: %s (%v)", ErrBusy, p.path, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		return fmt.Errorf("tiocexcl %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.fd = fd
	p.mu.Unlock()
	if err := p.SetBaud(rate); err != nil {
		p.mu.Lock()
		p.fd = -1
		p.mu.Unlock()
		return err
	}
	ok = true
	return nil
}

// SetBaud retunes the port, also re-applying the raw-mode flags. TCSETSW
// waits for pending output first, so a frame written at the old rate leaves
// the wire intact before the rate changes under it.
func (p *SerialPort) SetBaud(rate int) error {
	spd, err := baudBits(rate)
	if err != nil {
		return err
	}
	fd, err := p.handle()
	if err != nil {
		return err
	}
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgets %s: %w", p.path, err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	// VMIN=0 with VTIME set makes read return 0 at expiry, which Read maps
	// to ErrReadTimeout.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = p.vtime

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETSW, t); err != nil {
		return fmt.Errorf("tcsetsw %s: %w", p.path, err)
	}
	p.mu.Lock()
	p.baud = rate
	p.mu.Unlock()
	return nil
}

func (p *SerialPort) Baud() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baud
}

// Read blocks for at most the configured read timeout. An expired read
// returns ErrReadTimeout; callers must not treat it as end of stream.
func (p *SerialPort) Read(b []byte) (int, error) {
	fd, err := p.handle()
	if err != nil {
		return 0, err
	}
	for {
		n, rerr := unix.Read(fd, b)
		if rerr == unix.EINTR {
			continue
		}
		if rerr != nil {
			return 0, fmt.Errorf("read %s: %w", p.path, rerr)
		}
		if n == 0 {
			return 0, ErrReadTimeout
		}
		return n, nil
	}
}

func (p *SerialPort) Write(b []byte) (int, error) {
	fd, err := p.handle()
	if err != nil {
		return 0, err
	}
	total := 0
	for total < len(b) {
		n, werr := unix.Write(fd, b[total:])
		if werr == unix.EINTR {
			continue
		}
		if werr != nil {
			return total, fmt.Errorf("write %s: %w", p.path, werr)
		}
		total += n
	}
	return total, nil
}

// FlushInput discards bytes the kernel has received but nobody has read.
func (p *SerialPort) FlushInput() error {
	fd, err := p.handle()
	if err != nil {
		return err
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("tcflsh %s: %w", p.path, err)
	}
	return nil
}

// Drain blocks until the UART has clocked out all pending output.
func (p *SerialPort) Drain() error {
	fd, err := p.handle()
	if err != nil {
		return err
	}
	// tcdrain(3) is TCSBRK with a nonzero argument.
	if err := unix.IoctlSetInt(fd, unix.TCSBRK, 1); err != nil {
		return fmt.Errorf("tcdrain %s: %w", p.path, err)
	}
	return nil
}

// Suspend releases the device so another process can open it. The port
// settings are kept for Resume.
func (p *SerialPort) Suspend() error {
	return p.Close()
}

// Resume reopens the device with the settings it had at Suspend.
func (p *SerialPort) Resume() error {
	p.mu.Lock()
	if p.fd >= 0 {
		p.mu.Unlock()
		return nil
	}
	rate := p.baud
	p.mu.Unlock()
	return p.open(rate)
}

func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	if err != nil {
		return fmt.Errorf("close %s: %w", p.path, err)
	}
	return nil
}

func (p *SerialPort) handle() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return -1, fmt.Errorf("%s: %w", p.path, os.ErrClosed)
	}
	return p.fd, nil
}

func baudBits(baud int) (uint32, error) {
	switch baud {
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	default:
		return 0, fmt.Errorf("unsupported baud rate %d", baud)
	}
}
