package mtk

import "io"

// Port is the serial channel to the chip. Reads must return ErrReadTimeout
// when they expire without data instead of blocking forever; the session's
// listener depends on that to notice cancellation. Implementations must
// tolerate one concurrent reader plus one concurrent writer.
type Port interface {
	io.ReadWriteCloser

	// SetBaud retunes the open port after draining pending output.
	SetBaud(rate int) error

	// Baud returns the rate the port is currently tuned to.
	Baud() int

	// FlushInput discards bytes received by the kernel but not yet read.
	FlushInput() error

	// Drain blocks until pending output has left the UART.
	Drain() error
}

// Suspender is implemented by ports that can release the underlying device
// and reacquire it later, so a helper program can borrow exclusive access.
type Suspender interface {
	Suspend() error
	Resume() error
}

// Rates lists every UART rate the chip and this tool agree on. Baud
// synchronization walks the whole set when the chip's current rate is
// unknown; the order only affects how fast it converges.
var Rates = []int{115200, 57600, 38400, 19200, 9600, 4800}

// SupportedRate reports whether rate is in Rates.
func SupportedRate(rate int) bool {
	for _, r := range Rates {
		if r == rate {
			return true
		}
	}
	return false
}
