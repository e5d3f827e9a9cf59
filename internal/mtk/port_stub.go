//go:build !linux

package mtk

import (
	"fmt"
	"time"
)

// SerialPort is only implemented for Linux termios.
type SerialPort struct{}

func Open(path string, rate int, readTimeout time.Duration) (*SerialPort, error) {
	return nil, fmt.Errorf("serial port not supported on this platform")
}

func errUnsupported() error {
	return fmt.Errorf("serial port not supported on this platform")
}

func (p *SerialPort) Read(b []byte) (int, error)  { return 0, errUnsupported() }
func (p *SerialPort) Write(b []byte) (int, error) { return 0, errUnsupported() }
func (p *SerialPort) Close() error                { return nil }
func (p *SerialPort) SetBaud(rate int) error      { return errUnsupported() }
func (p *SerialPort) Baud() int                   { return 0 }
func (p *SerialPort) FlushInput() error           { return errUnsupported() }
func (p *SerialPort) Drain() error                { return errUnsupported() }
func (p *SerialPort) Suspend() error              { return errUnsupported() }
func (p *SerialPort) Resume() error               { return errUnsupported() }
