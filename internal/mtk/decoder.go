package mtk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Frame is one decoded inbound frame. Exactly one pointer is set.
type Frame struct {
	// Sentence holds a text frame ("$...\r\n").
	Sentence *Sentence
	// Baud holds a binary set-rate packet, the only binary frame surfaced
	// rather than silently drained.
	Baud *BaudPacket
}

// Decoder scans a byte stream for frames. Bytes that neither open a binary
// packet nor a text sentence are skipped one at a time, so line noise or a
// mid-byte baud change cannot wedge the scanner; it re-synchronizes on the
// next frame boundary.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 512)}
}

// Next returns the next decodable frame. Expired port reads pass through as
// ErrReadTimeout so the caller can poll its cancellation state; a stream that
// ends mid-scan yields ErrNoFrame.
func (d *Decoder) Next() (Frame, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Frame{}, readErr(err)
		}
		switch b {
		case binSync1:
			f, ok, err := d.binFrame()
			if err != nil {
				return Frame{}, err
			}
			if ok {
				return f, nil
			}
		case '$':
			s, ok, err := d.textFrame()
			if err != nil {
				return Frame{}, err
			}
			if ok {
				return Frame{Sentence: &s}, nil
			}
		}
	}
}

// binFrame is entered after one binSync1 byte. A wrong follow-up byte is
// unread so the scan restarts at that byte, which keeps a doubled sync byte
// in front of a real packet decodable.
func (d *Decoder) binFrame() (Frame, bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return Frame{}, false, readErr(err)
	}
	if b != binSync2 {
		_ = d.r.UnreadByte()
		return Frame{}, false, nil
	}
	var hdr [4]byte
	if err := d.readFull(hdr[:]); err != nil {
		return Frame{}, false, err
	}
	length := int(binary.LittleEndian.Uint16(hdr[0:2]))
	cmd := binary.LittleEndian.Uint16(hdr[2:4])
	if length < binOverhead || length > binMaxLen {
		// Not a believable header. Treat the sync bytes as noise.
		return Frame{}, false, nil
	}
	rest := make([]byte, length-6)
	if err := d.readFull(rest); err != nil {
		return Frame{}, false, err
	}
	payload := rest[:len(rest)-3]
	sum := rest[len(rest)-3]
	end := binary.LittleEndian.Uint16(rest[len(rest)-2:])
	if end != binEndMark || sum != hdr[2]^hdr[3]^xorBytes(payload) {
		return Frame{}, false, nil
	}
	if cmd != cmdSetNMEA || len(payload) != 5 {
		// Well-formed but not a packet this side ever awaits; drained by
		// length and dropped.
		return Frame{}, false, nil
	}
	p := BaudPacket{
		Mode: payload[0],
		Rate: int(binary.LittleEndian.Uint32(payload[1:5])),
	}
	return Frame{Baud: &p}, true, nil
}

// textFrame is entered after a '$'. Anything that does not parse as a
// checksum-clean sentence before the newline is dropped as noise, including
// "lines" longer than the read buffer, which no real sentence approaches.
func (d *Decoder) textFrame() (Sentence, bool, error) {
	line, err := d.r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return Sentence{}, false, nil
		}
		return Sentence{}, false, readErr(err)
	}
	s, perr := parseSentence(string(line))
	if perr != nil {
		return Sentence{}, false, nil
	}
	return s, true, nil
}

func (d *Decoder) readFull(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		return readErr(err)
	}
	return nil
}

func readErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrNoFrame
	}
	return err
}
