package mtk

import (
	"bytes"
	"errors"
	"testing"
)

func TestBaudFrameGolden(t *testing.T) {
	cases := []struct {
		rate int
		want []byte
	}{
		{9600, []byte{
			0x04, 0x24, 0x0e, 0x00, 0xfd, 0x00,
			0x00, 0x80, 0x25, 0x00, 0x00,
			0x58, 0x0d, 0x0a,
		}},
		{115200, []byte{
			0x04, 0x24, 0x0e, 0x00, 0xfd, 0x00,
			0x00, 0x00, 0xc2, 0x01, 0x00,
			0x3e, 0x0d, 0x0a,
		}},
	}
	for _, tc := range cases {
		got := BaudFrame(tc.rate)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("BaudFrame(%d)=% 02x want % 02x", tc.rate, got, tc.want)
		}
	}
}

func TestBaudFrameRoundTrip(t *testing.T) {
	for _, rate := range Rates {
		d := NewDecoder(bytes.NewReader(BaudFrame(rate)))
		f, err := d.Next()
		if err != nil {
			t.Fatalf("rate %d: %v", rate, err)
		}
		if f.Baud == nil {
			t.Fatalf("rate %d: got %+v, want baud packet", rate, f)
		}
		if f.Baud.Rate != rate || f.Baud.Mode != 0 {
			t.Fatalf("rate %d: decoded rate=%d mode=%d", rate, f.Baud.Rate, f.Baud.Mode)
		}
	}
}

func TestDecoderSkipsNoise(t *testing.T) {
	var in bytes.Buffer
	in.Write([]byte{0x00, 0xff, 0x7e, 0x04, 0x00, 'x'}) // stray sync byte included
	in.Write(EncodeSentence("PMTK001,0,3"))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Sentence == nil || f.Sentence.Tag() != "PMTK001" {
		t.Fatalf("got %+v, want PMTK001 sentence", f)
	}
}

func TestDecoderDoubledSyncByte(t *testing.T) {
	// A stray 0x04 directly in front of a real packet: the second sync byte
	// check must re-enter the scan at the packet start, not past it.
	var in bytes.Buffer
	in.WriteByte(0x04)
	in.Write(BaudFrame(19200))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Baud == nil || f.Baud.Rate != 19200 {
		t.Fatalf("got %+v, want baud packet rate 19200", f)
	}
}

func TestDecoderDropsBadChecksumLine(t *testing.T) {
	var in bytes.Buffer
	in.WriteString("$PMTK001,0,3*31\r\n") // checksum off by one
	in.Write(EncodeSentence("PMTK001,604,3"))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Sentence == nil || f.Sentence.Field(1) != "604" {
		t.Fatalf("got %+v, want the second sentence", f)
	}
}

func TestDecoderDrainsUnknownBinary(t *testing.T) {
	// Well-formed packet with a command id nothing awaits: command 100,
	// two payload bytes, checksum 0x64^0xaa^0xbb.
	unknown := []byte{0x04, 0x24, 0x0b, 0x00, 0x64, 0x00, 0xaa, 0xbb, 0x75, 0x0d, 0x0a}
	var in bytes.Buffer
	in.Write(unknown)
	in.Write(EncodeSentence("PMTK001,0,3"))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Sentence == nil || f.Sentence.Tag() != "PMTK001" {
		t.Fatalf("got %+v, want the sentence after the drained packet", f)
	}
}

func TestDecoderInterleavedFrames(t *testing.T) {
	var in bytes.Buffer
	in.Write(EncodeSentence("GPGGA,1"))
	in.Write(BaudFrame(57600))
	in.Write(EncodeSentence("PMTK001,0,3"))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil || f.Sentence == nil || f.Sentence.Tag() != "GPGGA" {
		t.Fatalf("frame 1: %+v err=%v", f, err)
	}
	f, err = d.Next()
	if err != nil || f.Baud == nil || f.Baud.Rate != 57600 {
		t.Fatalf("frame 2: %+v err=%v", f, err)
	}
	f, err = d.Next()
	if err != nil || f.Sentence == nil || f.Sentence.Tag() != "PMTK001" {
		t.Fatalf("frame 3: %+v err=%v", f, err)
	}
}

func TestDecoderTruncatedFrame(t *testing.T) {
	cases := [][]byte{
		BaudFrame(9600)[:5],  // binary cut inside the header
		[]byte("$PMTK001,0"), // text cut before the newline
		{0x04},               // lone sync byte
		{},                   // empty stream
	}
	for _, in := range cases {
		d := NewDecoder(bytes.NewReader(in))
		_, err := d.Next()
		if !errors.Is(err, ErrNoFrame) {
			t.Errorf("input % 02x: err=%v want ErrNoFrame", in, err)
		}
	}
}

func TestDecoderRejectsAbsurdLength(t *testing.T) {
	// Length field beyond the cap: header is discarded, scan continues and
	// finds the following sentence.
	var in bytes.Buffer
	in.Write([]byte{0x04, 0x24, 0xff, 0x7f, 0x00, 0x00})
	in.Write(EncodeSentence("PMTK001,0,3"))
	d := NewDecoder(&in)

	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Sentence == nil || f.Sentence.Tag() != "PMTK001" {
		t.Fatalf("got %+v, want sentence", f)
	}
}
