package mtk

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Sentence is one decoded text frame. "$PMTK001,604,3*32" decodes to
// Fields{"PMTK001", "604", "3"}.
type Sentence struct {
	Fields []string
}

// Tag returns the leading field, which names the sentence type.
func (s Sentence) Tag() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[0]
}

// Field returns the i-th field, or "" when the sentence is too short.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}

// Flag returns the trailing field. For acknowledgements this is the status
// flag; AckSuccess means the command was applied.
func (s Sentence) Flag() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[len(s.Fields)-1]
}

func (s Sentence) String() string {
	return strings.Join(s.Fields, ",")
}

// Checksum folds body with 8-bit XOR, the checksum used by NMEA-style
// sentences. The frame delimiters never take part.
func Checksum(body string) byte {
	return xorBytes([]byte(body))
}

func xorBytes(p []byte) byte {
	var ck byte
	for _, b := range p {
		ck ^= b
	}
	return ck
}

// EncodeSentence frames body as "$<body>*<hh>\r\n" with the checksum in
// lowercase hex, ready to write to the chip.
func EncodeSentence(body string) []byte {
	return []byte(fmt.Sprintf("$%s*%02x\r\n", body, Checksum(body)))
}

// parseSentence decodes a received line with its leading '$' already
// stripped. A trailing *hh checksum is verified when present; sentences
// without one are accepted as-is.
func parseSentence(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Sentence{}, fmt.Errorf("empty sentence")
	}
	body := line
	if star := strings.LastIndexByte(line, '*'); star >= 0 {
		body = line[:star]
		sum := line[star+1:]
		if len(sum) != 2 {
			return Sentence{}, fmt.Errorf("bad checksum field %q", sum)
		}
		want, err := hex.DecodeString(sum)
		if err != nil {
			return Sentence{}, fmt.Errorf("bad checksum field %q", sum)
		}
		if got := Checksum(body); got != want[0] {
			return Sentence{}, fmt.Errorf("checksum mismatch: got %02x want %s", got, sum)
		}
	}
	return Sentence{Fields: strings.Split(body, ",")}, nil
}
