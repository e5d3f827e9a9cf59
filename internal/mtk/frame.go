package mtk

import "encoding/binary"

// Binary packet layout. The chip accepts a small family of length-prefixed
// binary packets alongside the text protocol; the only one sent here is
// command 253, which forces the UART into NMEA text mode at a chosen rate.
// All multi-byte fields are little-endian:
//
//	offset 0   u16  preamble 0x2404
//	offset 2   u16  total packet length
//	offset 4   u16  command id
//	offset 6   ...  payload
//	len-3      u8   checksum, XOR over command id and payload
//	len-2      u16  end marker 0x0a0d
const (
	binSync1 = 0x04
	binSync2 = 0x24

	binEndMark  = 0x0a0d
	binOverhead = 9 // preamble + length + command id + checksum + end marker

	// cmdSetNMEA is the binary command that drops the chip into NMEA text
	// mode at the rate carried in the payload.
	cmdSetNMEA = 253

	// baudFrameLen is the total length of a cmdSetNMEA packet: one mode
	// byte and a u32 rate on top of the framing overhead.
	baudFrameLen = binOverhead + 5

	// binMaxLen caps believable packet lengths so a corrupted header cannot
	// make the scanner drain an arbitrary amount of stream.
	binMaxLen = 256
)

// BaudPacket is a decoded binary set-rate packet.
type BaudPacket struct {
	Mode byte
	Rate int
}

// BaudFrame encodes the binary packet that forces the chip's UART into NMEA
// mode at rate. It is understood by the chip at any rate the UART can frame
// bytes at, which makes it the opening move of baud synchronization.
func BaudFrame(rate int) []byte {
	b := make([]byte, baudFrameLen)
	b[0] = binSync1
	b[1] = binSync2
	binary.LittleEndian.PutUint16(b[2:4], baudFrameLen)
	binary.LittleEndian.PutUint16(b[4:6], cmdSetNMEA)
	b[6] = 0 // NMEA mode
	binary.LittleEndian.PutUint32(b[7:11], uint32(rate))
	b[11] = xorBytes(b[4:11])
	binary.LittleEndian.PutUint16(b[12:14], binEndMark)
	return b
}
