package xlsb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// maxRecordLen bounds a single record payload. No legitimate BIFF12 record
// comes close; anything larger means the length field is corrupt.
const maxRecordLen = 10 << 20

// errShort is returned by field reads that run past the end of a record.
var errShort = errors.New("xlsb: record too short")

// recordStream iterates the records of one binary part held in memory.
type recordStream struct {
	data []byte
	pos  int
}

func newRecordStream(data []byte) *recordStream {
	return &recordStream{data: data}
}

// next returns the next record id and payload, or io.EOF at a clean end.
// A stream truncated after an id is reported as corruption, not EOF.
func (s *recordStream) next() (int, []byte, error) {
	if s.pos >= len(s.data) {
		return 0, nil, io.EOF
	}
	id, err := s.readID()
	if err != nil {
		return 0, nil, err
	}
	n, err := s.readLen()
	if err != nil {
		return 0, nil, fmt.Errorf("xlsb: length of record 0x%X: %w", id, err)
	}
	if n > maxRecordLen {
		return 0, nil, fmt.Errorf("xlsb: record 0x%X claims %d bytes", id, n)
	}
	if s.pos+n > len(s.data) {
		return 0, nil, fmt.Errorf("xlsb: record 0x%X truncated: %w", id, io.ErrUnexpectedEOF)
	}
	payload := s.data[s.pos : s.pos+n]
	s.pos += n
	return id, payload, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// readID accumulates up to four id bytes, continuation bit included.
func (s *recordStream) readID() (int, error) {
	var v uint32
	for i := range 4 {
		if s.pos >= len(s.data) {
			if i == 0 {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("xlsb: record id: %w", io.ErrUnexpectedEOF)
		}
		b := uint32(s.data[s.pos])
		s.pos++
		v |= b << (8 * i)
		if b&0x80 == 0 {
			return int(v), nil
		}
	}
	return 0, errors.New("xlsb: record id continuation bit set on 4th byte")
}

// readLen decodes a LEB128 length of at most four bytes.
func (s *recordStream) readLen() (int, error) {
	var v uint32
	for i := range 4 {
		if s.pos >= len(s.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := uint32(s.data[s.pos])
		s.pos++
		v |= (b & 0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int(v), nil
		}
	}
	return 0, errors.New("xlsb: record length continuation bit set on 4th byte")
}

// fieldReader decodes the little-endian fields of one record payload.
type fieldReader struct {
	b   []byte
	pos int
}

func newFieldReader(b []byte) *fieldReader {
	return &fieldReader{b: b}
}

func (r *fieldReader) remaining() int { return len(r.b) - r.pos }

func (r *fieldReader) skip(n int) error {
	if n < 0 || r.remaining() < n {
		return errShort
	}
	r.pos += n
	return nil
}

func (r *fieldReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShort
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *fieldReader) uint8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, errShort
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *fieldReader) uint16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, errShort
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *fieldReader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errShort
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *fieldReader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *fieldReader) float64() (float64, error) {
	if r.remaining() < 8 {
		return 0, errShort
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.b[r.pos:]))
	r.pos += 8
	return v, nil
}

// rk decodes an RkNumber: bit 0 divides by 100, bit 1 marks a 30-bit
// signed integer, otherwise the upper 30 bits are the high word of a double.
func (r *fieldReader) rk() (float64, error) {
	raw, err := r.int32()
	if err != nil {
		return 0, err
	}
	var v float64
	if raw&0x02 != 0 {
		v = float64(raw >> 2)
	} else {
		v = math.Float64frombits(uint64(uint32(raw)&0xFFFFFFFC) << 32)
	}
	if raw&0x01 != 0 {
		v /= 100
	}
	return v, nil
}

// wideString reads an XLWideString: uint32 character count + UTF-16LE.
func (r *fieldReader) wideString() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if n > maxRecordLen/2 {
		return "", fmt.Errorf("xlsb: string length %d too large", n)
	}
	return r.utf16(int(n))
}

// shortString reads a string with a uint16 character count, as PtgStr does.
func (r *fieldReader) shortString() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	return r.utf16(int(n))
}

func (r *fieldReader) utf16(chars int) (string, error) {
	raw, err := r.bytes(chars * 2)
	if err != nil {
		return "", err
	}
	u := make([]uint16, chars)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(u)), nil
}
