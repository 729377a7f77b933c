package sample

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// RecordSize is the encoded size of one sample record.
//
// Layout, little-endian, no padding:
//
//	offset 0  u64 timestamp_ns
//	offset 8  i32 value_milli
//	offset 12 u16 flags
//	offset 14 u16 reserved (always zero)
const RecordSize = 16

// ErrShortRecord is returned when a buffer is too small to hold a record.
var ErrShortRecord = errors.New("sample: short record")

// AppendRecord appends the binary record of s to b.
func AppendRecord(b []byte, s Sample) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(s.Timestamp.UnixNano()))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.ValueMilli))
	b = binary.LittleEndian.AppendUint16(b, uint16(s.Flags))
	b = binary.LittleEndian.AppendUint16(b, 0)
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Sample) MarshalBinary() ([]byte, error) {
	return AppendRecord(make([]byte, 0, RecordSize), s), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The reserved field
// is ignored.
func (s *Sample) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return errors.Wrapf(ErrShortRecord, "got %d bytes, need %d", len(b), RecordSize)
	}
	s.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(b[0:8])))
	s.ValueMilli = int32(binary.LittleEndian.Uint32(b[8:12]))
	s.Flags = Flags(binary.LittleEndian.Uint16(b[12:14]))
	return nil
}

// Encoder writes whole records to a stream.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 0, RecordSize)}
}

// Encode writes one record.
func (e *Encoder) Encode(s Sample) error {
	e.buf = AppendRecord(e.buf[:0], s)
	_, err := e.w.Write(e.buf)
	return err
}

// Decoder reads whole records from a stream.
type Decoder struct {
	r   io.Reader
	buf [RecordSize]byte
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads one record. It returns io.EOF at a clean end of stream and
// io.ErrUnexpectedEOF if the stream ends inside a record.
func (d *Decoder) Decode() (Sample, error) {
	var s Sample
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		return s, err
	}
	err := s.UnmarshalBinary(d.buf[:])
	return s, err
}
