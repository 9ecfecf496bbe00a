// Package wire implements the canonical binary encoding shared by every
// gossip peer. Signatures are computed over exactly these bytes, so the layout
// is a frozen contract:
//
//	integers        fixed width, little-endian (usize is written as u64)
//	bool / option   one byte tag, 0 or 1
//	sequences       u64 element count, then the elements
//	fixed arrays    raw bytes, no prefix
//	union tags      u32 discriminant
//	short_vec       compact-u16 count (transactions only)
//
// Writer and Reader keep the first error and turn every later call into a no-op,
// so codecs can be written as a flat list of fields with one check at the end.
package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

var (
	ErrTruncated           = errors.New("truncated data")
	ErrInvalidLength       = errors.New("invalid length prefix")
	ErrInvalidTag          = errors.New("invalid option tag")
	ErrUnknownDiscriminant = errors.New("unknown discriminant")
	ErrTrailingBytes       = errors.New("trailing bytes")
	ErrShortVec            = errors.New("invalid short_vec length")
)

// MaxShortVecLen is the largest count a compact-u16 can carry
const MaxShortVecLen = 1<<16 - 1

type Writer struct {
	buf *bytes.Buffer
	err error
}

func NewWriter() *Writer {
	return &Writer{buf: new(bytes.Buffer)}
}

func (w *Writer) write(v interface{}) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, v)
}

func (w *Writer) U8(v uint8)   { w.write(v) }
func (w *Writer) U16(v uint16) { w.write(v) }
func (w *Writer) U32(v uint32) { w.write(v) }
func (w *Writer) U64(v uint64) { w.write(v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// Option writes the tag of an optional field; the caller writes the value when present is true
func (w *Writer) Option(present bool) { w.Bool(present) }

func (w *Writer) Discriminant(v uint32) { w.U32(v) }

// Len writes a sequence length
func (w *Writer) Len(n int) { w.U64(uint64(n)) }

// Fixed writes raw bytes with no length prefix
func (w *Writer) Fixed(b []byte) {
	if w.err != nil {
		return
	}
	w.buf.Write(b)
}

// ByteVec writes a length prefixed byte string
func (w *Writer) ByteVec(b []byte) {
	w.Len(len(b))
	w.Fixed(b)
}

// ShortVecLen writes n as a compact-u16
func (w *Writer) ShortVecLen(n int) {
	if w.err != nil {
		return
	}
	if n < 0 || n > MaxShortVecLen {
		w.err = errors.Wrapf(ErrShortVec, "length %d", n)
		return
	}
	rem := uint16(n)
	for {
		elem := uint8(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			w.buf.WriteByte(elem)
			return
		}
		w.buf.WriteByte(elem | 0x80)
	}
}

// Fail records err unless an earlier error is already kept
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) Err() error {
	return w.err
}

// Data returns the encoded bytes or the first error met while writing
func (w *Writer) Data() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

type Reader struct {
	r   *bytes.Reader
	err error
}

func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

func (r *Reader) read(v interface{}) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = errors.Wrap(ErrTruncated, err.Error())
	}
}

func (r *Reader) U8() (v uint8)   { r.read(&v); return }
func (r *Reader) U16() (v uint16) { r.read(&v); return }
func (r *Reader) U32() (v uint32) { r.read(&v); return }
func (r *Reader) U64() (v uint64) { r.read(&v); return }

func (r *Reader) Bool() bool {
	tag := r.U8()
	if r.err == nil && tag > 1 {
		r.err = errors.Wrapf(ErrInvalidTag, "tag %d", tag)
	}
	return tag == 1
}

// Option reads the tag of an optional field
func (r *Reader) Option() bool { return r.Bool() }

func (r *Reader) Discriminant() uint32 { return r.U32() }

// Len reads a sequence length. minElemSize is the smallest encoded size of one
// element; lengths that cannot fit in the remaining input are rejected before
// anything is allocated.
func (r *Reader) Len(minElemSize int) int {
	n := r.U64()
	if r.err != nil {
		return 0
	}
	return r.checkLen(n, minElemSize)
}

func (r *Reader) checkLen(n uint64, minElemSize int) int {
	if minElemSize < 1 {
		minElemSize = 1
	}
	if n > uint64(r.r.Len()/minElemSize) {
		r.err = errors.Wrapf(ErrInvalidLength, "length %d with %d bytes left", n, r.r.Len())
		return 0
	}
	return int(n)
}

// Fixed fills dst with raw bytes
func (r *Reader) Fixed(dst []byte) {
	if r.err != nil {
		return
	}
	if r.r.Len() < len(dst) {
		r.err = errors.Wrapf(ErrTruncated, "want %d bytes, %d left", len(dst), r.r.Len())
		return
	}
	r.r.Read(dst)
}

// ByteVec reads a length prefixed byte string
func (r *Reader) ByteVec() []byte {
	n := r.Len(1)
	if r.err != nil {
		return nil
	}
	result := make([]byte, n)
	r.Fixed(result)
	return result
}

// ShortVecLen reads a compact-u16, rejecting overlong and overflowing forms
func (r *Reader) ShortVecLen(minElemSize int) int {
	var val uint32
	for i := 0; i < 3; i++ {
		b := r.U8()
		if r.err != nil {
			return 0
		}
		// a zero continuation byte is an alias of a shorter encoding
		if i > 0 && b == 0 {
			r.err = errors.Wrap(ErrShortVec, "alias encoding")
			return 0
		}
		if i == 2 && b > 0x03 {
			r.err = errors.Wrap(ErrShortVec, "overflow")
			return 0
		}
		val |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return r.checkLen(uint64(val), minElemSize)
		}
	}
	r.err = errors.Wrap(ErrShortVec, "too long")
	return 0
}

// Fail records err unless an earlier error is already kept
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Remaining() int {
	return r.r.Len()
}

// Finish returns the first read error, or ErrTrailingBytes if input is left over
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.r.Len() != 0 {
		return errors.Wrapf(ErrTrailingBytes, "%d bytes", r.r.Len())
	}
	return nil
}
