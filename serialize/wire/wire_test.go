package wire

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/996BC/996.Gossip/utils"
)

func TestFixedIntegersLittleEndian(t *testing.T) {
	w := NewWriter()
	w.U8(0x01)
	w.U16(0x0302)
	w.U32(0x07060504)
	w.U64(0x0f0e0d0c0b0a0908)
	data, err := w.Data()
	if err != nil {
		t.Fatal(err)
	}

	expect := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	if err := utils.TCheckBytes("encoded integers", expect, data); err != nil {
		t.Fatal(err)
	}

	r := NewReader(data)
	if err := utils.TCheckUint8("u8", 0x01, r.U8()); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckUint16("u16", 0x0302, r.U16()); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckUint32("u32", 0x07060504, r.U32()); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckUint64("u64", 0x0f0e0d0c0b0a0908, r.U64()); err != nil {
		t.Fatal(err)
	}
	if err := r.Finish(); err != nil {
		t.Fatal(err)
	}
}

func TestByteVec(t *testing.T) {
	w := NewWriter()
	w.ByteVec([]byte("abc"))
	data, _ := w.Data()

	expect := []byte{3, 0, 0, 0, 0, 0, 0, 0, 'a', 'b', 'c'}
	if err := utils.TCheckBytes("byte vec", expect, data); err != nil {
		t.Fatal(err)
	}

	r := NewReader(data)
	if err := utils.TCheckBytes("decoded", []byte("abc"), r.ByteVec()); err != nil {
		t.Fatal(err)
	}
	if err := r.Finish(); err != nil {
		t.Fatal(err)
	}
}

func TestShortVecLen(t *testing.T) {
	cases := []struct {
		n      int
		encode []byte
	}{
		{0x0, []byte{0x00}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	}

	for _, c := range cases {
		w := NewWriter()
		w.ShortVecLen(c.n)
		data, err := w.Data()
		if err != nil {
			t.Fatal(err)
		}
		if err := utils.TCheckBytes("short_vec", c.encode, data); err != nil {
			t.Fatalf("case %d: %v", c.n, err)
		}

		// pad so the length check has room for n one-byte elements
		r := NewReader(append(data, make([]byte, c.n)...))
		if err := utils.TCheckInt("decoded length", c.n, r.ShortVecLen(1)); err != nil {
			t.Fatal(err)
		}
		if err := r.Err(); err != nil {
			t.Fatal(err)
		}
	}

	w := NewWriter()
	w.ShortVecLen(MaxShortVecLen + 1)
	if _, err := w.Data(); !errors.Is(err, ErrShortVec) {
		t.Fatalf("expect ErrShortVec, got %v", err)
	}
}

func TestShortVecLenRejectsNonCanonical(t *testing.T) {
	bad := [][]byte{
		{0x80, 0x00},       // alias of 0
		{0x80, 0x80, 0x00}, // alias of 0
		{0x80, 0x80, 0x04}, // overflow
		{0x80},             // truncated
	}
	for _, b := range bad {
		r := NewReader(b)
		r.ShortVecLen(1)
		if r.Err() == nil {
			t.Fatalf("expect error for %X", b)
		}
	}
}

func TestReaderErrors(t *testing.T) {
	// length prefix larger than the input
	w := NewWriter()
	w.Len(1000)
	data, _ := w.Data()
	r := NewReader(data)
	r.ByteVec()
	if !errors.Is(r.Err(), ErrInvalidLength) {
		t.Fatalf("expect ErrInvalidLength, got %v", r.Err())
	}

	// truncated integer
	r = NewReader([]byte{1, 2})
	r.U32()
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("expect ErrTruncated, got %v", r.Err())
	}

	// bad option tag
	r = NewReader([]byte{2})
	r.Option()
	if !errors.Is(r.Err(), ErrInvalidTag) {
		t.Fatalf("expect ErrInvalidTag, got %v", r.Err())
	}

	// trailing data
	r = NewReader([]byte{1, 2})
	r.U8()
	if err := r.Finish(); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("expect ErrTrailingBytes, got %v", err)
	}
}
