package crds

import (
	"bytes"
	"io"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/flate"
)

// CompressionType tags the encoding of EpochIncompleteSlots.CompressedList
type CompressionType uint32

const (
	CompressionUncompressed = CompressionType(0)
	CompressionGZip         = CompressionType(1)
	CompressionBZip2        = CompressionType(2)
)

type EpochIncompleteSlots struct {
	First          uint64
	Compression    CompressionType
	CompressedList []byte
}

// LowestSlot announces the lowest slot a node still stores. Slots and Stash
// are deprecated and kept for layout compatibility.
type LowestSlot struct {
	Index     uint8
	From      crypto.Pubkey
	Root      uint64
	Lowest    uint64
	Slots     []uint64 // strictly ascending
	Stash     []EpochIncompleteSlots
	Wallclock uint64
}

func NewLowestSlot(from crypto.Pubkey, lowest, wallclock uint64) *LowestSlot {
	return &LowestSlot{From: from, Lowest: lowest, Wallclock: wallclock}
}

func (l *LowestSlot) Kind() DataKind { return KindLowestSlot }
func (l *LowestSlot) Pubkey() crypto.Pubkey { return l.From }
func (l *LowestSlot) GetWallclock() uint64 { return l.Wallclock }

func (l *LowestSlot) Sanitize() error {
	if err := checkWallclock(l.Wallclock); err != nil {
		return err
	}
	if l.Index != 0 {
		return sanitizeErrorf("lowest slot index %d", l.Index)
	}
	return checkSlot(l.Lowest)
}

func (l *LowestSlot) marshal(w *wire.Writer) {
	w.U8(l.Index)
	w.Fixed(l.From[:])
	w.U64(l.Root)
	w.U64(l.Lowest)
	w.Len(len(l.Slots))
	for i, s := range l.Slots {
		if i > 0 && s <= l.Slots[i-1] {
			w.Fail(errors.Newf("lowest slot set not ascending at %d", i))
			return
		}
		w.U64(s)
	}
	w.Len(len(l.Stash))
	for _, e := range l.Stash {
		w.U64(e.First)
		w.Discriminant(uint32(e.Compression))
		w.ByteVec(e.CompressedList)
	}
	w.U64(l.Wallclock)
}

func unmarshalLowestSlot(r *wire.Reader) *LowestSlot {
	l := &LowestSlot{}
	l.Index = r.U8()
	r.Fixed(l.From[:])
	l.Root = r.U64()
	l.Lowest = r.U64()
	l.Slots = make([]uint64, r.Len(8))
	for i := range l.Slots {
		l.Slots[i] = r.U64()
		if i > 0 && l.Slots[i] <= l.Slots[i-1] {
			r.Fail(errors.Wrap(wire.ErrInvalidLength, "lowest slot set not ascending"))
			return l
		}
	}
	// first, compression tag, list length
	l.Stash = make([]EpochIncompleteSlots, r.Len(8+4+8))
	for i := range l.Stash {
		e := &l.Stash[i]
		e.First = r.U64()
		e.Compression = CompressionType(r.Discriminant())
		if e.Compression > CompressionBZip2 {
			r.Fail(errors.Wrapf(wire.ErrUnknownDiscriminant, "compression type %d", e.Compression))
			return l
		}
		e.CompressedList = r.ByteVec()
	}
	l.Wallclock = r.U64()
	return l
}

const (
	slotsFlate2       = uint32(0)
	slotsUncompressed = uint32(1)
)

// CompressedSlots is one entry of EpochSlots, either *Flate2 or *Uncompressed
type CompressedSlots interface {
	First() uint64
	ToSlots(min uint64) ([]uint64, error)
	Sanitize() error

	marshal(w *wire.Writer)
}

// Uncompressed is a bitmap of the slots from FirstSlot; Num is one past the
// highest slot set
type Uncompressed struct {
	FirstSlot uint64
	Num       uint64
	Slots     *bitset.BitSet
}

// NewUncompressed returns an empty entry with room for maxSize*8 slots
func NewUncompressed(maxSize int) *Uncompressed {
	return &Uncompressed{Slots: bitset.New(uint(maxSize) * 8)}
}

func (u *Uncompressed) First() uint64 { return u.FirstSlot }

func (u *Uncompressed) bits() *bitset.BitSet {
	if u.Slots == nil {
		return bitset.New(0)
	}
	return u.Slots
}

// Add sets slots in order and returns how many fit. The first slot added to
// an empty entry becomes FirstSlot.
func (u *Uncompressed) Add(slots []uint64) int {
	for i, s := range slots {
		if u.Num == 0 {
			u.FirstSlot = s
		}
		if u.Num >= MaxSlotsPerEntry {
			return i
		}
		if s < u.FirstSlot {
			return i
		}
		offset := s - u.FirstSlot
		if offset >= uint64(u.bits().Len()) {
			return i
		}
		u.Slots.Set(uint(offset))
		if offset+1 > u.Num {
			u.Num = offset + 1
		}
	}
	return len(slots)
}

// ToSlots lists the slots set, skipping those below min
func (u *Uncompressed) ToSlots(min uint64) ([]uint64, error) {
	var start uint64
	if min > u.FirstSlot {
		start = min - u.FirstSlot
	}
	var result []uint64
	for i := start; i < u.Num && i < uint64(u.bits().Len()); i++ {
		if u.Slots.Test(uint(i)) {
			result = append(result, u.FirstSlot+i)
		}
	}
	return result, nil
}

func (u *Uncompressed) Sanitize() error {
	if err := checkSlot(u.FirstSlot); err != nil {
		return err
	}
	if u.Num >= MaxSlotsPerEntry {
		return sanitizeErrorf("%d slots in one entry", u.Num)
	}
	length := uint64(u.bits().Len())
	if length%8 != 0 {
		return sanitizeErrorf("slot bitmap length %d", length)
	}
	if u.Num > length {
		return sanitizeErrorf("%d slots in a bitmap of %d", u.Num, length)
	}
	return nil
}

// bitmapBytes returns the bitmap as bytes, bit i in byte i/8 at position i%8
func (u *Uncompressed) bitmapBytes() []byte {
	length := uint64(u.bits().Len())
	result := make([]byte, (length+7)/8)
	for i, word := range u.bits().Bytes() {
		for j := 0; j < 8 && i*8+j < len(result); j++ {
			result[i*8+j] = byte(word >> (8 * uint(j)))
		}
	}
	return result
}

func bitmapFromBytes(b []byte, length uint64) *bitset.BitSet {
	result := bitset.New(uint(length))
	words := result.Bytes()
	for i, v := range b {
		words[i/8] |= uint64(v) << (8 * uint(i%8))
	}
	return result
}

func (u *Uncompressed) marshal(w *wire.Writer) {
	w.Discriminant(slotsUncompressed)
	w.U64(u.FirstSlot)
	w.U64(u.Num)
	b := u.bitmapBytes()
	w.Option(len(b) != 0)
	if len(b) != 0 {
		w.ByteVec(b)
	}
	w.U64(uint64(u.bits().Len()))
}

func unmarshalUncompressed(r *wire.Reader) *Uncompressed {
	u := &Uncompressed{}
	u.FirstSlot = r.U64()
	u.Num = r.U64()
	var b []byte
	if r.Option() {
		b = r.ByteVec()
		if len(b) == 0 && r.Err() == nil {
			r.Fail(errors.Wrap(wire.ErrInvalidLength, "present but empty blocks"))
			return u
		}
	}
	length := r.U64()
	if r.Err() != nil {
		return u
	}
	if length > uint64(len(b))*8 || uint64(len(b)) != (length+7)/8 {
		r.Fail(errors.Wrapf(wire.ErrInvalidLength, "%d bytes for %d bits", len(b), length))
		return u
	}
	if tail := length % 8; tail != 0 && b[len(b)-1]>>tail != 0 {
		r.Fail(errors.Wrap(wire.ErrInvalidLength, "bits set past the end"))
		return u
	}
	u.Slots = bitmapFromBytes(b, length)
	return u
}

// Flate2 is an Uncompressed bitmap compressed with raw DEFLATE
type Flate2 struct {
	FirstSlot  uint64
	Num        uint64
	Compressed []byte
}

// Deflate compresses u; the result is checked to inflate back
func Deflate(u *Uncompressed) (*Flate2, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, errors.Wrap(err, "new deflate writer")
	}
	if _, err := fw.Write(u.bitmapBytes()); err != nil {
		return nil, errors.Wrap(err, "deflate slots")
	}
	if err := fw.Close(); err != nil {
		return nil, errors.Wrap(err, "deflate slots")
	}

	result := &Flate2{FirstSlot: u.FirstSlot, Num: u.Num, Compressed: buf.Bytes()}
	if _, err := result.Inflate(); err != nil {
		return nil, err
	}
	return result, nil
}

// Inflate expands the bitmap; its length is eight bits per inflated byte
func (f *Flate2) Inflate() (*Uncompressed, error) {
	fr := flate.NewReader(bytes.NewReader(f.Compressed))
	defer fr.Close()
	b, err := io.ReadAll(io.LimitReader(fr, MaxSlotsPerEntry/8+1))
	if err != nil {
		return nil, errors.Wrap(err, "inflate slots")
	}
	if len(b) > MaxSlotsPerEntry/8 {
		return nil, errors.Newf("inflated slots exceed %d bytes", MaxSlotsPerEntry/8)
	}
	return &Uncompressed{
		FirstSlot: f.FirstSlot,
		Num:       f.Num,
		Slots:     bitmapFromBytes(b, uint64(len(b))*8),
	}, nil
}

func (f *Flate2) First() uint64 { return f.FirstSlot }

func (f *Flate2) ToSlots(min uint64) ([]uint64, error) {
	u, err := f.Inflate()
	if err != nil {
		return nil, err
	}
	return u.ToSlots(min)
}

func (f *Flate2) Sanitize() error {
	if err := checkSlot(f.FirstSlot); err != nil {
		return err
	}
	if f.Num >= MaxSlotsPerEntry {
		return sanitizeErrorf("%d slots in one entry", f.Num)
	}
	return nil
}

func (f *Flate2) marshal(w *wire.Writer) {
	w.Discriminant(slotsFlate2)
	w.U64(f.FirstSlot)
	w.U64(f.Num)
	w.ByteVec(f.Compressed)
}

func unmarshalFlate2(r *wire.Reader) *Flate2 {
	f := &Flate2{}
	f.FirstSlot = r.U64()
	f.Num = r.U64()
	f.Compressed = r.ByteVec()
	return f
}

func getCompressedSlots(r *wire.Reader) CompressedSlots {
	switch tag := r.Discriminant(); tag {
	case slotsFlate2:
		return unmarshalFlate2(r)
	case slotsUncompressed:
		return unmarshalUncompressed(r)
	default:
		r.Fail(errors.Wrapf(wire.ErrUnknownDiscriminant, "compressed slots %d", tag))
		return nil
	}
}

// EpochSlots announces the slots a node has completed, in one of its
// MaxEpochSlots indexes
type EpochSlots struct {
	Index     uint8
	From      crypto.Pubkey
	Slots     []CompressedSlots
	Wallclock uint64
}

func NewEpochSlots(index uint8, from crypto.Pubkey, wallclock uint64) *EpochSlots {
	return &EpochSlots{Index: index, From: from, Wallclock: wallclock}
}

// Fill appends ascending slots as compressed entries and returns how many
// were taken. The wallclock moves forward to at least now.
func (e *EpochSlots) Fill(slots []uint64, now uint64) int {
	if now > e.Wallclock {
		e.Wallclock = now
	} else {
		e.Wallclock++
	}

	num := 0
	for num < len(slots) {
		u := NewUncompressed(MaxSlotsPerEntry / 8)
		n := u.Add(slots[num:])
		if n == 0 {
			break
		}
		num += n
		if f, err := Deflate(u); err == nil {
			e.Slots = append(e.Slots, f)
		} else {
			e.Slots = append(e.Slots, u)
		}
	}
	return num
}

// ToSlots lists every slot at or above min
func (e *EpochSlots) ToSlots(min uint64) ([]uint64, error) {
	var result []uint64
	for _, s := range e.Slots {
		slots, err := s.ToSlots(min)
		if err != nil {
			return nil, err
		}
		result = append(result, slots...)
	}
	return result, nil
}

func (e *EpochSlots) Kind() DataKind { return KindEpochSlots }
func (e *EpochSlots) Pubkey() crypto.Pubkey { return e.From }
func (e *EpochSlots) GetWallclock() uint64 { return e.Wallclock }

func (e *EpochSlots) Sanitize() error {
	if err := checkWallclock(e.Wallclock); err != nil {
		return err
	}
	if e.Index >= MaxEpochSlots {
		return sanitizeErrorf("epoch slots index %d out of bounds", e.Index)
	}
	for _, s := range e.Slots {
		if err := s.Sanitize(); err != nil {
			return err
		}
	}
	return nil
}

func (e *EpochSlots) marshal(w *wire.Writer) {
	w.U8(e.Index)
	w.Fixed(e.From[:])
	w.Len(len(e.Slots))
	for _, s := range e.Slots {
		if s == nil {
			w.Fail(errors.New("nil compressed slots"))
			return
		}
		s.marshal(w)
	}
	w.U64(e.Wallclock)
}

func unmarshalEpochSlots(r *wire.Reader) *EpochSlots {
	e := &EpochSlots{}
	e.Index = r.U8()
	r.Fixed(e.From[:])
	// tag, first slot, num and one more word
	e.Slots = make([]CompressedSlots, r.Len(4+8+8+8))
	for i := range e.Slots {
		e.Slots[i] = getCompressedSlots(r)
		if r.Err() != nil {
			return e
		}
	}
	e.Wallclock = r.U64()
	return e
}
