// Package bloom is the membership filter carried by pull requests.
// Its layout and hashing match the other cluster implementations, so a filter
// built here answers the same way on a remote peer.
package bloom

import (
	"math"
	"math/rand"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"

	"github.com/996BC/996.Gossip/serialize/wire"
)

const (
	fnvPrime = 0x100000001b3
)

// Bloom is a set of hashes with bounded false positives and no false negatives
type Bloom struct {
	Keys       []uint64
	Bits       *bitset.BitSet
	NumBitsSet uint64
}

// New returns an empty filter of numBits bits probed by keys
func New(numBits uint64, keys []uint64) *Bloom {
	return &Bloom{
		Keys: keys,
		Bits: bitset.New(uint(numBits)),
	}
}

// Random sizes a filter for numItems at falseRate, capped at maxBits,
// and draws fresh random keys
func Random(numItems int, falseRate float64, maxBits uint64) *Bloom {
	m := NumBits(float64(numItems), falseRate)
	numBits := uint64(1)
	if m > 1 && !math.IsNaN(m) {
		numBits = uint64(m)
	}
	if numBits > maxBits {
		numBits = maxBits
	}
	if numBits == 0 {
		numBits = 1
	}

	numKeys := int(NumKeys(float64(numBits), float64(numItems)))
	keys := make([]uint64, numKeys)
	for i := range keys {
		keys[i] = rand.Uint64()
	}
	return New(numBits, keys)
}

// NumBits is the optimal bit count for n items at false positive rate p
func NumBits(n, p float64) float64 {
	return math.Ceil((n * math.Log(p)) / math.Log(1/math.Pow(2, math.Ln2)))
}

// NumKeys is the optimal number of probes for m bits holding n items
func NumKeys(m, n float64) float64 {
	if n == 0 {
		return 0
	}
	return math.Max(1, math.Round((m/n)*math.Ln2))
}

func (b *Bloom) NumBits() uint64 {
	return uint64(b.Bits.Len())
}

func (b *Bloom) pos(item []byte, key uint64) uint {
	return uint(hashAtIndex(item, key) % b.NumBits())
}

// Add inserts the item
func (b *Bloom) Add(item []byte) {
	for _, k := range b.Keys {
		p := b.pos(item, k)
		if !b.Bits.Test(p) {
			b.NumBitsSet++
			b.Bits.Set(p)
		}
	}
}

// Contains reports whether the item was probably added
func (b *Bloom) Contains(item []byte) bool {
	for _, k := range b.Keys {
		if !b.Bits.Test(b.pos(item, k)) {
			return false
		}
	}
	return true
}

// Clear empties the filter but keeps its size and keys
func (b *Bloom) Clear() {
	b.Bits.ClearAll()
	b.NumBitsSet = 0
}

// hashAtIndex is 64 bits FNV-1a whose initial state is the probe key
func hashAtIndex(item []byte, key uint64) uint64 {
	h := key
	for _, c := range item {
		h ^= uint64(c)
		h *= fnvPrime
	}
	return h
}

/*
Bloom
+-------+---------+--------+-----------+---------+------------+
| KeysN |  Keys   | BitsT  | WordsN    | Words   | BitsLen    |
+-------+---------+--------+-----------+---------+------------+
| NumBitsSet                                                  |
+-------------------------------------------------------------+
(bytes)
Keys number     8
Keys            8 * Keys number
Bits tag        1 (0 when there are no words)
Words number    8 (only with tag 1)
Words           8 * Words number
Bits length     8
NumBitsSet      8
*/

// Marshal writes the filter in its wire form
func (b *Bloom) Marshal(w *wire.Writer) {
	w.Len(len(b.Keys))
	for _, k := range b.Keys {
		w.U64(k)
	}
	PutWords(w, b.Bits)
	w.U64(b.NumBitsSet)
}

// Unmarshal reads a filter in its wire form
func Unmarshal(r *wire.Reader) *Bloom {
	result := &Bloom{}
	n := r.Len(8)
	result.Keys = make([]uint64, n)
	for i := range result.Keys {
		result.Keys[i] = r.U64()
	}
	result.Bits = GetWords(r)
	result.NumBitsSet = r.U64()
	if r.Err() != nil {
		return nil
	}
	if result.NumBits() == 0 && len(result.Keys) != 0 {
		r.Fail(errors.Wrap(wire.ErrInvalidLength, "bloom with keys but no bits"))
		return nil
	}
	return result
}

// PutWords writes a bit vector of 64 bits blocks
func PutWords(w *wire.Writer, set *bitset.BitSet) {
	length := uint64(set.Len())
	words := set.Bytes()[:wordsFor(length)]
	w.Option(len(words) != 0)
	if len(words) != 0 {
		w.Len(len(words))
		for _, word := range words {
			w.U64(word)
		}
	}
	w.U64(length)
}

// GetWords reads a bit vector of 64 bits blocks
func GetWords(r *wire.Reader) *bitset.BitSet {
	var words []uint64
	if r.Option() {
		n := r.Len(8)
		if n == 0 && r.Err() == nil {
			r.Fail(errors.Wrap(wire.ErrInvalidLength, "present but empty blocks"))
			return nil
		}
		words = make([]uint64, n)
		for i := range words {
			words[i] = r.U64()
		}
	}
	length := r.U64()
	if r.Err() != nil {
		return nil
	}
	return fromWords(r, words, length)
}

func fromWords(r *wire.Reader, words []uint64, length uint64) *bitset.BitSet {
	// bounded first, the rounding below must not wrap
	if length > uint64(len(words))*64 || wordsFor(length) != uint64(len(words)) {
		r.Fail(errors.Wrapf(wire.ErrInvalidLength, "%d blocks for %d bits", len(words), length))
		return nil
	}
	if tail := length % 64; tail != 0 && words[len(words)-1]>>tail != 0 {
		r.Fail(errors.Wrap(wire.ErrInvalidLength, "bits set past the end"))
		return nil
	}

	result := bitset.New(uint(length))
	copy(result.Bytes(), words)
	return result
}

func wordsFor(length uint64) uint64 {
	return (length + 63) / 64
}
