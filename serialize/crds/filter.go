package crds

import (
	"encoding/binary"
	"math"

	"github.com/996BC/996.Gossip/core/bloom"
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

const (
	// FilterCapacity is the number of items one filter holds at FilterFalseRate
	FilterCapacity = 1287
	// FilterFalseRate is the target false positive rate of one filter
	FilterFalseRate = 0.1
	// FilterMaxBits is the bit budget of one filter, it fits a pull request in a packet
	FilterMaxBits = 7424
	// DefaultNumItems is the table size assumed when none is measured
	DefaultNumItems = 512

	// maxFilterSetBits bounds the number of filters a FilterSet allocates
	maxFilterSetBits = 20
)

// CrdsFilter scopes a pull request to one shard of the hash space: the hashes
// whose top MaskBits bits equal those of Mask. Filter holds the hashes of
// that shard the requester already has.
type CrdsFilter struct {
	Filter   *bloom.Bloom
	Mask     uint64
	MaskBits uint32
}

// MaskBits returns the smallest m with maxItems*2^m >= numItems, that is
// max(0, ceil(log2(numItems/maxItems))), computed without floating point
func MaskBits(numItems, maxItems uint64) (uint32, error) {
	if maxItems == 0 {
		return 0, errors.Wrap(ErrPartitionParameter, "zero filter capacity")
	}
	for m := uint32(0); m < 64; m++ {
		if maxItems > math.MaxUint64>>m {
			return m, nil
		}
		if maxItems<<m >= numItems {
			return m, nil
		}
	}
	return 64, nil
}

// ComputeMask places seed in the top maskBits bits and sets all the others.
// With maskBits == 0 no seed bit is kept and the mask is all ones.
// With maskBits == 64 the wildcard suffix is empty, not the all ones a
// saturating shift would leave, so the mask is the seed itself and TestMask
// agrees with it.
func ComputeMask(seed uint64, maskBits uint32) (uint64, error) {
	if maskBits > 64 {
		return 0, errors.Mark(errors.AssertionFailedf("mask bits %d > 64", maskBits), ErrPartitionParameter)
	}
	if maskBits < 64 && seed > uint64(1)<<maskBits {
		return 0, errors.Mark(errors.AssertionFailedf("seed %d > 2^%d", seed, maskBits), ErrPartitionParameter)
	}

	var prefix uint64
	if maskBits > 0 {
		prefix = seed << (64 - maskBits)
	}
	var suffix uint64
	if maskBits < 64 {
		suffix = math.MaxUint64 >> maskBits
	}
	return prefix | suffix, nil
}

// NewDefaultFilter returns the empty filter of a node assuming DefaultNumItems
// records: a single shard covering the whole hash space
func NewDefaultFilter() *CrdsFilter {
	f, err := NewFilter(DefaultNumItems, 0)
	if err != nil {
		panic(err)
	}
	return f
}

// NewFilter returns the empty filter of shard seed for a table of numItems records
func NewFilter(numItems, seed uint64) (*CrdsFilter, error) {
	maskBits, err := MaskBits(numItems, FilterCapacity)
	if err != nil {
		return nil, err
	}
	mask, err := ComputeMask(seed, maskBits)
	if err != nil {
		return nil, err
	}
	return &CrdsFilter{
		Filter:   bloom.Random(FilterCapacity, FilterFalseRate, FilterMaxBits),
		Mask:     mask,
		MaskBits: maskBits,
	}, nil
}

func hashAsUint64(hash crypto.Hash) uint64 {
	return binary.LittleEndian.Uint64(hash[:8])
}

// TestMask reports whether hash falls in the filter's shard
func (f *CrdsFilter) TestMask(hash crypto.Hash) bool {
	var ones uint64
	if f.MaskBits < 64 {
		ones = math.MaxUint64 >> f.MaskBits
	}
	return hashAsUint64(hash)|ones == f.Mask
}

// Add inserts hash if it belongs to the shard
func (f *CrdsFilter) Add(hash crypto.Hash) {
	if f.TestMask(hash) {
		f.Filter.Add(hash[:])
	}
}

// Contains reports whether the requester may already hold hash. Hashes of
// other shards are reported as held so they are never sent.
func (f *CrdsFilter) Contains(hash crypto.Hash) bool {
	if !f.TestMask(hash) {
		return true
	}
	return f.Filter.Contains(hash[:])
}

func (f *CrdsFilter) Sanitize() error {
	if f.Filter == nil || f.Filter.NumBits() == 0 {
		return sanitizeErrorf("empty bloom filter")
	}
	if f.MaskBits > 64 {
		return sanitizeErrorf("mask bits %d", f.MaskBits)
	}
	return nil
}

// Encode appends the filter to w
func (f *CrdsFilter) Encode(w *wire.Writer) {
	if f.Filter == nil {
		w.Fail(errors.New("nil bloom filter"))
		return
	}
	f.Filter.Marshal(w)
	w.U64(f.Mask)
	w.U32(f.MaskBits)
}

// DecodeFilter reads one filter from r; nil when r failed
func DecodeFilter(r *wire.Reader) *CrdsFilter {
	f := &CrdsFilter{}
	f.Filter = bloom.Unmarshal(r)
	f.Mask = r.U64()
	f.MaskBits = r.U32()
	if r.Err() != nil {
		return nil
	}
	return f
}

// FilterSet holds one filter per shard for a table of a given size, so that
// a node can describe its whole table in 2^MaskBits pull requests
type FilterSet struct {
	filters  []*bloom.Bloom
	maskBits uint32
}

func NewFilterSet(numItems uint64) (*FilterSet, error) {
	maskBits, err := MaskBits(numItems, FilterCapacity)
	if err != nil {
		return nil, err
	}
	if maskBits > maxFilterSetBits {
		return nil, errors.Wrapf(ErrPartitionParameter, "%d items need 2^%d filters", numItems, maskBits)
	}

	s := &FilterSet{
		filters:  make([]*bloom.Bloom, 1<<maskBits),
		maskBits: maskBits,
	}
	for i := range s.filters {
		s.filters[i] = bloom.Random(FilterCapacity, FilterFalseRate, FilterMaxBits)
	}
	return s, nil
}

func (s *FilterSet) MaskBits() uint32 { return s.maskBits }

// Add puts hash in the filter of its shard
func (s *FilterSet) Add(hash crypto.Hash) {
	var index uint64
	if s.maskBits > 0 {
		index = hashAsUint64(hash) >> (64 - s.maskBits)
	}
	s.filters[index].Add(hash[:])
}

// Filters returns one CrdsFilter per shard, in seed order
func (s *FilterSet) Filters() []*CrdsFilter {
	result := make([]*CrdsFilter, len(s.filters))
	for seed, b := range s.filters {
		// seed < 2^maskBits <= 2^maxFilterSetBits
		mask, _ := ComputeMask(uint64(seed), s.maskBits)
		result[seed] = &CrdsFilter{Filter: b, Mask: mask, MaskBits: s.maskBits}
	}
	return result
}
