package crds

import (
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
)

const slotHashSize = 8 + crypto.HashSize

type SlotHash struct {
	Slot uint64
	Hash crypto.Hash
}

func putSlotHash(w *wire.Writer, sh SlotHash) {
	w.U64(sh.Slot)
	w.Fixed(sh.Hash[:])
}

func getSlotHash(r *wire.Reader) SlotHash {
	var sh SlotHash
	sh.Slot = r.U64()
	r.Fixed(sh.Hash[:])
	return sh
}

func putSlotHashes(w *wire.Writer, hashes []SlotHash) {
	w.Len(len(hashes))
	for _, sh := range hashes {
		putSlotHash(w, sh)
	}
}

func getSlotHashes(r *wire.Reader) []SlotHash {
	result := make([]SlotHash, r.Len(slotHashSize))
	for i := range result {
		result[i] = getSlotHash(r)
	}
	return result
}

// SnapshotHashes lists the full snapshots a node can serve
type SnapshotHashes struct {
	From      crypto.Pubkey
	Hashes    []SlotHash
	Wallclock uint64
}

func (s *SnapshotHashes) Kind() DataKind { return KindSnapshotHashes }
func (s *SnapshotHashes) Pubkey() crypto.Pubkey { return s.From }
func (s *SnapshotHashes) GetWallclock() uint64 { return s.Wallclock }

func (s *SnapshotHashes) Sanitize() error {
	if err := checkWallclock(s.Wallclock); err != nil {
		return err
	}
	for _, sh := range s.Hashes {
		if err := checkSlot(sh.Slot); err != nil {
			return err
		}
	}
	return nil
}

func (s *SnapshotHashes) marshal(w *wire.Writer) {
	w.Fixed(s.From[:])
	putSlotHashes(w, s.Hashes)
	w.U64(s.Wallclock)
}

func unmarshalSnapshotHashes(r *wire.Reader) *SnapshotHashes {
	s := &SnapshotHashes{}
	r.Fixed(s.From[:])
	s.Hashes = getSlotHashes(r)
	s.Wallclock = r.U64()
	return s
}

// AccountsHashes lists accounts hashes at recent slots; it shares the
// layout of SnapshotHashes
type AccountsHashes SnapshotHashes

func (a *AccountsHashes) Kind() DataKind { return KindAccountsHashes }
func (a *AccountsHashes) Pubkey() crypto.Pubkey { return a.From }
func (a *AccountsHashes) GetWallclock() uint64 { return a.Wallclock }
func (a *AccountsHashes) Sanitize() error { return (*SnapshotHashes)(a).Sanitize() }
func (a *AccountsHashes) marshal(w *wire.Writer) { (*SnapshotHashes)(a).marshal(w) }

// IncrementalSnapshotHashes lists incremental snapshots on top of the full
// snapshot Base
type IncrementalSnapshotHashes struct {
	From      crypto.Pubkey
	Base      SlotHash
	Hashes    []SlotHash
	Wallclock uint64
}

func (s *IncrementalSnapshotHashes) Kind() DataKind { return KindIncrementalSnapshotHashes }
func (s *IncrementalSnapshotHashes) Pubkey() crypto.Pubkey { return s.From }
func (s *IncrementalSnapshotHashes) GetWallclock() uint64 { return s.Wallclock }

func (s *IncrementalSnapshotHashes) Sanitize() error {
	if err := checkWallclock(s.Wallclock); err != nil {
		return err
	}
	if err := checkSlot(s.Base.Slot); err != nil {
		return err
	}
	for _, sh := range s.Hashes {
		if err := checkSlot(sh.Slot); err != nil {
			return err
		}
		if sh.Slot <= s.Base.Slot {
			return sanitizeErrorf("incremental slot %d not above base %d", sh.Slot, s.Base.Slot)
		}
	}
	return nil
}

func (s *IncrementalSnapshotHashes) marshal(w *wire.Writer) {
	w.Fixed(s.From[:])
	putSlotHash(w, s.Base)
	putSlotHashes(w, s.Hashes)
	w.U64(s.Wallclock)
}

func unmarshalIncrementalSnapshotHashes(r *wire.Reader) *IncrementalSnapshotHashes {
	s := &IncrementalSnapshotHashes{}
	r.Fixed(s.From[:])
	s.Base = getSlotHash(r)
	s.Hashes = getSlotHashes(r)
	s.Wallclock = r.U64()
	return s
}
