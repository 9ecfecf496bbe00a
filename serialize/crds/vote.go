package crds

import (
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
)

// Vote carries a vote transaction in one of the origin's MaxVotes slots
type Vote struct {
	Index       uint8
	From        crypto.Pubkey
	Transaction Transaction
	Wallclock   uint64
}

func NewVote(index uint8, from crypto.Pubkey, tx *Transaction, wallclock uint64) *Vote {
	return &Vote{
		Index:       index,
		From:        from,
		Transaction: *tx,
		Wallclock:   wallclock,
	}
}

func (v *Vote) Kind() DataKind { return KindVote }
func (v *Vote) Pubkey() crypto.Pubkey { return v.From }
func (v *Vote) GetWallclock() uint64 { return v.Wallclock }

func (v *Vote) Sanitize() error {
	if err := checkWallclock(v.Wallclock); err != nil {
		return err
	}
	if v.Index >= MaxVotes {
		return sanitizeErrorf("vote index %d out of bounds", v.Index)
	}
	return v.Transaction.Sanitize()
}

func (v *Vote) marshal(w *wire.Writer) {
	w.U8(v.Index)
	w.Fixed(v.From[:])
	v.Transaction.marshal(w)
	w.U64(v.Wallclock)
}

func unmarshalVote(r *wire.Reader) *Vote {
	v := &Vote{}
	v.Index = r.U8()
	r.Fixed(v.From[:])
	v.Transaction = unmarshalTransaction(r)
	v.Wallclock = r.U64()
	return v
}
