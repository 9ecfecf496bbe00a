package crds

import (
	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

// CrdsData is the content of a gossip record. The set of variants is closed;
// each one is a pointer to one of the structs in this package.
type CrdsData interface {
	Kind() DataKind
	// Pubkey is the origin node, the key that must have signed the record
	Pubkey() crypto.Pubkey
	// GetWallclock is the origin's wall clock in milliseconds when it made the record
	GetWallclock() uint64
	Sanitize() error

	marshal(w *wire.Writer)
}

// MarshalData returns the canonical bytes of d, discriminant included
func MarshalData(d CrdsData) ([]byte, error) {
	w := wire.NewWriter()
	putData(w, d)
	data, err := w.Data()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "marshal crds data"), ErrEncoding)
	}
	return data, nil
}

// UnmarshalData decodes exactly one CrdsData from data
func UnmarshalData(data []byte) (CrdsData, error) {
	r := wire.NewReader(data)
	d := getData(r)
	if err := r.Finish(); err != nil {
		return nil, errors.Wrap(err, "unmarshal crds data")
	}
	return d, nil
}

func putData(w *wire.Writer, d CrdsData) {
	if d == nil {
		w.Fail(errors.New("nil crds data"))
		return
	}
	w.Discriminant(uint32(d.Kind()))
	d.marshal(w)
}

func getData(r *wire.Reader) CrdsData {
	kind := DataKind(r.Discriminant())
	if r.Err() != nil {
		return nil
	}

	var d CrdsData
	switch kind {
	case KindLegacyContactInfo:
		d = unmarshalLegacyContactInfo(r)
	case KindVote:
		d = unmarshalVote(r)
	case KindLowestSlot:
		d = unmarshalLowestSlot(r)
	case KindSnapshotHashes:
		d = unmarshalSnapshotHashes(r)
	case KindAccountsHashes:
		d = (*AccountsHashes)(unmarshalSnapshotHashes(r))
	case KindEpochSlots:
		d = unmarshalEpochSlots(r)
	case KindLegacyVersion:
		d = unmarshalLegacyVersion(r)
	case KindVersion:
		d = unmarshalVersion(r)
	case KindNodeInstance:
		d = unmarshalNodeInstance(r)
	case KindDuplicateShred:
		d = &DuplicateShred{}
	case KindIncrementalSnapshotHashes:
		d = unmarshalIncrementalSnapshotHashes(r)
	case KindContactInfo:
		d = &ContactInfo{}
	default:
		r.Fail(errors.Wrapf(wire.ErrUnknownDiscriminant, "crds data %d", kind))
	}
	if r.Err() != nil {
		return nil
	}
	return d
}
