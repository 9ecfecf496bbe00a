package crds

import (
	"fmt"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

// CrdsValue is a CrdsData signed by its origin. The signature covers the
// output of MarshalData and nothing else.
type CrdsValue struct {
	Signature crypto.Signature
	Data      CrdsData
}

// NewSignedValue signs data with keypair. Reserved variants can not be signed.
func NewSignedValue(data CrdsData, keypair *crypto.Keypair) (*CrdsValue, error) {
	if data == nil {
		return nil, errors.Mark(errors.New("sign nil crds data"), ErrEncoding)
	}
	if data.Kind().IsReserved() {
		return nil, errors.Wrapf(ErrUnimplementedVariant, "sign %s", data.Kind())
	}

	signable, err := MarshalData(data)
	if err != nil {
		return nil, err
	}
	return &CrdsValue{
		Signature: keypair.Sign(signable),
		Data:      data,
	}, nil
}

// Verify checks the signature against pubkey
func (v *CrdsValue) Verify(pubkey crypto.Pubkey) bool {
	signable, err := MarshalData(v.Data)
	if err != nil {
		return false
	}
	return v.Signature.Verify(pubkey, signable)
}

// VerifySelf checks the signature against the origin the data names
func (v *CrdsValue) VerifySelf() bool {
	if v.Data == nil {
		return false
	}
	return v.Verify(v.Data.Pubkey())
}

// Check sanitizes v then verifies it against its origin.
// A bad signature is reported as ErrSignatureInvalid.
func (v *CrdsValue) Check() error {
	if err := v.Sanitize(); err != nil {
		return err
	}
	if !v.VerifySelf() {
		return errors.Wrapf(ErrSignatureInvalid, "%s", v.Label())
	}
	return nil
}

func (v *CrdsValue) Sanitize() error {
	if v.Data == nil {
		return sanitizeErrorf("empty crds value")
	}
	return v.Data.Sanitize()
}

func (v *CrdsValue) Pubkey() crypto.Pubkey { return v.Data.Pubkey() }
func (v *CrdsValue) Wallclock() uint64 { return v.Data.GetWallclock() }

// Hash identifies the value in pull filters, sha256 of its serialized form
func (v *CrdsValue) Hash() (crypto.Hash, error) {
	data, err := v.Marshal()
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashV(data), nil
}

func (v *CrdsValue) Marshal() ([]byte, error) {
	w := wire.NewWriter()
	v.Encode(w)
	data, err := w.Data()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "marshal crds value"), ErrEncoding)
	}
	return data, nil
}

// Encode appends the value to w
func (v *CrdsValue) Encode(w *wire.Writer) {
	w.Fixed(v.Signature[:])
	putData(w, v.Data)
}

func UnmarshalValue(data []byte) (*CrdsValue, error) {
	r := wire.NewReader(data)
	v := DecodeValue(r)
	if err := r.Finish(); err != nil {
		return nil, errors.Wrap(err, "unmarshal crds value")
	}
	return v, nil
}

// DecodeValue reads one value from r; nil when r failed
func DecodeValue(r *wire.Reader) *CrdsValue {
	v := &CrdsValue{}
	r.Fixed(v.Signature[:])
	v.Data = getData(r)
	if r.Err() != nil {
		return nil
	}
	return v
}

// Label names the slot a value occupies in a gossip table: one per origin and
// kind, or per origin, kind and index for votes and epoch slots
type Label struct {
	Kind   DataKind
	Pubkey crypto.Pubkey
	Index  uint8
}

func (v *CrdsValue) Label() Label {
	l := Label{Kind: v.Data.Kind(), Pubkey: v.Data.Pubkey()}
	switch d := v.Data.(type) {
	case *Vote:
		l.Index = d.Index
	case *EpochSlots:
		l.Index = d.Index
	}
	return l
}

func (l Label) String() string {
	switch l.Kind {
	case KindVote, KindEpochSlots:
		return fmt.Sprintf("%s(%d, %s)", l.Kind, l.Index, l.Pubkey)
	default:
		return fmt.Sprintf("%s(%s)", l.Kind, l.Pubkey)
	}
}
