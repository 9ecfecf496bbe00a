package crypto

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/cockroachdb/errors"
)

var ErrInvalidID = errors.New("invalid base58 id")

// String returns the base58 form used in logs and on the command line
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// PubkeyFromString parses the base58 form of a public key
func PubkeyFromString(id string) (Pubkey, error) {
	var result Pubkey
	b := base58.Decode(id)
	if len(b) != PubkeySize {
		return result, errors.Wrapf(ErrInvalidID, "%q", id)
	}
	copy(result[:], b)
	return result, nil
}

// HashFromString parses the base58 form of a hash
func HashFromString(s string) (Hash, error) {
	var result Hash
	b := base58.Decode(s)
	if len(b) != HashSize {
		return result, errors.Wrapf(ErrInvalidID, "%q", s)
	}
	copy(result[:], b)
	return result, nil
}
