package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/ed25519"
)

const (
	PubkeySize    = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
	HashSize      = sha256.Size
	KeypairSize   = ed25519.PrivateKeySize

	// TokenSize is the length of a ping token
	TokenSize = 32
)

// Pubkey is a node identity
type Pubkey [PubkeySize]byte

// Signature is an ed25519 signature
type Signature [SignatureSize]byte

// Hash is a sha256 digest
type Hash [HashSize]byte

var ErrInvalidKeypair = errors.New("invalid keypair bytes")

// Keypair signs on behalf of the local node; the secret half never leaves the process
type Keypair struct {
	priv ed25519.PrivateKey
}

// NewKeypair generates a keypair from crypto/rand
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate keypair")
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32 bytes seed
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidKeypair, "seed length %d", len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBytes restores a keypair from its 64 bytes form (seed followed by public key)
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != KeypairSize {
		return nil, errors.Wrapf(ErrInvalidKeypair, "length %d", len(b))
	}
	kp, err := KeypairFromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	pub := kp.Pubkey()
	if string(pub[:]) != string(b[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrInvalidKeypair, "public half does not match seed")
	}
	return kp, nil
}

// Bytes returns the 64 bytes form of the keypair
func (k *Keypair) Bytes() []byte {
	result := make([]byte, KeypairSize)
	copy(result, k.priv)
	return result
}

func (k *Keypair) Pubkey() Pubkey {
	var result Pubkey
	copy(result[:], k.priv[ed25519.SeedSize:])
	return result
}

func (k *Keypair) Sign(message []byte) Signature {
	var result Signature
	copy(result[:], ed25519.Sign(k.priv, message))
	return result
}

// Verify checks the signature of message against pubkey
func (s Signature) Verify(pubkey Pubkey, message []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pubkey[:]), message, s[:])
}

// HashV returns sha256 over the concatenation of parts
func HashV(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var result Hash
	copy(result[:], h.Sum(nil))
	return result
}

// NewToken reads a ping token from crypto/rand
func NewToken() ([TokenSize]byte, error) {
	var token [TokenSize]byte
	if _, err := io.ReadFull(rand.Reader, token[:]); err != nil {
		return token, errors.Wrap(err, "read random token")
	}
	return token, nil
}
