// Package ping is the challenge and response that proves a peer is reachable
// at an address and holds the key it claims.
//
// Ping
// +------+-------+-----------+
// | From | Token | Signature |
// +------+-------+-----------+
// (bytes)
// From         32
// Token        32
// Signature    64 (over Token)
//
// Pong
// +------+------+-----------+
// | From | Hash | Signature |
// +------+------+-----------+
// (bytes)
// From         32
// Hash         32 sha256(HashPrefix || Token)
// Signature    64 (over Hash)
package ping

import (
	"fmt"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

// HashPrefix separates pong hashes from every other sha256 use
const HashPrefix = "SOLANA_PING_PONG"

const (
	PingSize = crypto.PubkeySize + crypto.TokenSize + crypto.SignatureSize
	PongSize = crypto.PubkeySize + crypto.HashSize + crypto.SignatureSize
)

type Token [crypto.TokenSize]byte

type Ping struct {
	From      crypto.Pubkey
	Token     Token
	Signature crypto.Signature
}

// NewPing signs token with keypair
func NewPing(token Token, keypair *crypto.Keypair) *Ping {
	return &Ping{
		From:      keypair.Pubkey(),
		Token:     token,
		Signature: keypair.Sign(token[:]),
	}
}

// NewRandomPing draws a fresh token
func NewRandomPing(keypair *crypto.Keypair) (*Ping, error) {
	token, err := crypto.NewToken()
	if err != nil {
		return nil, errors.Wrap(err, "new ping token")
	}
	return NewPing(token, keypair), nil
}

func (p *Ping) Verify() bool {
	return p.Signature.Verify(p.From, p.Token[:])
}

func (p *Ping) String() string {
	return fmt.Sprintf("From %s Token %x", p.From, p.Token[:8])
}

func (p *Ping) Encode(w *wire.Writer) {
	w.Fixed(p.From[:])
	w.Fixed(p.Token[:])
	w.Fixed(p.Signature[:])
}

func DecodePing(r *wire.Reader) *Ping {
	p := &Ping{}
	r.Fixed(p.From[:])
	r.Fixed(p.Token[:])
	r.Fixed(p.Signature[:])
	if r.Err() != nil {
		return nil
	}
	return p
}

func (p *Ping) Marshal() []byte {
	w := wire.NewWriter()
	p.Encode(w)
	data, _ := w.Data()
	return data
}

func UnmarshalPing(data []byte) (*Ping, error) {
	r := wire.NewReader(data)
	p := DecodePing(r)
	if err := r.Finish(); err != nil {
		return nil, errors.Wrap(err, "unmarshal ping")
	}
	return p, nil
}

// HashToken is the hash a pong must carry to answer a ping of token
func HashToken(token Token) crypto.Hash {
	return crypto.HashV([]byte(HashPrefix), token[:])
}

type Pong struct {
	From      crypto.Pubkey
	Hash      crypto.Hash
	Signature crypto.Signature
}

// NewPong answers ping. It does not check the ping signature.
func NewPong(ping *Ping, keypair *crypto.Keypair) *Pong {
	hash := HashToken(ping.Token)
	return &Pong{
		From:      keypair.Pubkey(),
		Hash:      hash,
		Signature: keypair.Sign(hash[:]),
	}
}

// Verify checks the signature only; use Matches to bind the pong to a ping
func (p *Pong) Verify() bool {
	return p.Signature.Verify(p.From, p.Hash[:])
}

// Matches reports whether p answers exactly this ping
func (p *Pong) Matches(ping *Ping) bool {
	return p.Hash == HashToken(ping.Token) && p.Verify()
}

func (p *Pong) String() string {
	return fmt.Sprintf("From %s Hash %s", p.From, p.Hash)
}

func (p *Pong) Encode(w *wire.Writer) {
	w.Fixed(p.From[:])
	w.Fixed(p.Hash[:])
	w.Fixed(p.Signature[:])
}

func DecodePong(r *wire.Reader) *Pong {
	p := &Pong{}
	r.Fixed(p.From[:])
	r.Fixed(p.Hash[:])
	r.Fixed(p.Signature[:])
	if r.Err() != nil {
		return nil
	}
	return p
}

func (p *Pong) Marshal() []byte {
	w := wire.NewWriter()
	p.Encode(w)
	data, _ := w.Data()
	return data
}

func UnmarshalPong(data []byte) (*Pong, error) {
	r := wire.NewReader(data)
	p := DecodePong(r)
	if err := r.Finish(); err != nil {
		return nil, errors.Wrap(err, "unmarshal pong")
	}
	return p, nil
}
