package crds

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

// NodeInstance identifies one running process of a node. A restarted
// process draws a new Token, so peers can tell two instances apart.
type NodeInstance struct {
	From      crypto.Pubkey
	Wallclock uint64
	// Timestamp is the process start time in milliseconds
	Timestamp uint64
	Token     uint64
}

// NewNodeInstance draws a random token for the process started at now
func NewNodeInstance(from crypto.Pubkey, now uint64) (*NodeInstance, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, errors.Wrap(err, "draw node instance token")
	}
	return &NodeInstance{
		From:      from,
		Wallclock: now,
		Timestamp: now,
		Token:     binary.LittleEndian.Uint64(b[:]),
	}, nil
}

// WithWallclock returns a copy refreshed at wallclock
func (n *NodeInstance) WithWallclock(wallclock uint64) *NodeInstance {
	result := *n
	result.Wallclock = wallclock
	return &result
}

// CheckDuplicate reports whether other is a different instance of the same
// node that started no earlier than n; the older instance should stop
func (n *NodeInstance) CheckDuplicate(other *NodeInstance) bool {
	return n.Token != other.Token && n.Timestamp <= other.Timestamp && n.From == other.From
}

func (n *NodeInstance) Kind() DataKind { return KindNodeInstance }
func (n *NodeInstance) Pubkey() crypto.Pubkey { return n.From }
func (n *NodeInstance) GetWallclock() uint64 { return n.Wallclock }
func (n *NodeInstance) Sanitize() error { return checkWallclock(n.Wallclock) }

func (n *NodeInstance) marshal(w *wire.Writer) {
	w.Fixed(n.From[:])
	w.U64(n.Wallclock)
	w.U64(n.Timestamp)
	w.U64(n.Token)
}

func unmarshalNodeInstance(r *wire.Reader) *NodeInstance {
	n := &NodeInstance{}
	r.Fixed(n.From[:])
	n.Wallclock = r.U64()
	n.Timestamp = r.U64()
	n.Token = r.U64()
	return n
}
