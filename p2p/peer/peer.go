package peer

import (
	"fmt"
	"net/netip"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/utils"
)

var logger = utils.NewLogger("peer")

// Peer is a node reachable over gossip
type Peer struct {
	Addr netip.AddrPort

	// zero until the peer proved its identity with a pong
	Pubkey crypto.Pubkey
}

// NewPeer create a Peer, pubkey is zero for a seed nobody has answered for yet
func NewPeer(addr netip.AddrPort, pubkey crypto.Pubkey) *Peer {
	return &Peer{
		Addr:   Normalize(addr),
		Pubkey: pubkey,
	}
}

// ID is the base58 identity, empty for an unknown key
func (p *Peer) ID() string {
	if p.Pubkey == (crypto.Pubkey{}) {
		return ""
	}
	return p.Pubkey.String()
}

func (p *Peer) String() string {
	return fmt.Sprintf("ID %s address %s", p.ID(), p.Addr)
}

// Normalize strips the v4-in-v6 mapping so both forms of an address compare equal
func Normalize(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
