package crds

import (
	"net/netip"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
)

// LegacyContactInfo is the address table a node announces for itself.
// Services the node does not run carry UnspecifiedAddr.
type LegacyContactInfo struct {
	ID          crypto.Pubkey
	Gossip      netip.AddrPort
	TVU         netip.AddrPort
	TVUForwards netip.AddrPort
	Repair      netip.AddrPort
	TPU         netip.AddrPort
	TPUForwards netip.AddrPort
	TPUVote     netip.AddrPort
	RPC         netip.AddrPort
	RPCPubsub   netip.AddrPort
	ServeRepair netip.AddrPort

	Wallclock    uint64
	ShredVersion uint16
}

// NewLegacyContactInfo returns a contact info with every address unspecified
func NewLegacyContactInfo(id crypto.Pubkey, wallclock uint64) *LegacyContactInfo {
	c := &LegacyContactInfo{ID: id, Wallclock: wallclock}
	for _, addr := range c.addrs() {
		*addr = UnspecifiedAddr
	}
	return c
}

func (c *LegacyContactInfo) Kind() DataKind { return KindLegacyContactInfo }
func (c *LegacyContactInfo) Pubkey() crypto.Pubkey { return c.ID }
func (c *LegacyContactInfo) GetWallclock() uint64 { return c.Wallclock }
func (c *LegacyContactInfo) Sanitize() error { return checkWallclock(c.Wallclock) }

// addrs lists the address fields in wire order
func (c *LegacyContactInfo) addrs() []*netip.AddrPort {
	return []*netip.AddrPort{
		&c.Gossip, &c.TVU, &c.TVUForwards, &c.Repair, &c.TPU,
		&c.TPUForwards, &c.TPUVote, &c.RPC, &c.RPCPubsub, &c.ServeRepair,
	}
}

func (c *LegacyContactInfo) marshal(w *wire.Writer) {
	w.Fixed(c.ID[:])
	for _, addr := range c.addrs() {
		putSocketAddr(w, *addr)
	}
	w.U64(c.Wallclock)
	w.U16(c.ShredVersion)
}

func unmarshalLegacyContactInfo(r *wire.Reader) *LegacyContactInfo {
	c := &LegacyContactInfo{}
	r.Fixed(c.ID[:])
	for _, addr := range c.addrs() {
		*addr = getSocketAddr(r)
	}
	c.Wallclock = r.U64()
	c.ShredVersion = r.U16()
	return c
}

// DuplicateShred is reserved for duplicate block evidence. It has no content
// and can only be forwarded.
type DuplicateShred struct{}

func (*DuplicateShred) Kind() DataKind { return KindDuplicateShred }
func (*DuplicateShred) Pubkey() crypto.Pubkey { return crypto.Pubkey{} }
func (*DuplicateShred) GetWallclock() uint64 { return 0 }
func (*DuplicateShred) Sanitize() error { return ErrUnimplementedVariant }
func (*DuplicateShred) marshal(*wire.Writer) {}

// ContactInfo is reserved for the extended contact info record
type ContactInfo struct{}

func (*ContactInfo) Kind() DataKind { return KindContactInfo }
func (*ContactInfo) Pubkey() crypto.Pubkey { return crypto.Pubkey{} }
func (*ContactInfo) GetWallclock() uint64 { return 0 }
func (*ContactInfo) Sanitize() error { return ErrUnimplementedVariant }
func (*ContactInfo) marshal(*wire.Writer) {}
