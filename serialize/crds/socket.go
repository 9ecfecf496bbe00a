package crds

import (
	"net/netip"

	"github.com/996BC/996.Gossip/serialize/wire"
	"github.com/cockroachdb/errors"
)

const (
	socketV4 = uint32(0)
	socketV6 = uint32(1)
)

// UnspecifiedAddr is 0.0.0.0:0, the address of a service a node does not run
var UnspecifiedAddr = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

// putSocketAddr writes addr; the zero AddrPort is written as UnspecifiedAddr
func putSocketAddr(w *wire.Writer, addr netip.AddrPort) {
	ip := addr.Addr()
	switch {
	case !ip.IsValid():
		w.Discriminant(socketV4)
		w.Fixed(make([]byte, 4))
	case ip.Is4():
		w.Discriminant(socketV4)
		b := ip.As4()
		w.Fixed(b[:])
	default:
		w.Discriminant(socketV6)
		b := ip.As16()
		w.Fixed(b[:])
	}
	w.U16(addr.Port())
}

func getSocketAddr(r *wire.Reader) netip.AddrPort {
	var ip netip.Addr
	switch tag := r.Discriminant(); tag {
	case socketV4:
		var b [4]byte
		r.Fixed(b[:])
		ip = netip.AddrFrom4(b)
	case socketV6:
		var b [16]byte
		r.Fixed(b[:])
		ip = netip.AddrFrom16(b)
	default:
		r.Fail(errors.Wrapf(wire.ErrUnknownDiscriminant, "socket addr tag %d", tag))
	}
	port := r.U16()
	if r.Err() != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ip, port)
}
