package p2p

import (
	"net/netip"
	"sync"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/metrics"
	"github.com/996BC/996.Gossip/p2p/peer"
	"github.com/996BC/996.Gossip/serialize/ping"
)

// challengeInterval is the least time between two pings sent to an
// unverified address
const challengeInterval = 20 * time.Second

type pendingPing struct {
	addr netip.AddrPort
	ping *ping.Ping
	sent time.Time
}

type verifiedKey struct {
	pubkey crypto.Pubkey
	addr   netip.AddrPort
}

// PingCache tracks the pings a node sent and the peers that answered them.
// Outstanding pings are keyed by the hash their pong has to carry.
type PingCache struct {
	keypair *crypto.Keypair
	ttl     time.Duration

	mu       sync.Mutex
	pending  map[crypto.Hash]*pendingPing
	verified map[verifiedKey]time.Time
	pinged   map[netip.AddrPort]time.Time
}

func NewPingCache(keypair *crypto.Keypair, ttl time.Duration) *PingCache {
	return &PingCache{
		keypair:  keypair,
		ttl:      ttl,
		pending:  make(map[crypto.Hash]*pendingPing),
		verified: make(map[verifiedKey]time.Time),
		pinged:   make(map[netip.AddrPort]time.Time),
	}
}

// NewPing creates a ping for addr and records it as outstanding
func (c *PingCache) NewPing(addr netip.AddrPort, now time.Time) (*ping.Ping, error) {
	p, err := ping.NewRandomPing(c.keypair)
	if err != nil {
		return nil, err
	}
	addr = peer.Normalize(addr)

	c.mu.Lock()
	c.pending[ping.HashToken(p.Token)] = &pendingPing{
		addr: addr,
		ping: p,
		sent: now,
	}
	c.pinged[addr] = now
	c.mu.Unlock()
	return p, nil
}

// Challenge is NewPing limited to one ping per address every
// challengeInterval, it returns nil while addr is still waited on
func (c *PingCache) Challenge(addr netip.AddrPort, now time.Time) (*ping.Ping, error) {
	c.mu.Lock()
	last, ok := c.pinged[peer.Normalize(addr)]
	c.mu.Unlock()
	if ok && now.Sub(last) < challengeInterval {
		return nil, nil
	}
	return c.NewPing(addr, now)
}

// AddPong accepts pong only if it answers an outstanding ping sent to addr.
// On success the sender is verified at addr and the ping is consumed.
func (c *PingCache) AddPong(pong *ping.Pong, addr netip.AddrPort, now time.Time) bool {
	_, ok := c.addPong(pong, addr, now)
	return ok
}

func (c *PingCache) addPong(pong *ping.Pong, addr netip.AddrPort, now time.Time) (time.Duration, bool) {
	addr = peer.Normalize(addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	pending, ok := c.pending[pong.Hash]
	if !ok || pending.addr != addr || now.Sub(pending.sent) > c.ttl {
		return 0, false
	}
	if !pong.Matches(pending.ping) {
		return 0, false
	}

	delete(c.pending, pong.Hash)
	c.verified[verifiedKey{pong.From, addr}] = now
	metrics.VerifiedPeers.Set(float64(len(c.verified)))
	return now.Sub(pending.sent), true
}

// Check reports whether pubkey answered a ping at addr within the ttl
func (c *PingCache) Check(pubkey crypto.Pubkey, addr netip.AddrPort, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.verified[verifiedKey{pubkey, peer.Normalize(addr)}]
	return ok && now.Sub(at) <= c.ttl
}

// Prune forgets expired pings and round trips
func (c *PingCache) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for hash, p := range c.pending {
		if now.Sub(p.sent) > c.ttl {
			delete(c.pending, hash)
		}
	}
	for key, at := range c.verified {
		if now.Sub(at) > c.ttl {
			delete(c.verified, key)
		}
	}
	for addr, at := range c.pinged {
		if now.Sub(at) >= challengeInterval {
			delete(c.pinged, addr)
		}
	}
	metrics.VerifiedPeers.Set(float64(len(c.verified)))
}

func (c *PingCache) forget(hash crypto.Hash) {
	c.mu.Lock()
	delete(c.pending, hash)
	c.mu.Unlock()
}

func (c *PingCache) size() (pending int, verified int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending), len(c.verified)
}
