package peer

import (
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/996BC/996.Gossip/crypto"
)

// Table matains the peers a node gossips with
type Table interface {
	AddSeeds(addrs []netip.AddrPort, now time.Time)
	AddPeer(p *Peer, now time.Time)
	GetPeers(expect int, exclude map[string]bool, now time.Time) []*Peer
	Exists(id string) bool

	// PeersToPing returns the peers due for a new challenge and marks them pinged
	PeersToPing(now time.Time) []*Peer

	// RecvPong records a verified round trip from p
	RecvPong(p *Peer, now time.Time)

	Refresh(now time.Time)
}

type tableImp struct {
	self  crypto.Pubkey
	seeds map[netip.AddrPort]*pstate
	peers map[crypto.Pubkey]*pstate
	r     *rand.Rand
	lock  sync.Mutex
}

func NewTable(self crypto.Pubkey) Table {
	return newTable(self)
}

func newTable(self crypto.Pubkey) *tableImp {
	return &tableImp{
		self:  self,
		seeds: make(map[netip.AddrPort]*pstate),
		peers: make(map[crypto.Pubkey]*pstate),
		r:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *tableImp) AddSeeds(addrs []netip.AddrPort, now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, addr := range addrs {
		seed := NewPeer(addr, crypto.Pubkey{})
		if _, ok := t.seeds[seed.Addr]; !ok {
			t.seeds[seed.Addr] = newPState(seed, true, now)
		}
	}
}

func (t *tableImp) AddPeer(p *Peer, now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.add(newPState(p, false, now))
}

func (t *tableImp) GetPeers(expect int, exclude map[string]bool, now time.Time) []*Peer {
	var peers []*Peer
	t.lock.Lock()
	for _, peer := range t.peers {
		if _, ok := exclude[peer.ID()]; !ok && peer.isAvaible(now) {
			peers = append(peers, peer.Peer)
		}
	}
	t.lock.Unlock()

	peerSize := len(peers)
	if peerSize <= expect {
		return peers
	}

	t.lock.Lock()
	t.r.Shuffle(peerSize, func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
	t.lock.Unlock()

	return peers[:expect]
}

func (t *tableImp) Exists(id string) bool {
	pubkey, err := crypto.PubkeyFromString(id)
	if err != nil {
		return false
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	_, ok := t.peers[pubkey]
	return ok
}

func (t *tableImp) PeersToPing(now time.Time) []*Peer {
	t.lock.Lock()
	defer t.lock.Unlock()

	var result []*Peer
	for _, peer := range t.peers {
		if peer.isTimeToPing(now) {
			result = append(result, peer.Peer)
			peer.doPing(now)
		}
	}

	for _, seed := range t.seeds {
		if now.Sub(seed.lastPingTime) >= pingSeedInterval {
			result = append(result, seed.Peer)
			seed.doPing(now)
		}
	}

	return result
}

func (t *tableImp) RecvPong(p *Peer, now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if peer, ok := t.peers[p.Pubkey]; ok {
		if peer.Addr != p.Addr {
			peer.Peer = NewPeer(p.Addr, p.Pubkey)
		}
		peer.updateActiveTime(now)
		return
	}

	isSeed := false
	if _, ok := t.seeds[p.Addr]; ok {
		isSeed = true
		delete(t.seeds, p.Addr)
	}

	pst := newPState(p, isSeed, now)
	pst.updateActiveTime(now)
	t.add(pst)
}

func (t *tableImp) Refresh(now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for key, peer := range t.peers {
		if peer.isToRemove(now) {
			logger.Debug("peer %v timeout, clean\n", peer.Peer)
			delete(t.peers, key)
		}
	}
}

// add helper(should call with lock)
func (t *tableImp) add(pst *pstate) {
	if pst.Pubkey == t.self || pst.Pubkey == (crypto.Pubkey{}) {
		return
	}

	if _, ok := t.peers[pst.Pubkey]; !ok {
		logger.Debug("add peer %v\n", pst.Peer)
		t.peers[pst.Pubkey] = pst
	}
}
