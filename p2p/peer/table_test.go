package peer

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/params"
	"github.com/996BC/996.Gossip/utils"
)

var tableTestVar = &struct {
	now           time.Time
	seeds         []netip.AddrPort
	peers         []*Peer
	selfPeerIndex int
	initSeedSize  int
	initPeerSize  int
}{
	now: time.Unix(1700000000, 0),
	seeds: []netip.AddrPort{
		netip.MustParseAddrPort("192.168.1.1:10000"),
		netip.MustParseAddrPort("192.168.1.2:10001"),
	},
}

func init() {
	tv := tableTestVar

	addrs := []string{
		"192.168.2.1:10001",
		"192.168.2.2:10002",
		"192.168.2.3:10003",
		"192.168.2.4:10004",
	}
	for i, addr := range addrs {
		kp, _ := crypto.KeypairFromSeed(bytes.Repeat([]byte{byte(i + 1)}, 32))
		tv.peers = append(tv.peers, NewPeer(netip.MustParseAddrPort(addr), kp.Pubkey()))
	}

	tv.selfPeerIndex = 0
	tv.initSeedSize = len(tv.seeds)
	tv.initPeerSize = len(tv.peers) - 1 // exclude self
}

func TestAddPeers(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	if err := utils.TCheckInt("table seeds size", tv.initSeedSize, len(table.seeds)); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckInt("table peers size", tv.initPeerSize, len(table.peers)); err != nil {
		t.Fatal(err)
	}

	// unknown keys never enter the peer set
	table.AddPeer(NewPeer(netip.MustParseAddrPort("10.0.0.1:1"), crypto.Pubkey{}), tv.now)
	if err := utils.TCheckInt("table peers size", tv.initPeerSize, len(table.peers)); err != nil {
		t.Fatal(err)
	}
}

func TestGetPeers(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	// all the peers are inactive
	for i := 0; i < tv.initPeerSize+1; i++ {
		peers := table.GetPeers(i, nil, tv.now)
		if err := utils.TCheckInt("get peers size", 0, len(peers)); err != nil {
			t.Fatal(err)
		}
	}

	// all the peers are active
	for _, v := range table.peers {
		v.updateActiveTime(tv.now)
	}
	for i := 0; i < tv.initPeerSize+1; i++ {
		expectPeersSize := i
		if i > tv.initPeerSize {
			expectPeersSize = tv.initPeerSize
		}

		peers := table.GetPeers(i, nil, tv.now)
		if err := utils.TCheckInt("get peers size", expectPeersSize, len(peers)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGetPeersWithExclude(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	// active all the peers
	for _, v := range table.peers {
		v.updateActiveTime(tv.now)
	}

	peers := table.GetPeers(tv.initPeerSize, nil, tv.now)
	exclude := make(map[string]bool)
	exclude[peers[0].ID()] = true

	peers = table.GetPeers(tv.initPeerSize, exclude, tv.now)
	if err := utils.TCheckInt("get peers size", tv.initPeerSize-1, len(peers)); err != nil {
		t.Fatal(err)
	}
}

func TestExists(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	if !table.Exists(tv.peers[1].ID()) {
		t.Fatal("expect peer 1 exists")
	}
	if table.Exists(tv.peers[tv.selfPeerIndex].ID()) {
		t.Fatal("expect self not in table")
	}
	if table.Exists("not-base58-0OIl") {
		t.Fatal("expect invalid id not exists")
	}
}

func TestGetPeersToPing(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()
	expectSize := tv.initSeedSize + tv.initPeerSize

	// all the peers are timeout
	peers := table.PeersToPing(tv.now)
	if err := utils.TCheckInt("number of peers to ping", expectSize, len(peers)); err != nil {
		t.Fatal(err)
	}

	// just pinged, nothing due
	peers = table.PeersToPing(tv.now)
	if err := utils.TCheckInt("number of peers to ping", 0, len(peers)); err != nil {
		t.Fatal(err)
	}

	// seeds are due again first
	later := tv.now.Add(pingSeedInterval)
	peers = table.PeersToPing(later)
	if err := utils.TCheckInt("number of seeds to ping", tv.initSeedSize, len(peers)); err != nil {
		t.Fatal(err)
	}

	// one of the peers answered
	later = tv.now.Add(params.PingInterval)
	table.RecvPong(tv.peers[1], later)
	peers = table.PeersToPing(later)
	if err := utils.TCheckInt("number of peers to ping", expectSize-1, len(peers)); err != nil {
		t.Fatal(err)
	}
}

func TestRecvPongFromSeed(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	kp, _ := crypto.NewKeypair()
	peer := NewPeer(tv.seeds[0], kp.Pubkey())
	table.RecvPong(peer, tv.now)

	if err := utils.TCheckInt("seeds size", tv.initSeedSize-1, len(table.seeds)); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckInt("peers size", tv.initPeerSize+1, len(table.peers)); err != nil {
		t.Fatal(err)
	}

	pst, ok := table.peers[kp.Pubkey()]
	if !ok {
		t.Fatal("expect promoted seed in peers")
	}
	if !pst.isSeed || !pst.isAvaible(tv.now) {
		t.Fatal("expect promoted seed active and kept as seed")
	}
}

func TestRecvPongFromPeer(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	moved := NewPeer(netip.MustParseAddrPort("10.1.1.1:9000"), tv.peers[2].Pubkey)
	table.RecvPong(moved, tv.now)

	pst := table.peers[moved.Pubkey]
	if !pst.isAvaible(tv.now) {
		t.Fatal("expect pong peer active")
	}
	if err := utils.TCheckString("peer address", moved.Addr.String(), pst.Addr.String()); err != nil {
		t.Fatal(err)
	}
}

func TestRefresh(t *testing.T) {
	tv := tableTestVar
	table := newTableImp()

	// never pinged peers stay
	table.Refresh(tv.now.Add(2 * params.PeerExpiredTime))
	if err := utils.TCheckInt("peers size", tv.initPeerSize, len(table.peers)); err != nil {
		t.Fatal(err)
	}

	for _, v := range table.peers {
		v.doPing(tv.now)
		break
	}
	table.Refresh(tv.now.Add(params.PeerExpiredTime - time.Second))
	if err := utils.TCheckInt("peers size", tv.initPeerSize, len(table.peers)); err != nil {
		t.Fatal(err)
	}
	table.Refresh(tv.now.Add(params.PeerExpiredTime))
	if err := utils.TCheckInt("peers size", tv.initPeerSize-1, len(table.peers)); err != nil {
		t.Fatal(err)
	}
}

func TestNormalize(t *testing.T) {
	mapped := netip.MustParseAddrPort("[::ffff:10.0.0.1]:8001")
	plain := netip.MustParseAddrPort("10.0.0.1:8001")
	if Normalize(mapped) != plain {
		t.Fatalf("expect %v, got %v", plain, Normalize(mapped))
	}
}

// newTableImp returns a table with its self key from tableTestVar
func newTableImp() *tableImp {
	tv := tableTestVar

	// set the peer 0 as self
	table := newTable(tv.peers[tv.selfPeerIndex].Pubkey)
	table.AddSeeds(tv.seeds, tv.now)
	for _, p := range tv.peers {
		table.AddPeer(p, tv.now)
	}
	return table
}
