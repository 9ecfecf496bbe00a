package main

import (
	"context"
	"net"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/p2p"
	"github.com/996BC/996.Gossip/p2p/peer"
	"github.com/996BC/996.Gossip/rpc"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type nodeStub struct {
	peers  []*peer.Peer
	pushed int
}

func (n *nodeStub) Peers(expect int) []*peer.Peer { return n.peers }

func (n *nodeStub) Probe(ctx context.Context, addr netip.AddrPort) (time.Duration, error) {
	if addr.Port() == 1 {
		return 0, errors.Wrapf(p2p.ErrNoPong, "probe %v", addr)
	}
	return time.Millisecond, nil
}

func (n *nodeStub) Push(values []*crds.CrdsValue, addr netip.AddrPort) error {
	n.pushed += len(values)
	return nil
}

func newTestClient(t *testing.T, node rpc.Node) *httpClient {
	s := rpc.NewServer(&rpc.Config{Node: node})
	ts := httptest.NewServer(s.Handler)
	t.Cleanup(ts.Close)

	host, port, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return newHTTPClient(host, p, "http")
}

func TestHTTPClient(t *testing.T) {
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	node := &nodeStub{
		peers: []*peer.Peer{peer.NewPeer(netip.MustParseAddrPort("10.0.0.1:8001"), kp.Pubkey())},
	}
	client := newTestClient(t, node)

	require.NoError(t, client.queryPeers())
	require.NoError(t, client.probe("10.0.0.1:8001"))
	require.Error(t, client.probe("10.0.0.1:1"))
	require.Error(t, client.probe("nonsense"))

	// the node runs without an archive
	require.Error(t, client.queryCount())

	v, err := crds.NewSignedValue(crds.NewLegacyContactInfo(kp.Pubkey(), 1000), kp)
	require.NoError(t, err)
	raw, err := v.Marshal()
	require.NoError(t, err)
	require.NoError(t, client.pushRecords([]string{utils.ToHex(raw)}))
	require.Equal(t, 1, node.pushed)
}

func TestReadHexLines(t *testing.T) {
	file := filepath.Join(t.TempDir(), "records.txt")
	require.NoError(t, os.WriteFile(file, []byte("# comment\nABCD\n\n  0102  \n"), 0600))

	lines, err := readHexLines(file)
	require.NoError(t, err)
	require.Equal(t, []string{"ABCD", "0102"}, lines)

	require.NoError(t, os.WriteFile(file, []byte("xyz\n"), 0600))
	_, err = readHexLines(file)
	require.Error(t, err)
}
