package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/db"
	"github.com/996BC/996.Gossip/p2p"
	"github.com/996BC/996.Gossip/p2p/peer"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type nodeStub struct {
	peers  []*peer.Peer
	pushed map[netip.AddrPort][]*crds.CrdsValue
	alive  bool
}

func newNodeStub(t *testing.T) *nodeStub {
	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	return &nodeStub{
		peers: []*peer.Peer{
			peer.NewPeer(netip.MustParseAddrPort("10.0.0.1:8001"), kp.Pubkey()),
		},
		pushed: make(map[netip.AddrPort][]*crds.CrdsValue),
		alive:  true,
	}
}

func (n *nodeStub) Peers(expect int) []*peer.Peer {
	if expect < len(n.peers) {
		return n.peers[:expect]
	}
	return n.peers
}

func (n *nodeStub) Probe(ctx context.Context, addr netip.AddrPort) (time.Duration, error) {
	if !n.alive {
		return 0, errors.Wrapf(p2p.ErrNoPong, "probe %v", addr)
	}
	return 1500 * time.Microsecond, nil
}

func (n *nodeStub) Push(values []*crds.CrdsValue, addr netip.AddrPort) error {
	n.pushed[addr] = append(n.pushed[addr], values...)
	return nil
}

func do(t *testing.T, s *Server, method, target string, body []byte, data interface{}) *HTTPResponse {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := ParseHTTPResponse(rec.Body.Bytes(), data)
	require.NotNil(t, resp)
	return resp
}

func TestQueryPeers(t *testing.T) {
	node := newNodeStub(t)
	s := NewServer(&Config{Port: DefaultHTTPPort, Node: node})

	data := &GetPeersResponse{}
	resp := do(t, s, http.MethodGet, QueryPeersV1Path, nil, data)
	require.Equal(t, CodeSuccess, resp.Code)
	require.Len(t, data.Data, 1)
	require.Equal(t, node.peers[0].ID(), data.Data[0].ID)
	require.Equal(t, "10.0.0.1:8001", data.Data[0].Address)

	resp = do(t, s, http.MethodGet, QueryPeersV1Path+"?limit=0", nil, nil)
	require.Equal(t, CodeBadRequest, resp.Code)
}

func TestProbePeer(t *testing.T) {
	node := newNodeStub(t)
	s := NewServer(&Config{Port: DefaultHTTPPort, Node: node})

	data := &ProbeResponse{}
	resp := do(t, s, http.MethodGet, ProbePeerV1Path+"?addr=10.0.0.1:8001", nil, data)
	require.Equal(t, CodeSuccess, resp.Code)
	require.Equal(t, int64(1500), data.RTT)

	node.alive = false
	resp = do(t, s, http.MethodGet, ProbePeerV1Path+"?addr=10.0.0.1:8001", nil, nil)
	require.Equal(t, CodeFailed, resp.Code)

	resp = do(t, s, http.MethodGet, ProbePeerV1Path+"?addr=10.0.0.1", nil, nil)
	require.Equal(t, CodeBadRequest, resp.Code)
}

func TestRecordsDisabled(t *testing.T) {
	s := NewServer(&Config{Port: DefaultHTTPPort, Node: newNodeStub(t)})

	resp := do(t, s, http.MethodGet, CountRecordV1Path, nil, nil)
	require.Equal(t, CodeFailed, resp.Code)
	require.Equal(t, "archive disabled", resp.Message)
}

func TestPushAndQueryRecords(t *testing.T) {
	require.NoError(t, db.Init(t.TempDir()))
	defer db.Close()

	node := newNodeStub(t)
	s := NewServer(&Config{Port: DefaultHTTPPort, Node: node, Archive: true})

	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	values := crds.GenSignedValues(kp)[:3]

	req := &PushRecordsReq{}
	for _, v := range values {
		raw, err := v.Marshal()
		require.NoError(t, err)
		req.Data = append(req.Data, utils.ToHex(raw))
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	pushed := &PushRecordsResp{}
	resp := do(t, s, http.MethodPost, PushRecordV1Path, body, pushed)
	require.Equal(t, CodeSuccess, resp.Code)
	require.Len(t, pushed.Hash, 3)
	require.Equal(t, 1, pushed.Peers)
	require.Len(t, node.pushed[node.peers[0].Addr], 3)

	// count
	count := &CountResponse{}
	do(t, s, http.MethodGet, CountRecordV1Path, nil, count)
	require.Equal(t, uint64(3), count.Count)

	// via hash
	records := &GetRecordsResponse{}
	resp = do(t, s, http.MethodGet, QueryRecordViaHashV1Path+"?hash="+pushed.Hash[0], nil, records)
	require.Equal(t, CodeSuccess, resp.Code)
	require.Len(t, records.Data, 1)
	require.Equal(t, req.Data[0], records.Data[0].Raw)
	require.Equal(t, kp.Pubkey().String(), records.Data[0].Origin)

	// via origin
	records = &GetRecordsResponse{}
	do(t, s, http.MethodGet, QueryRecordViaOriginV1Path+"?id="+kp.Pubkey().String(), nil, records)
	require.Len(t, records.Data, 3)

	// via kind
	records = &GetRecordsResponse{}
	kind := values[0].Data.Kind().String()
	do(t, s, http.MethodGet, QueryRecordViaKindV1Path+"?kind="+kind, nil, records)
	require.Len(t, records.Data, 1)
	require.Equal(t, kind, records.Data[0].Kind)

	// unknown record
	resp = do(t, s, http.MethodGet, QueryRecordViaHashV1Path+"?hash="+crds.RandHash().String(), nil, nil)
	require.Equal(t, CodeFailed, resp.Code)
}

func TestPushRejects(t *testing.T) {
	s := NewServer(&Config{Port: DefaultHTTPPort, Node: newNodeStub(t)})

	kp, err := crypto.NewKeypair()
	require.NoError(t, err)
	v := crds.GenSignedValues(kp)[0]
	raw, err := v.Marshal()
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	bodies := [][]byte{
		[]byte("not json"),
		[]byte(`{"data":[]}`),
		[]byte(`{"data":["zz"]}`),
		[]byte(`{"data":["` + utils.ToHex(raw) + `"]}`),
	}
	for _, body := range bodies {
		resp := do(t, s, http.MethodPost, PushRecordV1Path, body, nil)
		require.Equal(t, CodeBadRequest, resp.Code, string(body))
	}

	resp := do(t, s, http.MethodGet, PushRecordV1Path, nil, nil)
	require.Equal(t, CodeBadRequest, resp.Code)
}
