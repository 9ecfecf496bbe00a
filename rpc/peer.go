package rpc

import (
	"context"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/996BC/996.Gossip/params"
)

const (
	peerPath        = "/peer"
	defaultPeersNum = 64
)

var (
	// PeerV1Path /v1/peer
	PeerV1Path = version1Path + peerPath

	// QueryPeersV1Path GET /v1/peer/query
	QueryPeersV1Path = PeerV1Path + "/query"

	// ProbePeerV1Path GET /v1/peer/probe
	ProbePeerV1Path = PeerV1Path + "/probe"

	peerHandlers = HTTPHandlers{
		{QueryPeersV1Path, getPeers},
		{ProbePeerV1Path, probePeer},
	}
)

type PeerJSON struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

/*
GET /v1/peer/query?limit=...
*/
type GetPeersResponse struct {
	Data []*PeerJSON `json:"data"`
}

func getPeers(w http.ResponseWriter, r *http.Request) {
	limit := defaultPeersNum
	if param, ok := r.URL.Query()[GetLimitParam]; ok {
		n, err := strconv.Atoi(param[0])
		if err != nil || n <= 0 {
			badRequestResponse(w)
			return
		}
		limit = n
	}

	resp := &GetPeersResponse{Data: []*PeerJSON{}}
	for _, p := range globalSvr.node.Peers(limit) {
		resp.Data = append(resp.Data, &PeerJSON{
			ID:      p.ID(),
			Address: p.Addr.String(),
		})
	}
	successWithDataResponse(resp, w)
}

/*
GET /v1/peer/probe?addr=ip:port
*/
type ProbeResponse struct {
	Address string `json:"address"`
	RTT     int64  `json:"rtt_us"`
}

func probePeer(w http.ResponseWriter, r *http.Request) {
	param, ok := r.URL.Query()[GetAddrParam]
	if !ok {
		badRequestResponse(w)
		return
	}
	addr, err := netip.ParseAddrPort(param[0])
	if err != nil {
		badRequestResponse(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), params.ProbeTimeout)
	defer cancel()
	rtt, err := globalSvr.node.Probe(ctx, addr)
	if err != nil {
		failedResponse(err.Error(), w)
		return
	}

	successWithDataResponse(&ProbeResponse{
		Address: addr.String(),
		RTT:     rtt.Microseconds(),
	}, w)
}
