package rpc

import (
	"context"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/996BC/996.Gossip/metrics"
	"github.com/996BC/996.Gossip/p2p/peer"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
)

var logger = utils.NewLogger("http")

const (
	// LocalHost "127.0.0.1"
	LocalHost = "127.0.0.1"
	// DefaultHTTPPort 23666
	DefaultHTTPPort = 23666

	version1Path  = "/v1"
	GetHashParam  = "hash"
	GetIDParam    = "id"
	GetKindParam  = "kind"
	GetAddrParam  = "addr"
	GetLimitParam = "limit"
)

// Node is the part of a gossip node the http server drives
type Node interface {
	Peers(expect int) []*peer.Peer
	Probe(ctx context.Context, addr netip.AddrPort) (time.Duration, error)
	Push(values []*crds.CrdsValue, addr netip.AddrPort) error
}

type Config struct {
	Port int
	Node Node

	// Archive enables the record queries, db.Init must have been called
	Archive bool
}

// Server is a http server provides interfaces for querying peers and records,
// probing and pushing records; it only listens on 127.0.0.1
type Server struct {
	*http.Server
	node    Node
	archive bool
}

var globalSvr *Server

type HTTPHandlers = []struct {
	Path string
	F    func(http.ResponseWriter, *http.Request)
}

func NewServer(conf *Config) *Server {
	sMux := http.NewServeMux()
	// peer
	for _, handler := range peerHandlers {
		sMux.HandleFunc(handler.Path, handler.F)
	}
	// record
	for _, handler := range recordHandlers {
		sMux.HandleFunc(handler.Path, handler.F)
	}
	sMux.Handle("/metrics", metrics.Handler())

	//default handler
	sMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	globalSvr = &Server{
		&http.Server{
			Addr:    LocalHost + ":" + strconv.Itoa(conf.Port),
			Handler: sMux,
		},
		conf.Node,
		conf.Archive,
	}

	return globalSvr
}

func (s *Server) Start() {
	go func() {
		if err := s.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("Http server listen failed:%v\n", err)
		}
	}()
}

func (s *Server) Stop() {
	if err := s.Shutdown(context.Background()); err != nil {
		logger.Warn("HTTP server shutdown err:%v\n", err)
	}
}
