package p2p

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/db"
	"github.com/996BC/996.Gossip/metrics"
	"github.com/996BC/996.Gossip/p2p/peer"
	"github.com/996BC/996.Gossip/params"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/serialize/gossip"
	"github.com/996BC/996.Gossip/serialize/ping"
	"github.com/996BC/996.Gossip/utils"
	"github.com/cockroachdb/errors"
)

var logger = utils.NewLogger("p2p")

const pingTaskInterval = 2 * time.Second

// Handler receives verified gossip traffic other than ping and pong
type Handler func(msg gossip.Message, from netip.AddrPort)

// Config is configs for the gossip Node
type Config struct {
	NodeIP   string
	NodePort int
	Keypair  *crypto.Keypair
	Seeds    []netip.AddrPort

	// PingTTL defaults to params.PingCacheTTL
	PingTTL time.Duration

	// Archive stores every verified record, db.Init must have been called
	Archive bool
	Handler Handler
}

// Node is a gossip endpoint: it answers pings, keeps its peers verified
// and checks every record it receives before passing it on.
type Node struct {
	udp     utils.UDPServer
	keypair *crypto.Keypair
	cache   *PingCache
	table   peer.Table
	archive bool
	handler Handler

	probesMutex sync.Mutex
	probes      map[crypto.Hash]chan time.Duration

	lm *utils.LoopMode
}

// NewNode returns a gossip Node, it listens once started
func NewNode(c *Config) (*Node, error) {
	if c.Keypair == nil {
		return nil, errors.New("node without keypair")
	}
	ip := net.ParseIP(c.NodeIP)
	if ip == nil {
		return nil, errors.Newf("parse ip for udp server failed:%s", c.NodeIP)
	}

	n := newNode(c, utils.NewUDPServer(ip, c.NodePort, gossip.MaxPacketSize))
	n.table.AddSeeds(c.Seeds, time.Now())
	return n, nil
}

func newNode(c *Config, udp utils.UDPServer) *Node {
	ttl := c.PingTTL
	if ttl == 0 {
		ttl = params.PingCacheTTL
	}
	return &Node{
		udp:     udp,
		keypair: c.Keypair,
		cache:   NewPingCache(c.Keypair, ttl),
		table:   peer.NewTable(c.Keypair.Pubkey()),
		archive: c.Archive,
		handler: c.Handler,
		probes:  make(map[crypto.Hash]chan time.Duration),
		lm:      utils.NewLoop(1),
	}
}

func (n *Node) Start() error {
	if err := n.udp.Start(); err != nil {
		return errors.Wrap(err, "start udp server")
	}

	go n.loop()
	n.lm.StartWorking()
	logger.Info("node %s listening on %v\n", n.Pubkey(), n.LocalAddr())
	return nil
}

func (n *Node) Stop() {
	if n.lm.Stop() {
		n.udp.Stop()
	}
}

func (n *Node) Pubkey() crypto.Pubkey {
	return n.keypair.Pubkey()
}

// LocalAddr is the bound address, invalid before Start
func (n *Node) LocalAddr() netip.AddrPort {
	addr := n.udp.LocalAddr()
	if addr == nil {
		return netip.AddrPort{}
	}
	return peer.Normalize(addr.AddrPort())
}

// Peers returns up to expect peers that answered recently
func (n *Node) Peers(expect int) []*peer.Peer {
	return n.table.GetPeers(expect, nil, time.Now())
}

// IsVerified reports whether pubkey completed a round trip from addr
func (n *Node) IsVerified(pubkey crypto.Pubkey, addr netip.AddrPort) bool {
	return n.cache.Check(pubkey, addr, time.Now())
}

// Send encodes msg into one datagram for addr
func (n *Node) Send(msg gossip.Message, addr netip.AddrPort) error {
	data, err := gossip.Marshal(msg)
	if err != nil {
		return err
	}
	n.udp.Send(&utils.UDPPacket{
		Data: data,
		Addr: net.UDPAddrFromAddrPort(addr),
	})
	metrics.MessagesSent.WithLabelValues(msg.Type().String()).Inc()
	return nil
}

// Push sends values to addr in as many push messages as they need
func (n *Node) Push(values []*crds.CrdsValue, addr netip.AddrPort) error {
	for _, batch := range gossip.SplitValues(values, gossip.MaxValuesSize) {
		msg := &gossip.PushMessage{From: n.Pubkey(), Values: batch}
		if err := n.Send(msg, addr); err != nil {
			return err
		}
	}
	return nil
}

// Pull asks addr for everything missing from set, one request per shard
func (n *Node) Pull(set *crds.FilterSet, self *crds.CrdsValue, addr netip.AddrPort) error {
	for _, filter := range set.Filters() {
		msg := &gossip.PullRequest{Filter: filter, Value: self}
		if err := n.Send(msg, addr); err != nil {
			return err
		}
	}
	return nil
}

// Probe pings addr and waits for the pong bound to that ping.
// It returns the round trip time, or ErrNoPong once ctx is done.
func (n *Node) Probe(ctx context.Context, addr netip.AddrPort) (time.Duration, error) {
	if !n.lm.IsWorking() {
		return 0, ErrNodeStopped
	}
	addr = peer.Normalize(addr)

	p, err := n.cache.NewPing(addr, time.Now())
	if err != nil {
		return 0, err
	}
	hash := ping.HashToken(p.Token)
	ch := make(chan time.Duration, 1)

	n.probesMutex.Lock()
	n.probes[hash] = ch
	n.probesMutex.Unlock()
	defer func() {
		n.probesMutex.Lock()
		delete(n.probes, hash)
		n.probesMutex.Unlock()
	}()

	if err := n.Send(&gossip.PingMessage{Ping: p}, addr); err != nil {
		n.cache.forget(hash)
		return 0, err
	}

	select {
	case rtt := <-ch:
		metrics.ProbeRTT.Observe(rtt.Seconds())
		return rtt, nil
	case <-ctx.Done():
		n.cache.forget(hash)
		return 0, errors.WithSecondaryError(errors.Wrapf(ErrNoPong, "probe %v", addr), ctx.Err())
	}
}

func (n *Node) loop() {
	n.lm.Add()
	defer n.lm.Done()

	pingTicker := time.NewTicker(pingTaskInterval)
	refreshTicker := time.NewTicker(params.PeerExpiredTime * 2)
	defer pingTicker.Stop()
	defer refreshTicker.Stop()
	recvQ := n.udp.GetRecvChannel()

	for {
		select {
		case <-n.lm.D:
			return
		case <-pingTicker.C:
			n.pingPeers(time.Now())
		case pkt := <-recvQ:
			n.handleRecv(pkt)
		case <-refreshTicker.C:
			n.refresh(time.Now())
		}
	}
}

func (n *Node) handleRecv(pkt *utils.UDPPacket) {
	metrics.PacketsReceived.Inc()

	if len(pkt.Data) > gossip.MaxPacketSize {
		metrics.PacketsDropped.WithLabelValues(metrics.DropOversize).Inc()
		return
	}
	if pkt.Addr == nil {
		metrics.PacketsDropped.WithLabelValues(metrics.DropDecode).Inc()
		return
	}
	addr := peer.Normalize(pkt.Addr.AddrPort())

	msg, err := gossip.Unmarshal(pkt.Data)
	if err != nil {
		logger.Debug("receive error data from %v:%v\n", addr, err)
		metrics.PacketsDropped.WithLabelValues(metrics.DropDecode).Inc()
		return
	}

	// records of push and pull responses are checked one by one
	var reason string
	switch m := msg.(type) {
	case *gossip.PushMessage:
		m.Values, reason = n.admit(m.Values)
	case *gossip.PullResponse:
		m.Values, reason = n.admit(m.Values)
	default:
		if err := msg.Sanitize(); err != nil {
			logger.Debug("insane %s from %v:%v\n", msg.Type(), addr, err)
			reason = metrics.DropSanitize
		} else if !msg.Verify() {
			logger.Debug("bad signature on %s from %v\n", msg.Type(), addr)
			reason = metrics.DropSignature
		}
	}
	if reason != "" {
		metrics.PacketsDropped.WithLabelValues(reason).Inc()
		return
	}

	if origin, ok := sender(msg); ok && !n.cache.Check(origin, addr, time.Now()) {
		logger.Debug("%s from unverified %s at %v\n", msg.Type(), origin, addr)
		metrics.PacketsDropped.WithLabelValues(metrics.DropUnverified).Inc()
		n.challenge(addr)
		return
	}

	metrics.MessagesReceived.WithLabelValues(msg.Type().String()).Inc()
	logger.Debug("recv %s via %v\n", gossip.Describe(msg), addr)

	switch m := msg.(type) {
	case *gossip.PingMessage:
		n.handlePing(m.Ping, addr)
	case *gossip.PongMessage:
		n.handlePong(m.Pong, addr, time.Now())
	case *gossip.PullRequest:
		n.record([]*crds.CrdsValue{m.Value})
		n.dispatch(msg, addr)
	case *gossip.PullResponse:
		n.record(m.Values)
		n.dispatch(msg, addr)
	case *gossip.PushMessage:
		n.record(m.Values)
		n.dispatch(msg, addr)
	default:
		n.dispatch(msg, addr)
	}
}

// admit keeps the sane values signed by their origin. The drop reason is
// empty unless every value was rejected.
func (n *Node) admit(values []*crds.CrdsValue) ([]*crds.CrdsValue, string) {
	sane := gossip.SaneValues(values)
	verified := gossip.VerifiedValues(sane)
	if rejected := len(values) - len(verified); rejected > 0 {
		metrics.RecordsRejected.Add(float64(rejected))
	}

	switch {
	case len(verified) != 0 || len(values) == 0:
		return verified, ""
	case len(sane) == 0:
		return nil, metrics.DropSanitize
	default:
		return nil, metrics.DropSignature
	}
}

// sender is the node a record carrying message came from
func sender(msg gossip.Message) (crypto.Pubkey, bool) {
	switch m := msg.(type) {
	case *gossip.PushMessage:
		return m.From, true
	case *gossip.PullResponse:
		return m.From, true
	case *gossip.PullRequest:
		return m.Value.Pubkey(), true
	}
	return crypto.Pubkey{}, false
}

// challenge pings an address traffic came from before it was verified
func (n *Node) challenge(addr netip.AddrPort) {
	p, err := n.cache.Challenge(addr, time.Now())
	if err != nil {
		logger.Warn("generate ping failed:%v\n", err)
		return
	}
	if p == nil {
		return
	}
	if err := n.Send(&gossip.PingMessage{Ping: p}, addr); err != nil {
		logger.Warn("ping %v failed:%v\n", addr, err)
	}
}

func (n *Node) record(values []*crds.CrdsValue) {
	for _, v := range values {
		metrics.RecordsVerified.WithLabelValues(v.Data.Kind().String()).Inc()
		if !n.archive {
			continue
		}

		fresh, err := db.PutValue(v)
		if err != nil {
			logger.Warn("archive %v failed:%v\n", v.Label(), err)
			continue
		}
		if fresh {
			metrics.RecordsArchived.Inc()
		}
	}
}

func (n *Node) dispatch(msg gossip.Message, addr netip.AddrPort) {
	if n.handler != nil {
		n.handler(msg, addr)
	}
}

func (n *Node) handlePing(p *ping.Ping, addr netip.AddrPort) {
	pong := ping.NewPong(p, n.keypair)
	if err := n.Send(&gossip.PongMessage{Pong: pong}, addr); err != nil {
		logger.Warn("answer ping from %v failed:%v\n", addr, err)
		return
	}
	metrics.PingsAnswered.Inc()

	// challenge back so the sender ends up verified on our side too
	n.table.AddPeer(peer.NewPeer(addr, p.From), time.Now())
}

func (n *Node) handlePong(p *ping.Pong, addr netip.AddrPort, now time.Time) {
	rtt, ok := n.cache.addPong(p, addr, now)
	if !ok {
		logger.Debug("unmatched pong from %v\n", addr)
		metrics.PacketsDropped.WithLabelValues(metrics.DropUnmatched).Inc()
		return
	}
	metrics.PongsMatched.Inc()
	n.table.RecvPong(peer.NewPeer(addr, p.From), now)

	n.probesMutex.Lock()
	ch, ok := n.probes[p.Hash]
	n.probesMutex.Unlock()
	if ok {
		select {
		case ch <- rtt:
		default:
		}
	}
}

func (n *Node) pingPeers(now time.Time) {
	for _, target := range n.table.PeersToPing(now) {
		p, err := n.cache.NewPing(target.Addr, now)
		if err != nil {
			logger.Warn("generate ping failed:%v\n", err)
			continue
		}
		if err := n.Send(&gossip.PingMessage{Ping: p}, target.Addr); err != nil {
			logger.Warn("ping %v failed:%v\n", target, err)
		}
	}
}

func (n *Node) refresh(now time.Time) {
	n.cache.Prune(now)
	n.table.Refresh(now)
}
