package peer

import (
	"time"

	"github.com/996BC/996.Gossip/params"
)

// seeds have no verified key yet, so they are retried faster than peers
const pingSeedInterval = 2 * time.Second

var (
	initTimepoint = time.Unix(0, 0)
)

// peer state
type pstate struct {
	*Peer
	isSeed         bool //seeds stay pinged until one answers
	hasPingBefore  bool
	lastActiveTime time.Time
	lastPingTime   time.Time
	addedTime      time.Time
}

func newPState(p *Peer, isSeed bool, now time.Time) *pstate {
	return &pstate{
		Peer:           NewPeer(p.Addr, p.Pubkey),
		isSeed:         isSeed,
		lastActiveTime: initTimepoint,
		lastPingTime:   initTimepoint,
		addedTime:      now,
	}
}

func (p *pstate) isTimeToPing(now time.Time) bool {
	return now.Sub(p.lastActiveTime) >= params.PingInterval &&
		now.Sub(p.lastPingTime) >= params.PingInterval
}

func (p *pstate) isAvaible(now time.Time) bool {
	return now.Sub(p.lastActiveTime) < params.PeerExpiredTime
}

func (p *pstate) isToRemove(now time.Time) bool {
	if p.isSeed || !p.hasPingBefore {
		return false
	}
	since := p.lastActiveTime
	if p.addedTime.After(since) {
		since = p.addedTime
	}
	return now.Sub(since) >= params.PeerExpiredTime
}

func (p *pstate) doPing(now time.Time) {
	p.hasPingBefore = true
	p.lastPingTime = now
}

func (p *pstate) updateActiveTime(now time.Time) {
	p.lastActiveTime = now
}
