package params

import "time"

type CodeVersion uint16

const (
	// NodeVersionV1 starts from v1.0.0
	NodeVersionV1 = CodeVersion(1)
)

var CurrentCodeVersion = NodeVersionV1

////////////////////////////////////////////////////////////////

const (
	// DefaultPort is the gossip port of a validator
	DefaultPort = 8001

	// PingInterval is how often a known peer is challenged again
	PingInterval = 10 * time.Second

	// PeerExpiredTime drops a peer that has not answered for this long
	PeerExpiredTime = 35 * time.Second

	// PingCacheTTL bounds both outstanding pings and verified round trips
	PingCacheTTL = 1280 * time.Second

	// ProbeTimeout is the default wait for a pong
	ProbeTimeout = 3 * time.Second
)
