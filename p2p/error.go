package p2p

import "github.com/cockroachdb/errors"

// ErrNoPong is returned by Probe when no bound pong arrived in time
var ErrNoPong = errors.New("no pong before deadline")

var ErrNodeStopped = errors.New("node is not running")
