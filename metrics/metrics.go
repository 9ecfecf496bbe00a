package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gossip"

// drop reasons
const (
	DropOversize   = "oversize"
	DropDecode     = "decode"
	DropSanitize   = "sanitize"
	DropSignature  = "signature"
	DropUnmatched  = "unmatched_pong"
	DropUnverified = "unverified_sender"
)

var (
	Registry = prometheus.NewRegistry()

	PacketsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Datagrams read from the gossip socket.",
		},
	)

	PacketsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Datagrams discarded before reaching a handler.",
		},
		[]string{"reason"},
	)

	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Decoded and verified messages by kind.",
		},
		[]string{"kind"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages written to the gossip socket by kind.",
		},
		[]string{"kind"},
	)

	RecordsVerified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_verified_total",
			Help:      "Records whose signature matched their origin, by data kind.",
		},
		[]string{"kind"},
	)

	RecordsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Records dropped for a bad signature.",
		},
	)

	RecordsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_archived_total",
			Help:      "Records newly written to the local archive.",
		},
	)

	PingsAnswered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_answered_total",
			Help:      "Pings answered with a pong.",
		},
	)

	PongsMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pongs_matched_total",
			Help:      "Pongs bound to an outstanding ping.",
		},
	)

	ProbeRTT = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_rtt_seconds",
			Help:      "Round trip time of successful liveness probes.",
			// 1ms .. ~4s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		},
	)

	VerifiedPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verified_peers",
			Help:      "Peers with a live ping/pong round trip in the cache.",
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		PacketsReceived, PacketsDropped,
		MessagesReceived, MessagesSent,
		RecordsVerified, RecordsRejected, RecordsArchived,
		PingsAnswered, PongsMatched, ProbeRTT, VerifiedPeers,
		uptime,
	)
}

// Handler exposes the registry; mount it at /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics endpoint on addr until srv.Close is called
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}
