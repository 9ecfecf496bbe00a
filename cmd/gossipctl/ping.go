package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/p2p"
	"github.com/996BC/996.Gossip/params"
	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

var pingFlags = struct {
	count   int
	timeout time.Duration
	keyType int
	keyPath string
	ip      string
}{}

var pingCmd = &cobra.Command{
	Use:   "ping <ip:port>",
	Short: "probe a gossip node for liveness",
	Long: `
  Sends signed pings to a node and waits for the pong bound to each of
  them. A node that does not answer in time is reported dead.
`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	f := pingCmd.Flags()
	f.IntVarP(&pingFlags.count, "count", "n", 3, "number of probes")
	f.DurationVarP(&pingFlags.timeout, "timeout", "t", 0, "wait for each pong, 0 for the default")
	f.IntVar(&pingFlags.keyType, "key-type", 0, "key type, 0 for a throwaway key")
	f.StringVar(&pingFlags.keyPath, "key", "", "key path")
	f.StringVar(&pingFlags.ip, "ip", "0.0.0.0", "local ip to send from")
}

func runPing(cmd *cobra.Command, args []string) error {
	target, err := netip.ParseAddrPort(args[0])
	if err != nil {
		return fmt.Errorf("invalid target %s:%v", args[0], err)
	}
	if pingFlags.count <= 0 {
		return fmt.Errorf("invalid count:%d", pingFlags.count)
	}
	utils.SetLogLevel(utils.LogWarnLevel)

	var kp *crypto.Keypair
	if pingFlags.keyType == 0 {
		kp, err = crypto.NewKeypair()
	} else {
		kp, err = restoreKey(keyConfig{Type: pingFlags.keyType, Path: pingFlags.keyPath})
	}
	if err != nil {
		return err
	}

	// port 0 picks an ephemeral port
	node, err := p2p.NewNode(&p2p.Config{NodeIP: pingFlags.ip, NodePort: 0, Keypair: kp})
	if err != nil {
		return err
	}
	if err = node.Start(); err != nil {
		return err
	}
	defer node.Stop()

	alive := 0
	for i := 0; i < pingFlags.count; i++ {
		ctx, cancel := probeTimeout(pingFlags.timeout)
		rtt, err := node.Probe(ctx, target)
		cancel()

		if err != nil {
			fmt.Printf("probe %d to %v: %v\n", i, target, err)
			continue
		}
		alive++
		fmt.Printf("pong from %v: seq=%d time=%v\n", target, i, rtt)
	}

	fmt.Printf("%d probes, %d answered\n", pingFlags.count, alive)
	if alive == 0 {
		return fmt.Errorf("%v is not alive", target)
	}
	return nil
}

func probeTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = params.ProbeTimeout
	}
	return context.WithTimeout(context.Background(), d)
}
