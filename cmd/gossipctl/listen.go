package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/db"
	"github.com/996BC/996.Gossip/metrics"
	"github.com/996BC/996.Gossip/p2p"
	"github.com/996BC/996.Gossip/params"
	"github.com/996BC/996.Gossip/rpc"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/serialize/gossip"
	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

// peers that receive our own records each round
const pushFanout = 6

var listenFlags = struct {
	config    string
	pprofPort int
}{}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "run a gossip node",
	Long: `
  Runs a node that answers pings, verifies every record it receives and
  archives them under the data path. The node announces its contact info
  to the peers it has verified.
`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	f := listenCmd.Flags()
	f.StringVarP(&listenFlags.config, "config", "c", "", "config file")
	f.IntVar(&listenFlags.pprofPort, "pprof", 0, "pprof port, used by developers")
}

func runListen(cmd *cobra.Command, args []string) error {
	conf, err := parseConfig(listenFlags.config)
	if err != nil {
		return err
	}
	utils.SetLogLevel(conf.LogLevel)
	logger := utils.GetStdoutLog()

	// load the key
	kp, err := restoreKey(conf.Key)
	if err != nil {
		return fmt.Errorf("restore key failed:%v", err)
	}
	seeds, err := parseSeeds(conf.Seeds)
	if err != nil {
		return err
	}

	// db
	archive := len(conf.DataPath) != 0
	if archive {
		if err = db.Init(conf.DataPath); err != nil {
			return fmt.Errorf("init db failed:%v", err)
		}
		defer db.Close()
		logger.Info("database initialize successfully under the data path:%s\n", conf.DataPath)
	}

	// gossip node
	node, err := p2p.NewNode(&p2p.Config{
		NodeIP:   conf.IP,
		NodePort: conf.Port,
		Keypair:  kp,
		Seeds:    seeds,
		Archive:  archive,
		Handler: func(msg gossip.Message, from netip.AddrPort) {
			logger.Debug("handle %s from %v\n", gossip.Describe(msg), from)
		},
	})
	if err != nil {
		return err
	}
	if err = node.Start(); err != nil {
		return err
	}
	defer node.Stop()

	// metrics
	if conf.MetricsPort != 0 {
		srv := metrics.Serve(fmt.Sprintf(":%d", conf.MetricsPort))
		defer srv.Close()
		logger.Info("metrics on :%d/metrics\n", conf.MetricsPort)
	}

	// local http server
	if conf.HTTPPort != 0 {
		httpServer := rpc.NewServer(&rpc.Config{
			Port:    conf.HTTPPort,
			Node:    node,
			Archive: archive,
		})
		httpServer.Start()
		defer httpServer.Stop()
	}

	//pprof
	if listenFlags.pprofPort != 0 {
		go func() {
			pprofAddress := fmt.Sprintf("localhost:%d", listenFlags.pprofPort)
			log.Println(http.ListenAndServe(pprofAddress, nil))
		}()
	}

	instance, err := crds.NewNodeInstance(kp.Pubkey(), utils.Timestamp())
	if err != nil {
		return err
	}
	gossipAddr := netip.AddrPortFrom(netip.MustParseAddr(conf.IP).Unmap(), uint16(conf.Port))
	announceTicker := time.NewTicker(params.PingInterval)
	defer announceTicker.Stop()

	// waiting gracefully shutdown
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-sc:
			logger.Infoln("Quiting......")
			return nil
		case <-announceTicker.C:
			values, err := selfRecords(kp, gossipAddr, conf.ShredVersion, instance)
			if err != nil {
				logger.Warn("sign own records failed:%v\n", err)
				continue
			}
			for _, p := range node.Peers(pushFanout) {
				if err := node.Push(values, p.Addr); err != nil {
					logger.Warn("push to %v failed:%v\n", p, err)
				}
			}
		}
	}
}

// selfRecords signs the contact info and node instance a node announces
func selfRecords(kp *crypto.Keypair, gossipAddr netip.AddrPort, shredVersion uint16,
	instance *crds.NodeInstance) ([]*crds.CrdsValue, error) {
	now := utils.Timestamp()

	contact := crds.NewLegacyContactInfo(kp.Pubkey(), now)
	contact.Gossip = gossipAddr
	contact.ShredVersion = shredVersion

	var result []*crds.CrdsValue
	for _, data := range []crds.CrdsData{contact, instance.WithWallclock(now)} {
		v, err := crds.NewSignedValue(data, kp)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
