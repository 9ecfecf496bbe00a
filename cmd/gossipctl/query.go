package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/996BC/996.Gossip/rpc"
	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

var queryFlags = struct {
	ip     string
	port   int
	peers  bool
	count  bool
	probe  string
	hash   string
	origin string
	kind   string
	push   string
}{}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "talk to the local http interface of a running node",
	Long: `
  Queries the peers and the archived records of a node started with
  "listen", asks it to probe an address or to push signed records.
`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.ip, "ip", rpc.LocalHost, "node http ip")
	f.IntVar(&queryFlags.port, "port", rpc.DefaultHTTPPort, "node http port")
	f.BoolVar(&queryFlags.peers, "peers", false, "list the verified peers")
	f.BoolVar(&queryFlags.count, "count", false, "number of archived records")
	f.StringVar(&queryFlags.probe, "probe", "", "let the node probe ip:port")
	f.StringVar(&queryFlags.hash, "hash", "", "query a record via its base58 hash")
	f.StringVar(&queryFlags.origin, "origin", "", "query records via a base58 node id")
	f.StringVar(&queryFlags.kind, "kind", "", "query records via a kind")
	f.StringVar(&queryFlags.push, "push", "", "push the hex records of a file, one per line")
}

func runQuery(cmd *cobra.Command, args []string) error {
	client := newHTTPClient(queryFlags.ip, queryFlags.port, "http")

	switch {
	case queryFlags.peers:
		return client.queryPeers()
	case queryFlags.count:
		return client.queryCount()
	case len(queryFlags.probe) != 0:
		return client.probe(queryFlags.probe)
	case len(queryFlags.hash) != 0:
		return client.queryRecords(rpc.QueryRecordViaHashV1Path, rpc.GetHashParam, queryFlags.hash)
	case len(queryFlags.origin) != 0:
		return client.queryRecords(rpc.QueryRecordViaOriginV1Path, rpc.GetIDParam, queryFlags.origin)
	case len(queryFlags.kind) != 0:
		return client.queryRecords(rpc.QueryRecordViaKindV1Path, rpc.GetKindParam, queryFlags.kind)
	case len(queryFlags.push) != 0:
		values, err := readHexLines(queryFlags.push)
		if err != nil {
			return err
		}
		return client.pushRecords(values)
	}
	return fmt.Errorf("unknown operation")
}

func readHexLines(file string) ([]string, error) {
	if err := utils.AccessCheck(file); err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var result []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := utils.FromHex(line); err != nil {
			return nil, fmt.Errorf("invalid hex record %q", line)
		}
		result = append(result, line)
	}
	return result, scanner.Err()
}
