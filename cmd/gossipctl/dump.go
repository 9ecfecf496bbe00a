package main

import (
	"fmt"
	"os"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/db"
	"github.com/996BC/996.Gossip/serialize/crds"
	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

var output *os.File

var dumpFlags = struct {
	dbpath string
	origin string
	kind   string
	hash   string
	output string
}{}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "view the records archived by a node",
	Long: `
  Prints archived records by origin, by kind or by hash. Without a
  selector it prints the number of archived records.
`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	f := dumpCmd.Flags()
	f.StringVar(&dumpFlags.dbpath, "dbpath", "", "path of database")
	f.StringVar(&dumpFlags.origin, "origin", "", "view records signed by a base58 node id")
	f.StringVar(&dumpFlags.kind, "kind", "", `view records of a kind, by name or number, like "Vote" or "1"`)
	f.StringVarP(&dumpFlags.hash, "hash", "b", "", "view one record via its base58 hash")
	f.StringVarP(&dumpFlags.output, "output", "o", "", "result output file; if it's null it will print to stdout")
}

func runDump(cmd *cobra.Command, args []string) error {
	var err error

	if len(dumpFlags.dbpath) == 0 {
		return fmt.Errorf("empty db path")
	}
	if err = utils.AccessCheck(dumpFlags.dbpath); err != nil {
		return err
	}
	utils.SetLogLevel(utils.LogWarnLevel)
	if err = db.Init(dumpFlags.dbpath); err != nil {
		return err
	}
	defer db.Close()

	if o := dumpFlags.output; len(o) != 0 {
		output, err = os.OpenFile(o, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open file %s failed:%v", o, err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	switch {
	case len(dumpFlags.origin) != 0:
		err = originView(dumpFlags.origin)
	case len(dumpFlags.kind) != 0:
		err = kindView(dumpFlags.kind)
	case len(dumpFlags.hash) != 0:
		err = hashView(dumpFlags.hash)
	default:
		err = countView()
	}
	if err != nil {
		return err
	}
	fmt.Println("Finish.")
	return nil
}

func countView() error {
	count, err := db.GetCount()
	if err != nil {
		return err
	}
	write("%d records\n", count)
	return nil
}

func originView(id string) error {
	origin, err := crypto.PubkeyFromString(id)
	if err != nil {
		return fmt.Errorf("decode %s failed", id)
	}

	hashes, _, err := db.GetValuesViaOrigin(origin)
	if err != nil {
		return err
	}
	return outputHashes(hashes)
}

func kindView(s string) error {
	kind, err := crds.ParseDataKind(s)
	if err != nil {
		return err
	}

	hashes, err := db.GetValuesViaKind(kind)
	if err != nil {
		return err
	}
	return outputHashes(hashes)
}

func hashView(s string) error {
	hash, err := crypto.HashFromString(s)
	if err != nil {
		return fmt.Errorf("decode %s failed", s)
	}
	return outputHashes([]crypto.Hash{hash})
}

func outputHashes(hashes []crypto.Hash) error {
	for _, hash := range hashes {
		v, err := db.GetValue(hash)
		if err != nil {
			return fmt.Errorf("get record via %s failed:%v", hash, err)
		}
		formatOutputValue(hash, v)
	}
	write("%d records\n", len(hashes))
	return nil
}

func formatOutputValue(hash crypto.Hash, v *crds.CrdsValue) {
	write("========================================\n")
	write("Hash: %s\n", hash)
	write("Label: %s\n", v.Label())
	write("Wallclock: %s\n", utils.TimeToString(v.Wallclock()))
	write("Signature: %s\n", v.Signature)
	write("Data: %+v\n", v.Data)
}

func write(format string, v ...interface{}) {
	if _, err := output.Write([]byte(fmt.Sprintf(format, v...))); err != nil {
		fmt.Printf("output err:%v\n", err)
		os.Exit(1)
	}
}
