package main

import (
	"fmt"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/utils"
	"github.com/spf13/cobra"
)

var keygenFlags = struct {
	mode   int
	source string
	output string
}{}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate and convert node keys",
	Long: `
  Working mode:
  1: Generate a sKey
  2: Generate a pKey
  3: Generate a pKey from a sKey
  4: Generate a sKey from a pKey
  5: Generate a new sKey from a sKey
  All require an output path, 3,4,5 require a source input path.
`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	f := keygenCmd.Flags()
	f.IntVarP(&keygenFlags.mode, "mode", "m", 0, "working mode")
	f.StringVarP(&keygenFlags.source, "source", "s", "", "source input path")
	f.StringVarP(&keygenFlags.output, "output", "o", "", "output path")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	m, s, o := keygenFlags.mode, keygenFlags.source, keygenFlags.output

	if m <= 0 || m > 5 {
		return fmt.Errorf("invalid mode:%d", m)
	}

	if len(o) == 0 {
		return fmt.Errorf("output path should not be empty")
	}
	if err := utils.AccessCheck(o); err != nil {
		return err
	}

	if m >= 3 {
		if len(s) == 0 {
			return fmt.Errorf("source input path should not be empty")
		}
		if err := utils.AccessCheck(s); err != nil {
			return err
		}
	}

	var kp *crypto.Keypair
	var err error
	switch m {
	case 1:
		kp, err = crypto.NewSKey(o)
	case 2:
		kp, err = crypto.NewPKey(o)
	case 3:
		err = crypto.OpenSKey(s, o)
	case 4:
		err = crypto.SealPKey(s, o)
	case 5:
		err = crypto.ReNewSKey(s, o)
	}
	if err != nil {
		return err
	}

	if kp != nil {
		fmt.Printf("node id %s\n", kp.Pubkey())
	}
	fmt.Printf("Finish, checkout .*Key file in the %s\n", o)
	return nil
}
