package cmds

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-connector/api"
	"github.com/ipfs-force-community/sophon-connector/types"
)

var ChainCmds = &cli.Command{
	Name:        "chain",
	Usage:       "chain cmds",
	Subcommands: []*cli.Command{listChainCmds, switchChainCmds},
}

var listChainCmds = &cli.Command{
	Name:  "list",
	Usage: "list known chains",
	Action: func(cctx *cli.Context) error {
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		list, err := full.ListChains(cctx.Context)
		if err != nil {
			return api.DecodeError(err)
		}
		for _, c := range list {
			testnet := ""
			if c.Testnet {
				testnet = "testnet"
			}
			fmt.Printf("%-10d %-24s %-6s %s\n", c.ID, c.Name, c.NativeCurrency.Symbol, testnet)
		}
		return nil
	},
}

var switchChainCmds = &cli.Command{
	Name:      "switch",
	Usage:     "switch the active wallet to another chain",
	ArgsUsage: "<chain-id>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expect chain id")
		}
		chainID, err := types.ParseChainID(cctx.Args().First())
		if err != nil {
			return err
		}
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.DecodeError(full.SwitchChain(cctx.Context, chainID))
	},
}
