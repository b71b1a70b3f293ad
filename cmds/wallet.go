package cmds

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-connector/api"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/wallets"
)

var WalletCmds = &cli.Command{
	Name:        "wallet",
	Usage:       "wallet cmds",
	Subcommands: []*cli.Command{listWalletCmds, walletStateCmds, connectWalletCmds, disconnectWalletCmds, useWalletCmds, balanceCmds, signCmds},
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, " ", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var listWalletCmds = &cli.Command{
	Name:  "list",
	Usage: "list registered wallets",
	Flags: []cli.Flag{},
	Action: func(cctx *cli.Context) error {
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		list, err := full.ListWallets(cctx.Context)
		if err != nil {
			return api.DecodeError(err)
		}
		for _, w := range list {
			mark := " "
			if w.Active {
				mark = "*"
			}
			account := "-"
			if w.Account != nil {
				account = w.Account.Address.Hex()
			}
			fmt.Printf("%s %-10s %-13s %s [%s]\n", mark, w.ID, w.Status, account, strings.Join(w.Capabilities, ","))
		}
		return nil
	},
}

var walletStateCmds = &cli.Command{
	Name:      "state",
	Usage:     "show the state of one wallet, or of the active one",
	Flags:     []cli.Flag{},
	ArgsUsage: "[wallet-id]",
	Action: func(cctx *cli.Context) error {
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		if cctx.Args().Len() == 0 {
			state, err := full.ActiveState(cctx.Context)
			if err != nil {
				return api.DecodeError(err)
			}
			return printJSON(state)
		}

		info, err := full.WalletState(cctx.Context, types.WalletID(cctx.Args().First()))
		if err != nil {
			return api.DecodeError(err)
		}
		return printJSON(info)
	},
}

var connectWalletCmds = &cli.Command{
	Name:      "connect",
	Usage:     "connect a wallet and make it active",
	ArgsUsage: "<wallet-id>",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "chain", Usage: "chain to end up on"},
		&cli.BoolFlag{Name: "silent", Usage: "do not prompt the user"},
		&cli.StringFlag{Name: "strategy", Usage: "login strategy of embedded wallets", Value: "email"},
		&cli.StringFlag{Name: "identifier", Usage: "login identifier of embedded wallets"},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expect wallet id")
		}
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		account, err := full.Connect(cctx.Context, types.WalletID(cctx.Args().First()), wallets.ConnectOptions{
			Silent:     cctx.Bool("silent"),
			ChainID:    cctx.Uint64("chain"),
			Strategy:   cctx.String("strategy"),
			Identifier: cctx.String("identifier"),
		})
		if err != nil {
			return api.DecodeError(err)
		}
		fmt.Println(account.Address.Hex())
		return nil
	},
}

var disconnectWalletCmds = &cli.Command{
	Name:      "disconnect",
	ArgsUsage: "<wallet-id>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expect wallet id")
		}
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.DecodeError(full.Disconnect(cctx.Context, types.WalletID(cctx.Args().First())))
	},
}

var useWalletCmds = &cli.Command{
	Name:      "use",
	Usage:     "make a connected wallet the active one",
	ArgsUsage: "<wallet-id>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expect wallet id")
		}
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return api.DecodeError(full.SetActiveWallet(cctx.Context, types.WalletID(cctx.Args().First())))
	},
}

var balanceCmds = &cli.Command{
	Name:  "balance",
	Usage: "show the native balance of the active account",
	Action: func(cctx *cli.Context) error {
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		bal, err := full.ActiveBalance(cctx.Context)
		if err != nil {
			return api.DecodeError(err)
		}
		fmt.Printf("%s %s %s (chain %d)\n", bal.Account.Address.Hex(), bal.Value, bal.Symbol, bal.ChainID)
		return nil
	},
}

var signCmds = &cli.Command{
	Name:      "sign",
	Usage:     "sign a message with the active wallet",
	ArgsUsage: "<message>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "hex", Usage: "message is 0x hex encoded"},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expect message")
		}
		msg := []byte(cctx.Args().First())
		if cctx.Bool("hex") {
			var err error
			if msg, err = hexutil.Decode(cctx.Args().First()); err != nil {
				return err
			}
		}
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		res, err := full.SignMessage(cctx.Context, msg)
		if err != nil {
			return api.DecodeError(err)
		}
		fmt.Printf("%s %s\n", res.Account.Address.Hex(), hexutil.Encode(res.Signature))
		return nil
	},
}
