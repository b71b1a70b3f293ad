package cmds

import (
	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-connector/api"
)

var RelayCmds = &cli.Command{
	Name:        "relay",
	Usage:       "relay session cmds",
	Subcommands: []*cli.Command{listSessionCmds},
}

var listSessionCmds = &cli.Command{
	Name:  "sessions",
	Usage: "list live wallet app sessions",
	Action: func(cctx *cli.Context) error {
		full, closer, err := NewConnectorClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		sessions, err := full.ListRelaySessions(cctx.Context)
		if err != nil {
			return api.DecodeError(err)
		}
		return printJSON(sessions)
	},
}
