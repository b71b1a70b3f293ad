package cmds

import (
	"net/url"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/mitchellh/go-homedir"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"

	"github.com/ipfs-force-community/sophon-connector/api"
	"github.com/ipfs-force-community/sophon-connector/utils"
)

func NewConnectorClient(ctx *cli.Context) (*api.ConnectorStruct, jsonrpc.ClientCloser, error) {
	addr, err := DialArgs(ctx.String("listen"))
	if err != nil {
		return nil, nil, err
	}
	repo, err := homedir.Expand(ctx.String("repo"))
	if err != nil {
		return nil, nil, err
	}
	token, err := utils.ReadToken(repo)
	if err != nil {
		return nil, nil, err
	}
	return api.NewConnectorClient(ctx.Context, addr, token)
}

func DialArgs(addr string) (string, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err == nil {
		_, addr, err := manet.DialArgs(ma)
		if err != nil {
			return "", err
		}

		return "ws://" + addr + api.RPCPath, nil
	}

	_, err = url.Parse(addr)
	if err != nil {
		return "", err
	}
	return addr + api.RPCPath, nil
}
