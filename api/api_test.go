package api

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-jsonrpc/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/chains"
	"github.com/ipfs-force-community/sophon-connector/connmgr"
	"github.com/ipfs-force-community/sophon-connector/testhelper"
	"github.com/ipfs-force-community/sophon-connector/types"
	"github.com/ipfs-force-community/sophon-connector/utils"
	"github.com/ipfs-force-community/sophon-connector/wallets"
	"github.com/ipfs-force-community/sophon-connector/wallets/injected"
)

func setupAPI(t *testing.T) (*ConnectorStruct, *testhelper.MemProvider) {
	registry := chains.NewRegistry()
	mgr := connmgr.New(connmgr.Options{Registry: registry})
	p := testhelper.NewMemProvider()
	require.NoError(t, mgr.Register(injected.New(injected.DefaultConfig(), p, registry)))

	var full ConnectorStruct
	ProxyConnector(NewConnectorAPIImpl(mgr, nil), &full)
	return &full, p
}

func TestPermissionProxy(t *testing.T) {
	full, _ := setupAPI(t)
	readCtx := auth.WithPerm(context.Background(), utils.ExpandPerm(utils.PermRead))
	adminCtx := auth.WithPerm(context.Background(), utils.ExpandPerm(utils.PermAdmin))

	list, err := full.ListWallets(readCtx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, injected.DefaultID, list[0].ID)
	require.Equal(t, types.StatusDisconnected, list[0].Status)

	_, err = full.Connect(readCtx, injected.DefaultID, wallets.ConnectOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "need 'admin'")

	// no permission in ctx falls back to read
	_, err = full.ListChains(context.Background())
	require.NoError(t, err)
	_, err = full.SignMessage(context.Background(), []byte("hi"))
	require.Contains(t, err.Error(), "need 'sign'")

	account, err := full.Connect(adminCtx, injected.DefaultID, wallets.ConnectOptions{})
	require.NoError(t, err)

	state, err := full.ActiveState(readCtx)
	require.NoError(t, err)
	require.Equal(t, injected.DefaultID, state.WalletID)
	require.Equal(t, account, state.Account)

	info, err := full.WalletState(readCtx, injected.DefaultID)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, types.StatusConnected, info.Status)
	require.Equal(t, injected.Capabilities.Names(), info.Capabilities)

	res, err := full.SignMessage(adminCtx, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, account, res.Account)
	require.NotEmpty(t, res.Signature)

	require.NoError(t, full.SwitchChain(adminCtx, 137))
	require.NoError(t, full.Disconnect(adminCtx, injected.DefaultID))

	_, err = full.ListRelaySessions(adminCtx)
	require.ErrorIs(t, DecodeError(err), types.ErrUnavailable)
}

func TestErrorCodes(t *testing.T) {
	full, _ := setupAPI(t)
	adminCtx := auth.WithPerm(context.Background(), utils.ExpandPerm(utils.PermAdmin))

	err := full.SetActiveWallet(adminCtx, injected.DefaultID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "[not_connected]")

	// the message survives a trip through a plain string error
	decoded := DecodeError(errors.New(err.Error()))
	require.ErrorIs(t, decoded, types.ErrNotConnected)
	require.Equal(t, types.CodeNotConnected, types.Classify(decoded))

	err = full.SwitchChain(adminCtx, 1)
	require.ErrorIs(t, DecodeError(errors.New(err.Error())), types.ErrNoActiveWallet)

	require.NoError(t, EncodeError(nil))
	require.NoError(t, DecodeError(nil))
	plain := errors.New("boom")
	require.Equal(t, plain, EncodeError(plain))
	require.Equal(t, plain, DecodeError(plain))
}
