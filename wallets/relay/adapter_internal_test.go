package relay

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/types"
)

func TestMalformedAccountsIgnored(t *testing.T) {
	channel := &types.ChannelInfo{ChannelID: uuid.New(), Topic: "topic"}
	account := types.NewAccount(DefaultID, common.HexToAddress("0x00000000000000000000000000000000000000a1"))

	a := New(Config{Topic: "topic"}, nil)
	a.channel, a.account, a.chainID = channel, account, 1

	var events []types.AdapterEvent
	defer a.Subscribe(func(ev types.AdapterEvent) { events = append(events, ev) })()

	a.onTopicEvent(watchEvent{Channel: channel, Session: &types.SessionEvent{
		Type:     types.AccountsChanged,
		Accounts: []string{"0x00000000000000000000000000000000000000aa", "not an address"},
	}})
	require.Empty(t, events)
	require.Equal(t, account, a.Account())

	next := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	a.onTopicEvent(watchEvent{Channel: channel, Session: &types.SessionEvent{
		Type:     types.AccountsChanged,
		Accounts: []string{next.Hex()},
	}})
	require.Len(t, events, 1)
	require.Equal(t, next, a.Account().Address)
}
