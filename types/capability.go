package types

import "strings"

// Capabilities is the fixed set of operations a wallet variant supports. It is
// decided when the adapter is built and never probed at call time.
type Capabilities uint8

const (
	CapGetAccounts Capabilities = 1 << iota
	CapSignMessage
	CapSendTransaction
	CapSwitchChain
)

var capNames = []struct {
	c    Capabilities
	name string
}{
	{CapGetAccounts, "get_accounts"},
	{CapSignMessage, "sign_message"},
	{CapSendTransaction, "send_transaction"},
	{CapSwitchChain, "switch_chain"},
}

func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

func (c Capabilities) Names() []string {
	var names []string
	for _, n := range capNames {
		if c.Has(n.c) {
			names = append(names, n.name)
		}
	}
	return names
}

func (c Capabilities) String() string {
	return strings.Join(c.Names(), ",")
}
