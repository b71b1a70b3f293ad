package types

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type NativeCurrency struct {
	Name     string
	Symbol   string
	Decimals uint8
}

type Explorer struct {
	Name string
	URL  string
}

// Chain is an immutable description of an EVM network. Values are looked up
// from the chain registry and shared by reference, never mutated.
type Chain struct {
	ID             uint64
	Name           string
	NativeCurrency NativeCurrency
	RPC            []string
	Explorers      []Explorer
	Testnet        bool
}

// UnknownChain is the placeholder record for a chain id a backend reported
// but the registry does not know.
func UnknownChain(id uint64) *Chain {
	return &Chain{ID: id, Name: "unknown"}
}

// IDHex returns the 0x-prefixed hex form used by EIP-1193 providers.
func (c *Chain) IDHex() string {
	return ChainIDHex(c.ID)
}

func ChainIDHex(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}

// ParseChainID accepts both the decimal and the 0x-prefixed hex form.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errors.New("empty chain id")
	}
	if strings.HasPrefix(s, "0x") {
		id, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse chain id %s", s)
		}
		return id, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse chain id %s", s)
	}
	return id, nil
}
