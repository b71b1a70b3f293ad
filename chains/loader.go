package chains

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

type chainFile struct {
	Chain []chainRecord `toml:"chain"`
}

type chainRecord struct {
	ID             uint64           `toml:"id"`
	Name           string           `toml:"name"`
	NativeCurrency currencyRecord   `toml:"native_currency"`
	RPC            []string         `toml:"rpc"`
	Explorer       []explorerRecord `toml:"explorer"`
	Testnet        bool             `toml:"testnet"`
}

type currencyRecord struct {
	Name     string `toml:"name"`
	Symbol   string `toml:"symbol"`
	Decimals uint8  `toml:"decimals"`
}

type explorerRecord struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// ParseChains decodes a TOML document of [[chain]] tables.
func ParseChains(data []byte) ([]*types.Chain, error) {
	var f chainFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal chains")
	}

	out := make([]*types.Chain, 0, len(f.Chain))
	for i, rec := range f.Chain {
		if rec.ID == 0 {
			return nil, errors.Errorf("chain #%d: id is required", i)
		}
		if rec.Name == "" {
			return nil, errors.Errorf("chain %d: name is required", rec.ID)
		}
		c := &types.Chain{
			ID:   rec.ID,
			Name: rec.Name,
			NativeCurrency: types.NativeCurrency{
				Name:     rec.NativeCurrency.Name,
				Symbol:   rec.NativeCurrency.Symbol,
				Decimals: rec.NativeCurrency.Decimals,
			},
			RPC:     rec.RPC,
			Testnet: rec.Testnet,
		}
		if c.NativeCurrency.Decimals == 0 {
			c.NativeCurrency.Decimals = 18
		}
		for _, e := range rec.Explorer {
			c.Explorers = append(c.Explorers, types.Explorer{Name: e.Name, URL: e.URL})
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadRegistry builds a registry from the built-ins plus the chains in path.
// An empty path yields the built-ins only.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read chains file %s", path)
	}
	extra, err := ParseChains(data)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d chains from %s", len(extra), path)
	return NewRegistry(extra...), nil
}
