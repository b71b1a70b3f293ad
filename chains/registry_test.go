package chains

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-connector/types"
)

const extraChains = `
[[chain]]
id = 100
name = "Gnosis"
rpc = ["https://rpc.gnosischain.com"]

[chain.native_currency]
name = "xDAI"
symbol = "XDAI"

[[chain.explorer]]
name = "Gnosisscan"
url = "https://gnosisscan.io"

[[chain]]
id = 137
name = "Polygon PoS"
rpc = ["https://polygon.example"]
`

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	c, err := r.Get(137)
	require.NoError(t, err)
	require.Equal(t, "Polygon", c.Name)
	require.Equal(t, "0x89", c.IDHex())

	_, err = r.Get(999999)
	require.True(t, errors.Is(err, types.ErrUnsupportedChain))
	require.Equal(t, "unknown", r.Lookup(999999).Name)

	list := r.List()
	require.Len(t, list, r.Len())
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].ID, list[i].ID)
	}
	require.Equal(t, uint64(1), r.Default().ID)
	require.Nil(t, (&Registry{}).Default())
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.toml")
	require.NoError(t, os.WriteFile(path, []byte(extraChains), 0o644))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	gnosis, err := r.Get(100)
	require.NoError(t, err)
	require.Equal(t, "XDAI", gnosis.NativeCurrency.Symbol)
	require.EqualValues(t, 18, gnosis.NativeCurrency.Decimals)
	require.Equal(t, []types.Explorer{{Name: "Gnosisscan", URL: "https://gnosisscan.io"}}, gnosis.Explorers)

	polygon, err := r.Get(137)
	require.NoError(t, err)
	require.Equal(t, "Polygon PoS", polygon.Name)

	r, err = LoadRegistry("")
	require.NoError(t, err)
	require.Equal(t, NewRegistry().Len(), r.Len())
}

func TestParseChainsInvalid(t *testing.T) {
	_, err := ParseChains([]byte("[[chain]]\nname = \"x\"\n"))
	require.EqualError(t, err, "chain #0: id is required")

	_, err = ParseChains([]byte("[[chain]]\nid = 5\n"))
	require.EqualError(t, err, "chain 5: name is required")
}
