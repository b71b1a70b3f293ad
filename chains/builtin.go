package chains

import "github.com/ipfs-force-community/sophon-connector/types"

var ether = types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}

func builtinChains() []*types.Chain {
	return []*types.Chain{
		{
			ID:             1,
			Name:           "Ethereum",
			NativeCurrency: ether,
			RPC:            []string{"https://eth.llamarpc.com", "https://cloudflare-eth.com"},
			Explorers:      []types.Explorer{{Name: "Etherscan", URL: "https://etherscan.io"}},
		},
		{
			ID:             11155111,
			Name:           "Sepolia",
			NativeCurrency: types.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
			RPC:            []string{"https://rpc.sepolia.org"},
			Explorers:      []types.Explorer{{Name: "Etherscan", URL: "https://sepolia.etherscan.io"}},
			Testnet:        true,
		},
		{
			ID:             10,
			Name:           "OP Mainnet",
			NativeCurrency: ether,
			RPC:            []string{"https://mainnet.optimism.io"},
			Explorers:      []types.Explorer{{Name: "Optimistic Etherscan", URL: "https://optimistic.etherscan.io"}},
		},
		{
			ID:             137,
			Name:           "Polygon",
			NativeCurrency: types.NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
			RPC:            []string{"https://polygon-rpc.com"},
			Explorers:      []types.Explorer{{Name: "PolygonScan", URL: "https://polygonscan.com"}},
		},
		{
			ID:             80002,
			Name:           "Polygon Amoy",
			NativeCurrency: types.NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
			RPC:            []string{"https://rpc-amoy.polygon.technology"},
			Explorers:      []types.Explorer{{Name: "PolygonScan", URL: "https://amoy.polygonscan.com"}},
			Testnet:        true,
		},
		{
			ID:             8453,
			Name:           "Base",
			NativeCurrency: ether,
			RPC:            []string{"https://mainnet.base.org"},
			Explorers:      []types.Explorer{{Name: "Basescan", URL: "https://basescan.org"}},
		},
		{
			ID:             84532,
			Name:           "Base Sepolia",
			NativeCurrency: ether,
			RPC:            []string{"https://sepolia.base.org"},
			Explorers:      []types.Explorer{{Name: "Basescan", URL: "https://sepolia.basescan.org"}},
			Testnet:        true,
		},
		{
			ID:             42161,
			Name:           "Arbitrum One",
			NativeCurrency: ether,
			RPC:            []string{"https://arb1.arbitrum.io/rpc"},
			Explorers:      []types.Explorer{{Name: "Arbiscan", URL: "https://arbiscan.io"}},
		},
		{
			ID:             56,
			Name:           "BNB Smart Chain",
			NativeCurrency: types.NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			RPC:            []string{"https://bsc-dataseed.bnbchain.org"},
			Explorers:      []types.Explorer{{Name: "BscScan", URL: "https://bscscan.com"}},
		},
		{
			ID:             43114,
			Name:           "Avalanche C-Chain",
			NativeCurrency: types.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
			RPC:            []string{"https://api.avax.network/ext/bc/C/rpc"},
			Explorers:      []types.Explorer{{Name: "SnowTrace", URL: "https://snowtrace.io"}},
		},
	}
}
