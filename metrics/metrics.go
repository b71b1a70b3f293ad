package metrics

import (
	"time"

	rpcMetrics "github.com/filecoin-project/go-jsonrpc/metrics"
	"github.com/ipfs-force-community/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Global Tags
var (
	WalletKey, _  = tag.NewKey("wallet")
	OutcomeKey, _ = tag.NewKey("outcome")
	ChainKey, _   = tag.NewKey("chain")

	TopicKey, _ = tag.NewKey("topic")
	IPKey, _    = tag.NewKey("ip")
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 3000, 4000, 5000, 7500, 10000, 20000, 50000, 100000)

var (
	// connection manager
	ConnectedWallets = metrics.NewInt64("wallet/connected", "Connected wallet count", stats.UnitDimensionless)
	Connect          = stats.Int64("wallet/connect", "Wallet connect attempts", stats.UnitDimensionless)
	Disconnect       = stats.Int64("wallet/disconnect", "Wallet disconnects", stats.UnitDimensionless)
	SwitchChain      = stats.Int64("wallet/switch_chain", "Active wallet chain switches", stats.UnitDimensionless)
	Restore          = stats.Int64("wallet/restore", "Connection restore attempts", stats.UnitDimensionless)

	// relay
	RelaySessionNum   = metrics.NewInt64("relay/session_num", "Live relay session count", stats.UnitDimensionless)
	RelayRegister     = stats.Int64("relay/register", "Relay session register", stats.UnitDimensionless)
	RelayUnregister   = stats.Int64("relay/unregister", "Relay session unregister", stats.UnitDimensionless)
	RelayRequestSpent = stats.Float64("relay/request", "Relay request round trip spent time", stats.UnitMilliseconds)

	// method call
	ConnectSpent = stats.Float64("connect", "Call Connect spent time", stats.UnitMilliseconds)

	ApiState = metrics.NewInt64("api/state", "api service state. 0: down, 1: up", "")
)

var (
	connectView = &view.View{
		Measure:     Connect,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{WalletKey, OutcomeKey},
	}
	disconnectView = &view.View{
		Measure:     Disconnect,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{WalletKey},
	}
	switchChainView = &view.View{
		Measure:     SwitchChain,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{WalletKey, ChainKey, OutcomeKey},
	}
	restoreView = &view.View{
		Measure:     Restore,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{WalletKey, OutcomeKey},
	}

	relayRegisterView = &view.View{
		Measure:     RelayRegister,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{TopicKey, IPKey},
	}
	relayUnregisterView = &view.View{
		Measure:     RelayUnregister,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{TopicKey, IPKey},
	}
	relayRequestView = &view.View{
		Measure:     RelayRequestSpent,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{TopicKey},
	}

	// method call
	connectSpentView = &view.View{
		Measure:     ConnectSpent,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{WalletKey},
	}
)

var views = append([]*view.View{
	connectView,
	disconnectView,
	switchChainView,
	restoreView,
	relayRegisterView,
	relayUnregisterView,
	relayRequestView,
	connectSpentView,
}, rpcMetrics.DefaultViews...)

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

func init() {
	// register metrics
	_ = view.Register(views...)
}
