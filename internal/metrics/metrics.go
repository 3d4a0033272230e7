package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token metrics. Amounts are exported in whole tokens (base units / 10^6)
// since Prometheus samples are float64.
var (
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bunny",
		Subsystem: "token",
		Name:      "transfers_total",
		Help:      "Number of transfer attempts by result",
	}, []string{"result"})

	FeesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bunny",
		Subsystem: "token",
		Name:      "fees_collected_tokens",
		Help:      "Transfer fees added to the disbursement pool, in whole tokens",
	})

	Disbursements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bunny",
		Subsystem: "token",
		Name:      "disbursements_total",
		Help:      "Number of times the disbursement pool was flushed to the marketing wallet",
	})

	Disbursed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bunny",
		Subsystem: "token",
		Name:      "disbursed_tokens",
		Help:      "Amount flushed to the marketing wallet, in whole tokens",
	})

	PrivilegedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bunny",
		Subsystem: "token",
		Name:      "privileged_accounts",
		Help:      "Number of fee exempt accounts",
	})

	EventFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bunny",
		Subsystem: "events",
		Name:      "emit_failures_total",
		Help:      "Transfer events the sink failed to deliver",
	})
)

var unitsPerToken = new(big.Float).SetInt64(1_000_000)

// Tokens converts a base-unit amount to whole tokens for export.
func Tokens(amount uint256.Int) float64 {
	f := new(big.Float).SetInt(amount.ToBig())
	f.Quo(f, unitsPerToken)
	v, _ := f.Float64()
	return v
}
