package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks the lifecycle counters and fleet-level gauges for the
// vesting vault engine.
type VaultMetrics struct {
	vaultsCreated  *prometheus.CounterVec
	claims         prometheus.Counter
	claimedAmount  prometheus.Counter
	revocations    prometheus.Counter
	revokedAmount  prometheus.Counter
	freezes        prometheus.Counter
	unfreezes      prometheus.Counter
	adminBalance   prometheus.Gauge
	initialSupply  prometheus.Gauge
	invariantFails prometheus.Counter
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily-initialized, process-wide vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			vaultsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "vaults_created_total",
				Help:      "Count of vaults created, segmented by curve.",
			}, []string{"curve"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "claims_total",
				Help:      "Count of successful claim_tokens/claim_as_delegate calls.",
			}),
			claimedAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "claimed_amount_total",
				Help:      "Cumulative amount released across all claims (float-lossy; audit ledger is authoritative).",
			}),
			revocations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "revocations_total",
				Help:      "Count of successful revoke_tokens calls.",
			}),
			revokedAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "revoked_amount_total",
				Help:      "Cumulative amount reclaimed across all revocations.",
			}),
			freezes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "freezes_total",
				Help:      "Count of successful freeze_vault calls.",
			}),
			unfreezes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "unfreezes_total",
				Help:      "Count of successful unfreeze_vault calls.",
			}),
			adminBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "admin_balance",
				Help:      "Current admin_balance singleton value.",
			}),
			initialSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "initial_supply",
				Help:      "The initial_supply singleton recorded at initialize.",
			}),
			invariantFails: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "vault",
				Name:      "invariant_check_failures_total",
				Help:      "Count of check_invariant observations that returned false.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.vaultsCreated,
			vaultRegistry.claims,
			vaultRegistry.claimedAmount,
			vaultRegistry.revocations,
			vaultRegistry.revokedAmount,
			vaultRegistry.freezes,
			vaultRegistry.unfreezes,
			vaultRegistry.adminBalance,
			vaultRegistry.initialSupply,
			vaultRegistry.invariantFails,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) ObserveVaultCreated(curve string) {
	if m == nil {
		return
	}
	if curve == "" {
		curve = "unknown"
	}
	m.vaultsCreated.WithLabelValues(curve).Inc()
}

func (m *VaultMetrics) ObserveClaim(amount float64) {
	if m == nil {
		return
	}
	m.claims.Inc()
	m.claimedAmount.Add(amount)
}

func (m *VaultMetrics) ObserveRevoke(amount float64) {
	if m == nil {
		return
	}
	m.revocations.Inc()
	m.revokedAmount.Add(amount)
}

func (m *VaultMetrics) ObserveFreeze() {
	if m == nil {
		return
	}
	m.freezes.Inc()
}

func (m *VaultMetrics) ObserveUnfreeze() {
	if m == nil {
		return
	}
	m.unfreezes.Inc()
}

func (m *VaultMetrics) SetAdminBalance(v float64) {
	if m == nil {
		return
	}
	m.adminBalance.Set(v)
}

func (m *VaultMetrics) SetInitialSupply(v float64) {
	if m == nil {
		return
	}
	m.initialSupply.Set(v)
}

func (m *VaultMetrics) ObserveInvariantFailure() {
	if m == nil {
		return
	}
	m.invariantFails.Inc()
}
