// Package genesis maintains the tunable simulation parameters every node
// and the reference event driver are configured from (spec §6:
// "Tunable parameters (all must be configurable at startup)").
package genesis

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/validate"
)

// Parameters represents the full set of values a simulation run is
// configured with. Field names mirror the spec's own notation
// (N, M, T, γ1..γ4) where a more descriptive name would only obscure the
// mapping back to §6.
type Parameters struct {
	// SimDuration bounds how long the reference driver (package sim) runs
	// before stopping, in simulated seconds. Zero means unbounded.
	SimDuration time.Duration `json:"sim_duration" validate:"gte=0"`

	// N is the number of participating nodes.
	N int `json:"n" validate:"required,gt=1"`

	// M is the committee size target. It is validated but not read
	// elsewhere: the committee is the set of nodes that actually mined
	// during the epoch, whatever its size.
	M int `json:"m" validate:"required,gt=0"`

	// T is the epoch duration in simulated seconds.
	T time.Duration `json:"t" validate:"required,gt=0"`

	// InitialValuesLambda is the Poisson mean of the number of values a
	// node is seeded with at startup.
	InitialValuesLambda float64 `json:"initial_values_lambda" validate:"gt=0"`

	// TxRate is the mean rate (events/sec) of the gen_tx Poisson process
	// per node.
	TxRate float64 `json:"tx_rate" validate:"gt=0"`

	// Round is the mean inter-arrival time of a node's PoW timer, before
	// scaling by N (spec §4.2: "exponentially distributed with mean
	// round·N").
	Round time.Duration `json:"round" validate:"required,gt=0"`

	// EnableCC turns the CC consensus engine on or off; with it disabled
	// proofs are never pruned and T_timer firings are ignored.
	EnableCC bool `json:"enable_cc"`

	// NetworkDelta is the upper bound (uniform) of non-AC-block network
	// delay (spec §5).
	NetworkDelta time.Duration `json:"network_delta" validate:"gte=0"`

	// Gamma1..Gamma4 are the CC consensus phase timeouts.
	Gamma1 time.Duration `json:"gamma_1" validate:"required,gt=0"`
	Gamma2 time.Duration `json:"gamma_2" validate:"required,gt=0"`
	Gamma3 time.Duration `json:"gamma_3" validate:"required,gt=0"`
	Gamma4 time.Duration `json:"gamma_4" validate:"required,gt=0"`

	// Storage unit sizes, in bytes. They are validated but not read
	// elsewhere; the metrics recorder's storage figures are the
	// wire-encoded lengths of the blocks a node accepts.
	TxUnitSize     int `json:"tx_unit_size" validate:"required,gt=0"`
	BatchUnitSize  int `json:"batch_unit_size" validate:"required,gt=0"`
	ACBlockUnitSize int `json:"ac_block_unit_size" validate:"required,gt=0"`
	CCBlockUnitSize int `json:"cc_block_unit_size" validate:"required,gt=0"`

	// RecordInterval is a metrics snapshot interval in simulated
	// seconds. It is validated but not read elsewhere.
	RecordInterval time.Duration `json:"record_interval" validate:"required,gt=0"`
}

// Default returns a Parameters value sized for a modest demo run (γ's
// of 10s, round of 2s, seven nodes, one-minute epochs).
func Default() Parameters {
	return Parameters{
		SimDuration:         10 * time.Minute,
		N:                   7,
		M:                   4,
		T:                   time.Minute,
		InitialValuesLambda: 3,
		TxRate:              0.5,
		Round:               2 * time.Second,
		EnableCC:            true,
		NetworkDelta:        200 * time.Millisecond,
		Gamma1:              10 * time.Second,
		Gamma2:              10 * time.Second,
		Gamma3:              10 * time.Second,
		Gamma4:              10 * time.Second,
		TxUnitSize:          63,
		BatchUnitSize:       256,
		ACBlockUnitSize:     512,
		CCBlockUnitSize:     1024,
		RecordInterval:      5 * time.Second,
	}
}

// Load reads and validates a Parameters value from a JSON file on disk.
func Load(path string) (Parameters, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, err
	}

	params := Default()
	if err := json.Unmarshal(content, &params); err != nil {
		return Parameters{}, err
	}

	if err := validate.Check(params); err != nil {
		return Parameters{}, err
	}

	return params, nil
}

// Validate checks the parameters satisfy their struct tags.
func (p Parameters) Validate() error {
	return validate.Check(p)
}

// TxInterval is the mean inter-arrival time of a node's gen_tx Poisson
// process, derived from TxRate.
func (p Parameters) TxInterval() time.Duration {
	return time.Duration(float64(time.Second) / p.TxRate)
}

// PowInterval is the mean inter-arrival time of a node's PoW timer
// (spec §4.2: "exponentially distributed with mean round·N").
func (p Parameters) PowInterval() time.Duration {
	return p.Round * time.Duration(p.N)
}

// EpochDuration is the fixed T_timer period.
func (p Parameters) EpochDuration() time.Duration {
	return p.T
}
