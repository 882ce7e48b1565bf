package lookup

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/careline/careline/internal/refdata"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// CostInput identifies the referral and the providers to price.
type CostInput struct {
	ReferralID       string              `json:"referral_id"`
	Providers        []referral.Provider `json:"providers"`
	PatientInsurance *referral.Insurance `json:"patient_insurance,omitempty"`
	CPTCodes         []string            `json:"cpt_codes,omitempty"`
}

// CostOutput carries one estimate per provider.
type CostOutput struct {
	Estimates []referral.CostEstimate `json:"estimates"`
}

// VerificationResult reports a patient's plan benefits.
type VerificationResult struct {
	Verified           bool     `json:"verified"`
	Copay              float64  `json:"copay"`
	Deductible         float64  `json:"deductible"`
	Coinsurance        float64  `json:"coinsurance"`
	MaxOutOfPocket     float64  `json:"max_out_of_pocket"`
	InNetworkProviders []string `json:"in_network_providers"`
}

// Multipliers applied to the base billing range for out-of-network care.
const (
	outOfNetworkLowMultiplier  = 1.5
	outOfNetworkHighMultiplier = 2.0
)

// costJitter is the ±fraction applied to both bounds of an estimate.
const costJitter = 0.1

// defaultInsurance is assumed when the patient's plan is unknown.
var defaultInsurance = referral.Insurance{
	Provider: "Blue Cross Blue Shield",
	PlanType: "PPO",
	MemberID: "unverified",
}

// Cost prices a new-patient consultation per provider against the
// procedure and insurance reference tables.
type Cost struct {
	data   *refdata.Set
	ledger task.Ledger
	logger *zap.Logger

	// rngMu guards rng: *rand.Rand is not safe for concurrent use and
	// requests run in parallel goroutines.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewCost creates a cost estimation service.
func NewCost(data *refdata.Set, ledger task.Ledger, logger *zap.Logger) *Cost {
	return &Cost{
		data:   data,
		ledger: ledger,
		logger: logger,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// EstimateCosts returns one estimate per provider. In-network providers
// are priced from copay, deductible, and coinsurance against the base
// consultation price; out-of-network providers get 1.5×–2.0× the base
// range. Both bounds carry ±10% jitter, with low clamped to ≥0 and
// high to ≥ low.
func (c *Cost) EstimateCosts(ctx context.Context, in CostInput) (*CostOutput, error) {
	taskID, err := c.ledger.Begin(ctx, task.TypeCost, in.ReferralID, in)
	if err != nil {
		return nil, err
	}

	insurance := defaultInsurance
	if in.PatientInsurance != nil {
		insurance = *in.PatientInsurance
	}

	estimates := make([]referral.CostEstimate, 0, len(in.Providers))
	for _, p := range in.Providers {
		estimates = append(estimates, c.estimateForProvider(p, insurance))
	}

	c.logger.Info("cost estimates generated",
		zap.String("referral", in.ReferralID),
		zap.Int("count", len(estimates)))

	out := &CostOutput{Estimates: estimates}
	if err := c.ledger.Complete(ctx, taskID, out); err != nil {
		c.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return out, nil
}

func (c *Cost) estimateForProvider(p referral.Provider, insurance referral.Insurance) referral.CostEstimate {
	proc, _ := c.data.Procedure(p.Specialty, refdata.ConsultationProcedure)

	est := referral.CostEstimate{ProviderID: p.ID}
	network, known := c.data.Network(insurance)

	if known && network.Includes(p.ID) {
		est.Copay = network.Copay
		est.Coinsurance = network.Coinsurance
		est.Deductible = network.Deductible

		afterCopay := math.Max(0, proc.Base-network.Copay)
		afterDeductible := math.Max(0, afterCopay-network.Deductible)
		coinsuranceAmount := afterDeductible * network.Coinsurance

		base := network.Copay + math.Min(network.Deductible, afterCopay)
		est.EstimateLow = base + (proc.Low-proc.Base)*network.Coinsurance
		est.EstimateHigh = base + (proc.High-proc.Base)*network.Coinsurance + coinsuranceAmount
		est.Notes = "In-network provider. Costs may vary based on deductible remaining."
	} else {
		est.EstimateLow = proc.Low * outOfNetworkLowMultiplier
		est.EstimateHigh = proc.High * outOfNetworkHighMultiplier
		est.Notes = "Out-of-network provider. Higher costs apply."
	}

	est.EstimateLow = math.Round(est.EstimateLow * c.jitter())
	est.EstimateHigh = math.Round(est.EstimateHigh * c.jitter())
	est.EstimateLow = math.Max(est.EstimateLow, 0)
	est.EstimateHigh = math.Max(est.EstimateHigh, est.EstimateLow)
	return est
}

func (c *Cost) jitter() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return 1 - costJitter + c.rng.Float64()*costJitter*2
}

// VerifyInsurance resolves a patient's plan benefits from the network
// reference table.
func (c *Cost) VerifyInsurance(insurance referral.Insurance) VerificationResult {
	network, ok := c.data.Network(insurance)
	if !ok {
		return VerificationResult{}
	}
	return VerificationResult{
		Verified:           true,
		Copay:              network.Copay,
		Deductible:         network.Deductible,
		Coinsurance:        network.Coinsurance,
		MaxOutOfPocket:     8000,
		InNetworkProviders: network.InNetworkProviders,
	}
}
