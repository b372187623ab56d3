package models

// Tier is the service level of a report. The values are the wire labels used
// by the intake form and the payment layer.
type Tier string

const (
	TierFree         Tier = "GRATIS"
	TierBasic        Tier = "BASIS"
	TierProfessional Tier = "PROFESSIONAL"
	TierEnterprise   Tier = "ENTERPRISE"
)

// TierConfig defines the structural minimums a tier's generated document must
// meet, and how the risk-item stage is partitioned into batches.
type TierConfig struct {
	MinRiskItems       int
	Batches            int
	MeasuresPerRisk    int
	RequireActionPlan  bool
	RequireLegal       bool
	MinActionPlanItems int
}

// RiskBatchSize is the fixed per-batch item quota for the risk-item stage.
// The final batch receives the remainder.
const RiskBatchSize = 4

var tierConfigs = map[Tier]TierConfig{
	TierFree:         {MinRiskItems: 4, Batches: 1, MeasuresPerRisk: 1, MinActionPlanItems: 5},
	TierBasic:        {MinRiskItems: 6, Batches: 2, MeasuresPerRisk: 2, RequireActionPlan: true, MinActionPlanItems: 5},
	TierProfessional: {MinRiskItems: 8, Batches: 2, MeasuresPerRisk: 2, RequireActionPlan: true, MinActionPlanItems: 5},
	TierEnterprise:   {MinRiskItems: 10, Batches: 3, MeasuresPerRisk: 3, RequireActionPlan: true, RequireLegal: true, MinActionPlanItems: 8},
}

// Config returns the TierConfig for t, falling back to the free tier for
// unknown labels so a corrupted record still generates something inspectable.
func (t Tier) Config() TierConfig {
	if cfg, ok := tierConfigs[t]; ok {
		return cfg
	}
	return tierConfigs[TierFree]
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	_, ok := tierConfigs[t]
	return ok
}

// BatchCount returns the number of items batch batchIndex (0-based) of
// totalBatches should produce for a tier requiring total items in all.
func BatchCount(total, batchIndex int) int {
	start := batchIndex * RiskBatchSize
	if start >= total {
		return 0
	}
	if remaining := total - start; remaining < RiskBatchSize {
		return remaining
	}
	return RiskBatchSize
}
