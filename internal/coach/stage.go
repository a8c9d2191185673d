package coach

import (
	"strconv"

	"github.com/ashureev/callprep/internal/domain"
)

// Stage is an ordinal measure of how complete a lead is, from 1 (core loan
// facts missing) to 5 (ready to close).
type Stage int

const (
	StageLoanBasics Stage = iota + 1
	StageCashPosition
	StagePricing
	StageGoals
	StageReady
)

func (s Stage) String() string {
	return strconv.Itoa(int(s))
}

// InferStage classifies a lead. Guards are evaluated in order and the first
// unmet one decides the stage; the result depends only on the lead.
func InferStage(l *domain.Lead) Stage {
	switch {
	case l.CurrentRate == nil || l.CurrentPayment == nil || l.RemainingBalance == nil:
		return StageLoanBasics
	case l.SavingsBalance == nil || l.MonthlySurplus == nil:
		return StageCashPosition
	case l.PricingConcern && (l.CompetitorRate == nil || l.OurRate == nil):
		return StagePricing
	case l.BigGoal == "":
		return StageGoals
	default:
		return StageReady
	}
}
