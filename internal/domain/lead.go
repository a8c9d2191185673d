// Package domain contains core domain types for the callprep coach.
package domain

// Segment is the customer's banking segment.
type Segment string

// Known segments.
const (
	SegmentMass     Segment = "mass"
	SegmentAffluent Segment = "affluent"
	SegmentPremier  Segment = "premier"
	SegmentHNI      Segment = "hni"
	SegmentSME      Segment = "sme"
)

// Label returns a display label for the segment.
func (s Segment) Label() string {
	switch s {
	case SegmentMass:
		return "Mass retail"
	case SegmentAffluent:
		return "Affluent"
	case SegmentPremier:
		return "Premier"
	case SegmentHNI:
		return "HNI / private"
	case SegmentSME:
		return "SME / business"
	default:
		return string(s)
	}
}

// Lead is the fact sheet built up for one customer within one session.
// Unset fields are nil or empty. Extraction only ever fills unset fields.
type Lead struct {
	Name               string   `json:"name,omitempty"`
	State              string   `json:"state,omitempty"`
	Objective          string   `json:"objective,omitempty"`
	Segment            Segment  `json:"segment,omitempty" validate:"omitempty,oneof=mass affluent premier hni sme"`
	TenureYears        *float64 `json:"tenure_years,omitempty" validate:"omitempty,gte=0"`
	CurrentRate        *float64 `json:"current_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	CurrentPayment     *float64 `json:"current_payment,omitempty" validate:"omitempty,gte=0"`
	RemainingBalance   *float64 `json:"remaining_balance,omitempty" validate:"omitempty,gte=0"`
	RemainingTermYears *float64 `json:"remaining_term_years,omitempty" validate:"omitempty,gte=0"`
	CompetitorRate     *float64 `json:"competitor_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	OurRate            *float64 `json:"our_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	SavingsBalance     *float64 `json:"savings_balance,omitempty" validate:"omitempty,gte=0"`
	MonthlySurplus     *float64 `json:"monthly_surplus,omitempty" validate:"omitempty,gte=0"`
	TravelSpend        *float64 `json:"travel_spend,omitempty" validate:"omitempty,gte=0"`
	PricingConcern     bool     `json:"pricing_concern,omitempty"`
	BigGoal            string   `json:"big_goal,omitempty"`
}

// IsEmpty returns true if no field has been captured yet.
func (l *Lead) IsEmpty() bool {
	return len(l.KnownFields()) == 0
}

// KnownFields returns the JSON names of every captured field, in declaration order.
func (l *Lead) KnownFields() []string {
	var known []string
	add := func(name string, ok bool) {
		if ok {
			known = append(known, name)
		}
	}
	add("name", l.Name != "")
	add("state", l.State != "")
	add("objective", l.Objective != "")
	add("segment", l.Segment != "")
	add("tenure_years", l.TenureYears != nil)
	add("current_rate", l.CurrentRate != nil)
	add("current_payment", l.CurrentPayment != nil)
	add("remaining_balance", l.RemainingBalance != nil)
	add("remaining_term_years", l.RemainingTermYears != nil)
	add("competitor_rate", l.CompetitorRate != nil)
	add("our_rate", l.OurRate != nil)
	add("savings_balance", l.SavingsBalance != nil)
	add("monthly_surplus", l.MonthlySurplus != nil)
	add("travel_spend", l.TravelSpend != nil)
	add("pricing_concern", l.PricingConcern)
	add("big_goal", l.BigGoal != "")
	return known
}

// Clone returns a deep copy of the lead.
func (l *Lead) Clone() Lead {
	c := *l
	for _, p := range []**float64{
		&c.TenureYears, &c.CurrentRate, &c.CurrentPayment, &c.RemainingBalance,
		&c.RemainingTermYears, &c.CompetitorRate, &c.OurRate, &c.SavingsBalance,
		&c.MonthlySurplus, &c.TravelSpend,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return c
}

// CustomerName returns the captured name or a generic fallback.
func (l *Lead) CustomerName() string {
	if l.Name == "" {
		return "the customer"
	}
	return l.Name
}
