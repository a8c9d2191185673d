package coach

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/callprep/internal/domain"
)

// fieldFormat renders one lead field as a snapshot bullet.
type fieldFormat struct {
	field  string
	label  string
	render func(l *domain.Lead, pb *Playbook) (string, bool)
}

func textField(get func(l *domain.Lead) string) func(*domain.Lead, *Playbook) (string, bool) {
	return func(l *domain.Lead, _ *Playbook) (string, bool) {
		v := get(l)
		return v, v != ""
	}
}

func numberField(get func(l *domain.Lead) *float64, format func(float64) string) func(*domain.Lead, *Playbook) (string, bool) {
	return func(l *domain.Lead, _ *Playbook) (string, bool) {
		v := get(l)
		if v == nil {
			return "", false
		}
		return format(*v), true
	}
}

// leadFields lists every lead field in snapshot and summary order.
var leadFields = []fieldFormat{
	{"name", "Customer", textField(func(l *domain.Lead) string { return l.Name })},
	{"state", "State", textField(func(l *domain.Lead) string { return l.State })},
	{"objective", "Objective", textField(func(l *domain.Lead) string { return l.Objective })},
	{"segment", "Segment", textField(func(l *domain.Lead) string {
		if l.Segment == "" {
			return ""
		}
		return l.Segment.Label()
	})},
	{"tenure_years", "Tenure", numberField(func(l *domain.Lead) *float64 { return l.TenureYears }, formatYears)},
	{"current_rate", "Current rate", renderCurrentRate},
	{"current_payment", "Monthly payment", numberField(func(l *domain.Lead) *float64 { return l.CurrentPayment }, formatMoney)},
	{"remaining_balance", "Remaining balance", numberField(func(l *domain.Lead) *float64 { return l.RemainingBalance }, formatMoney)},
	{"remaining_term_years", "Remaining term", numberField(func(l *domain.Lead) *float64 { return l.RemainingTermYears }, formatYears)},
	{"competitor_rate", "Competitor rate", numberField(func(l *domain.Lead) *float64 { return l.CompetitorRate }, formatRate)},
	{"our_rate", "Our rate", numberField(func(l *domain.Lead) *float64 { return l.OurRate }, formatRate)},
	{"savings_balance", "Savings", numberField(func(l *domain.Lead) *float64 { return l.SavingsBalance }, formatMoney)},
	{"monthly_surplus", "Monthly surplus", numberField(func(l *domain.Lead) *float64 { return l.MonthlySurplus }, formatMoney)},
	{"travel_spend", "Travel spend", numberField(func(l *domain.Lead) *float64 { return l.TravelSpend }, formatMoney)},
	{"pricing_concern", "Pricing", func(l *domain.Lead, _ *Playbook) (string, bool) {
		return "price sensitive", l.PricingConcern
	}},
	{"big_goal", "Big goal", textField(func(l *domain.Lead) string { return l.BigGoal })},
}

var fieldLabels = func() map[string]string {
	m := make(map[string]string, len(leadFields))
	for _, f := range leadFields {
		m[f.field] = strings.ToLower(f.label)
	}
	return m
}()

// renderCurrentRate flags rates under the playbook floor, where a refinance
// has little room to help.
func renderCurrentRate(l *domain.Lead, pb *Playbook) (string, bool) {
	if l.CurrentRate == nil {
		return "", false
	}
	rate := formatRate(*l.CurrentRate)
	if *l.CurrentRate < pb.RateFloor {
		return fmt.Sprintf("🔴 **%s** _(below the %s floor, limited refinance upside)_", rate, formatRate(pb.RateFloor)), true
	}
	return rate, true
}

// checklistItem is a category of facts the RM should still collect.
type checklistItem struct {
	label  string
	fields []string
	when   func(l *domain.Lead) bool
}

var checklist = []checklistItem{
	{label: "Customer profile", fields: []string{"name", "segment", "tenure_years"}},
	{label: "Loan basics", fields: []string{"current_rate", "current_payment", "remaining_balance", "remaining_term_years"}},
	{label: "Cash position", fields: []string{"savings_balance", "monthly_surplus"}},
	{
		label:  "Pricing benchmark",
		fields: []string{"competitor_rate", "our_rate"},
		when:   func(l *domain.Lead) bool { return l.PricingConcern },
	},
	{label: "Customer goal", fields: []string{"big_goal"}},
}

func writeFacts(b *strings.Builder, l *domain.Lead, pb *Playbook) {
	wrote := false
	for _, f := range leadFields {
		v, ok := f.render(l, pb)
		if !ok {
			continue
		}
		fmt.Fprintf(b, "- **%s:** %s\n", f.label, v)
		wrote = true
	}
	if !wrote {
		b.WriteString("- Nothing captured yet.\n")
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRate(v float64) string {
	return formatNumber(v) + "%"
}

func formatYears(v float64) string {
	return formatNumber(v) + " yrs"
}

func formatMoney(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("$%.0f", v)
	}
	return fmt.Sprintf("$%.2f", v)
}

// formatPoints renders a rate difference in percentage points.
func formatPoints(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " pts"
}
