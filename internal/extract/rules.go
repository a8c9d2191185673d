package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/ashureev/callprep/internal/domain"
)

// numericRule fills one numeric lead field from the first "keyword amount"
// match. The matched span is masked afterwards so later rules cannot read the
// same amount again.
type numericRule struct {
	field   string
	pattern *regexp.Regexp
	target  func(l *domain.Lead) **float64
}

// keywordRule maps a set of substrings to a category value.
type keywordRule struct {
	value    string
	keywords []string
}

// keywordTail is what may sit between a keyword and its amount.
const keywordTail = `\s*(?:of|is|at|was|about|around|roughly|:|=)?\s*`

func keyed(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + keywords + `)` + keywordTail + `(` + numberToken + `)`)
}

func yearsAfter(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + keywords + `)\s*(` + numberToken + `)\s*(?:years?|yrs?)\b`)
}

func yearsBefore(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(` + numberToken + `)\s*(?:years?|yrs?)\s*(?:` + keywords + `)\b`)
}

// numericRules run in this order. Rules for the same field are tried in
// turn; the first one that yields a value wins.
var numericRules = []numericRule{
	{
		field:   "competitor_rate",
		pattern: keyed(`competitor(?:'s)?(?:\s+(?:rate|offer|offering|quote|is offering))?|competition(?:'s)?(?:\s+rate)?|other bank(?:'s)?(?:\s+(?:rate|offer))?|rival(?:\s+bank)?(?:'s)?(?:\s+rate)?`),
		target:  func(l *domain.Lead) **float64 { return &l.CompetitorRate },
	},
	{
		field:   "our_rate",
		pattern: keyed(`our (?:best rate|rate|offer|price)|we can (?:do|offer|match)|we offer`),
		target:  func(l *domain.Lead) **float64 { return &l.OurRate },
	},
	{
		field:   "current_rate",
		pattern: keyed(`(?:(?:current|existing|interest)\s+)?(?:rates?|apr)`),
		target:  func(l *domain.Lead) **float64 { return &l.CurrentRate },
	},
	{
		field:   "current_payment",
		pattern: keyed(`monthly payment|payments?|paying|pays|pay|emi|instal?ments?`),
		target:  func(l *domain.Lead) **float64 { return &l.CurrentPayment },
	},
	{
		field:   "savings_balance",
		pattern: keyed(`savings(?:\s+(?:balance|account))?|fixed deposits?|deposits?|fds?|cash reserves?|cash on hand`),
		target:  func(l *domain.Lead) **float64 { return &l.SavingsBalance },
	},
	{
		field:   "remaining_balance",
		pattern: keyed(`remaining balance|loan balance|outstanding(?:\s+balance)?|balance|owes|owe|owing|principal|loan amount|loan of|mortgage of`),
		target:  func(l *domain.Lead) **float64 { return &l.RemainingBalance },
	},
	{
		field:   "tenure_years",
		pattern: yearsAfter(`(?:customer|client|banked with us|with us|relationship)(?:\s+(?:for|since|of))?`),
		target:  func(l *domain.Lead) **float64 { return &l.TenureYears },
	},
	{
		field:   "tenure_years",
		pattern: keyed(`tenure`),
		target:  func(l *domain.Lead) **float64 { return &l.TenureYears },
	},
	{
		field:   "remaining_term_years",
		pattern: yearsBefore(`left|remaining|to go`),
		target:  func(l *domain.Lead) **float64 { return &l.RemainingTermYears },
	},
	{
		field:   "remaining_term_years",
		pattern: keyed(`remaining term|term left|term remaining|term`),
		target:  func(l *domain.Lead) **float64 { return &l.RemainingTermYears },
	},
	{
		field:   "monthly_surplus",
		pattern: keyed(`monthly surplus|surplus|spare|saves|save|left over|leftover|free cash(?:\s+flow)?`),
		target:  func(l *domain.Lead) **float64 { return &l.MonthlySurplus },
	},
	{
		field:   "travel_spend",
		pattern: keyed(`travel(?:\s+(?:spend|spending|budget))?|spends?\s+on\s+travel|trips?|flights?`),
		target:  func(l *domain.Lead) **float64 { return &l.TravelSpend },
	},
}

var segmentRules = []keywordRule{
	{value: string(domain.SegmentSME), keywords: []string{"sme", "msme", "small business", "business owner", "proprietor", "self-employed", "self employed"}},
	{value: string(domain.SegmentHNI), keywords: []string{"hni", "private bank", "private client", "ultra high", "wealth management"}},
	{value: string(domain.SegmentPremier), keywords: []string{"premier", "priority banking", "priority customer"}},
	{value: string(domain.SegmentAffluent), keywords: []string{"affluent"}},
	{value: string(domain.SegmentMass), keywords: []string{"mass market", "mass segment", "retail customer", "salaried", "salary account"}},
}

// ObjectiveRefinance is the objective assumed for refinance conversations.
const ObjectiveRefinance = "Refinance to lower the monthly payment and improve cash flow"

var objectiveRules = []keywordRule{
	{value: ObjectiveRefinance, keywords: []string{"refi", "rate and term", "lower payment", "lower my payment", "reduce emi", "balance transfer"}},
	{value: "Cash-out or top-up against home equity", keywords: []string{"cash-out", "cash out", "top-up", "top up", "equity"}},
	{value: "Consolidate higher-interest debt", keywords: []string{"consolidat", "credit card debt", "pay off cards"}},
	{value: "Finance a new home purchase", keywords: []string{"purchase", "buying a home", "buy a home", "new home", "first home", "pre-approval", "preapproval"}},
	{value: "Retain the relationship and resolve dissatisfaction", keywords: []string{"retention", "retain", "leaving", "moving to another bank", "churn", "close the account", "closing the account"}},
	{value: "Review the relationship and deepen share of wallet", keywords: []string{"cross-sell", "cross sell", "deepen", "annual review", "relationship review"}},
}

var goalRules = []keywordRule{
	{value: "Fund children's education", keywords: []string{"college", "tuition", "education", "university", "school fees"}},
	{value: "Plan for retirement", keywords: []string{"retire", "pension"}},
	{value: "Renovate the home", keywords: []string{"renovat", "remodel", "new kitchen", "home improvement"}},
	{value: "Buy a second or investment property", keywords: []string{"second home", "vacation home", "holiday home", "investment property", "rental property"}},
	{value: "Grow the business", keywords: []string{"expand the business", "grow the business", "second store", "new branch", "expansion"}},
	{value: "Fund a family wedding", keywords: []string{"wedding", "marriage"}},
	{value: "Become debt-free sooner", keywords: []string{"debt free", "debt-free", "mortgage free", "mortgage-free", "pay off early", "pay it off early"}},
	{value: "Plan a major trip", keywords: []string{"world trip", "sabbatical", "travel the world"}},
}

var pricingKeywords = []string{
	"fees", "charges", "pricing", "expensive", "too high", "competitor", "cheaper",
	"better rate", "lower rate", "rate shopping", "shopping around", "price sensitive", "price-sensitive",
}

// firstCategory returns the value of the first rule whose keywords appear in
// lower, which must already be lowercased.
func firstCategory(rules []keywordRule, lower string) (string, bool) {
	for _, r := range rules {
		if containsAny(lower, r.keywords) {
			return r.value, true
		}
	}
	return "", false
}

func containsAny(lower string, keywords []string) bool {
	return slices.ContainsFunc(keywords, func(k string) bool {
		return strings.Contains(lower, k)
	})
}
