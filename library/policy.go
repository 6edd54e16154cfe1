package library

// SubscriptionPolicy is the static set of borrowing limits for one tier.
type SubscriptionPolicy struct {
	MaxActiveLoans int
	LoanDays       int
	PenaltyPerDay  float64
	MonthlyLoanCap int
}

var subscriptionPolicies = map[SubscriptionType]SubscriptionPolicy{
	SubscriptionBasic:   {MaxActiveLoans: 1, LoanDays: 14, PenaltyPerDay: 0.50, MonthlyLoanCap: 5},
	SubscriptionPremium: {MaxActiveLoans: 3, LoanDays: 21, PenaltyPerDay: 0.25, MonthlyLoanCap: 10},
	// VIP never pays penalties and the cap is effectively unlimited.
	SubscriptionVIP: {MaxActiveLoans: 5, LoanDays: 28, PenaltyPerDay: 0.0, MonthlyLoanCap: 999},
}

// PolicyFor returns the limits for a tier. Unknown tiers fall back to basic,
// which only happens for states that bypassed snapshot validation.
func PolicyFor(t SubscriptionType) SubscriptionPolicy {
	if p, ok := subscriptionPolicies[t]; ok {
		return p
	}
	return subscriptionPolicies[SubscriptionBasic]
}
