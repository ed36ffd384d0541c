package domain

// PlanName identifies a subscription tier.
type PlanName string

const (
	PlanFree  PlanName = "free"
	PlanBasic PlanName = "basic"
	PlanPro   PlanName = "pro"
)

// UnlimitedLeads is the lead limit sentinel for plans without a quota.
const UnlimitedLeads = -1

// DefaultCurrency is the billing currency of the built-in plans.
const DefaultCurrency = "USD"

// Plan is immutable reference data for one tier.
type Plan struct {
	Name                 PlanName `json:"name"`
	DisplayName          string   `json:"displayName"`
	MonthlyPrice         float64  `json:"monthlyPrice"`
	Currency             string   `json:"currency"`
	LeadLimit            int      `json:"leadLimit"`
	VisibilityMultiplier float64  `json:"visibilityMultiplier"`
	CommissionRate       float64  `json:"commissionRate"`
	Benefits             []string `json:"benefits"`
	DisplayOrder         int      `json:"displayOrder"`
}

// Unlimited reports whether the plan has no lead quota.
func (p Plan) Unlimited() bool {
	return p.LeadLimit < 0
}

// HasCapacity reports whether used leads still fit the plan's quota.
func (p Plan) HasCapacity(used int) bool {
	return p.Unlimited() || used < p.LeadLimit
}

var defaultPlans = []Plan{
	{
		Name:                 PlanFree,
		DisplayName:          "Free",
		MonthlyPrice:         0,
		Currency:             DefaultCurrency,
		LeadLimit:            1,
		VisibilityMultiplier: 1.0,
		CommissionRate:       0.15,
		Benefits:             []string{"1 lead per month", "Basic profile", "15% commission"},
		DisplayOrder:         1,
	},
	{
		Name:                 PlanBasic,
		DisplayName:          "Basic",
		MonthlyPrice:         10,
		Currency:             DefaultCurrency,
		LeadLimit:            5,
		VisibilityMultiplier: 1.2,
		CommissionRate:       0.12,
		Benefits:             []string{"5 leads per month", "Boosted visibility", "12% commission"},
		DisplayOrder:         2,
	},
	{
		Name:                 PlanPro,
		DisplayName:          "Pro",
		MonthlyPrice:         19,
		Currency:             DefaultCurrency,
		LeadLimit:            UnlimitedLeads,
		VisibilityMultiplier: 1.5,
		CommissionRate:       0.08,
		Benefits:             []string{"Unlimited leads", "Top visibility", "8% commission", "Priority support"},
		DisplayOrder:         3,
	},
}

// DefaultPlans returns a copy of the built-in plan set.
func DefaultPlans() []Plan {
	out := make([]Plan, len(defaultPlans))
	for i, p := range defaultPlans {
		p.Benefits = append([]string(nil), p.Benefits...)
		out[i] = p
	}
	return out
}

// DefaultPlan looks up a built-in plan by name.
func DefaultPlan(name PlanName) (Plan, bool) {
	for _, p := range DefaultPlans() {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// IsKnownPlan reports whether name is one of the built-in tiers.
func IsKnownPlan(name string) bool {
	_, ok := DefaultPlan(PlanName(name))
	return ok
}

// PlanNames lists the built-in tier names in display order.
func PlanNames() []string {
	return []string{string(PlanFree), string(PlanBasic), string(PlanPro)}
}
