// Package service implements plan resolution, lead quotas, monthly charges
// and the referral program.
package service

import (
	"context"
	"math"
	"strings"
	"time"

	"marketplace_backend/internal/events"
	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/internal/subscription/transport"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	// BillingPeriod is the length of one lead quota window.
	BillingPeriod = 30 * 24 * time.Hour

	// ReferralDiscountRate is the share of one month's price waived per accrued referral month.
	ReferralDiscountRate = 0.5
)

// PlanStore reads and seeds plan reference data.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	GetPlan(ctx context.Context, name domain.PlanName) (*domain.Plan, error)
	InsertMissing(ctx context.Context, plans []domain.Plan) (int, error)
}

// ProviderStore performs the narrow provider updates owned by this service.
type ProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error)
	ResetPeriodIfExpired(ctx context.Context, id uuid.UUID, now, periodEnd time.Time) (bool, error)
	IncrementLeadUsage(ctx context.Context, id uuid.UUID, now time.Time) error
	ConsumeLead(ctx context.Context, id uuid.UUID, limit int, now time.Time) (bool, error)
	ApplyRenewal(ctx context.Context, id uuid.UUID, spendDiscount bool, periodStart, periodEnd time.Time) error
	SetPlan(ctx context.Context, id uuid.UUID, plan domain.PlanName, commissionRate float64) error
	CreditReferral(ctx context.Context, code string) (*uuid.UUID, error)
	FindByReferralCode(ctx context.Context, code string) (*uuid.UUID, error)
	SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) (bool, error)
}

// Service is the subscription and quota manager.
type Service struct {
	plans     PlanStore
	providers ProviderStore
	eventBus  events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new subscription service.
func New(plans PlanStore, providers ProviderStore, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		plans:     plans,
		providers: providers,
		eventBus:  eventBus,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnsurePlansSeeded stores the built-in plans that are not present yet.
func (s *Service) EnsurePlansSeeded(ctx context.Context) error {
	inserted, err := s.plans.InsertMissing(ctx, domain.DefaultPlans())
	if err != nil {
		return err
	}
	if inserted > 0 {
		s.log.Info("subscription plans seeded", "inserted", inserted)
	}
	return nil
}

// ListPlans returns stored plans, or the built-in set when none are stored or
// the store is unreachable.
func (s *Service) ListPlans(ctx context.Context) []domain.Plan {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		s.log.Warn("plan listing failed, using defaults", "error", err)
		return domain.DefaultPlans()
	}
	if len(plans) == 0 {
		return domain.DefaultPlans()
	}
	return plans
}

// GetPlan never fails: unknown names and store errors resolve to the
// built-in definition, and finally to the free plan.
func (s *Service) GetPlan(ctx context.Context, name domain.PlanName) domain.Plan {
	if plan, ok := s.lookupPlan(ctx, name); ok {
		return plan
	}
	free, _ := domain.DefaultPlan(domain.PlanFree)
	return free
}

func (s *Service) lookupPlan(ctx context.Context, name domain.PlanName) (domain.Plan, bool) {
	stored, err := s.plans.GetPlan(ctx, name)
	if err != nil {
		s.log.Warn("plan lookup failed, using defaults", "plan", name, "error", err)
	}
	if stored != nil {
		return *stored, true
	}
	return domain.DefaultPlan(name)
}

// CanReceiveLead fails closed for inactive subscriptions. Otherwise it rolls
// an expired billing period (persisted best-effort, mirrored on p) and checks
// the plan quota.
func (s *Service) CanReceiveLead(ctx context.Context, p *domain.Provider) bool {
	if p == nil || !p.Subscription.IsActive() {
		return false
	}
	s.ensureCurrentPeriod(ctx, p)
	return s.GetPlan(ctx, p.Subscription.Plan).HasCapacity(p.Subscription.LeadsUsed)
}

func (s *Service) ensureCurrentPeriod(ctx context.Context, p *domain.Provider) {
	now := s.now()
	if !p.Subscription.PeriodExpired(now) {
		return
	}

	end := now.Add(BillingPeriod)
	if p.Identified() {
		if _, err := s.providers.ResetPeriodIfExpired(ctx, p.ID, now, end); err != nil {
			s.log.Warn("billing period reset not persisted", "providerId", p.ID, "error", err)
		}
	}
	p.Subscription.CurrentPeriodStart = &now
	p.Subscription.CurrentPeriodEnd = &end
	p.Subscription.LeadsUsed = 0
}

// IncrementLeadUsage rolls an expired period and then adds one lead with no
// quota check.
func (s *Service) IncrementLeadUsage(ctx context.Context, providerID uuid.UUID) error {
	now := s.now()
	if _, err := s.providers.ResetPeriodIfExpired(ctx, providerID, now, now.Add(BillingPeriod)); err != nil {
		return err
	}
	return s.providers.IncrementLeadUsage(ctx, providerID, now)
}

// ConsumeLead rolls an expired period and adds one lead only if the plan
// quota still allows it. False means the quota is exhausted.
func (s *Service) ConsumeLead(ctx context.Context, providerID uuid.UUID) (bool, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return false, err
	}
	if !p.Subscription.IsActive() {
		return false, nil
	}

	now := s.now()
	if p.Subscription.PeriodExpired(now) {
		if _, err := s.providers.ResetPeriodIfExpired(ctx, providerID, now, now.Add(BillingPeriod)); err != nil {
			return false, err
		}
	}

	plan := s.GetPlan(ctx, p.Subscription.Plan)
	return s.providers.ConsumeLead(ctx, providerID, plan.LeadLimit, now)
}

// ComputeMonthlyCharge applies the referral discount to the plan price.
func (s *Service) ComputeMonthlyCharge(ctx context.Context, p *domain.Provider) transport.Charge {
	plan := s.GetPlan(ctx, p.Subscription.Plan)
	base := plan.MonthlyPrice

	discount := 0.0
	if base > 0 && p.Referral.DiscountMonths > 0 {
		discount = base * ReferralDiscountRate
	}

	currency := plan.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return transport.Charge{
		Plan:     string(plan.Name),
		Currency: currency,
		Base:     round2(base),
		Discount: round2(discount),
		Total:    round2(math.Max(0, base-discount)),
	}
}

// GetCharge loads the provider and computes its monthly charge.
func (s *Service) GetCharge(ctx context.Context, providerID uuid.UUID) (transport.Charge, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return transport.Charge{}, err
	}
	return s.ComputeMonthlyCharge(ctx, p), nil
}

// ApplyMonthlyRenewal computes the closing month's charge, spends a discount
// month if one was applied and starts a fresh billing period.
func (s *Service) ApplyMonthlyRenewal(ctx context.Context, providerID uuid.UUID) (transport.Charge, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return transport.Charge{}, err
	}

	charge := s.ComputeMonthlyCharge(ctx, p)
	now := s.now()
	if err := s.providers.ApplyRenewal(ctx, providerID, charge.Discount > 0, now, now.Add(BillingPeriod)); err != nil {
		return transport.Charge{}, err
	}

	s.log.Info("subscription renewed", "providerId", providerID, "plan", charge.Plan, "total", charge.Total)
	return charge, nil
}

// ChangePlan switches plan, activates the subscription and takes over the
// plan's commission rate.
func (s *Service) ChangePlan(ctx context.Context, providerID uuid.UUID, planName string) error {
	plan, ok := s.lookupPlan(ctx, domain.PlanName(strings.ToLower(strings.TrimSpace(planName))))
	if !ok {
		return apperr.Validation("unknown subscription plan").WithDetails(map[string]any{"allowed": domain.PlanNames()})
	}

	if err := s.providers.SetPlan(ctx, providerID, plan.Name, plan.CommissionRate); err != nil {
		return err
	}

	s.publish(ctx, events.SubscriptionPlanChanged{
		BaseEvent:  events.NewBaseEvent(),
		ProviderID: providerID,
		Plan:       string(plan.Name),
	})
	return nil
}

// ApplyReferralCode credits the owner of code and returns its id, or nil
// with no side effects when nobody owns code.
func (s *Service) ApplyReferralCode(ctx context.Context, code string) (*uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	referrerID, err := s.providers.CreditReferral(ctx, code)
	if err != nil || referrerID == nil {
		return nil, err
	}

	s.publish(ctx, events.ReferralApplied{
		BaseEvent:  events.NewBaseEvent(),
		ReferrerID: *referrerID,
	})
	return referrerID, nil
}

// RedeemReferral links a newly registered provider to the owner of code and
// credits that owner. Self-referral and a second redemption are rejected.
func (s *Service) RedeemReferral(ctx context.Context, providerID uuid.UUID, code string) (*uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	ownerID, err := s.providers.FindByReferralCode(ctx, code)
	if err != nil || ownerID == nil {
		return nil, err
	}
	if *ownerID == providerID {
		return nil, apperr.Validation("cannot redeem your own referral code")
	}

	linked, err := s.providers.SetReferredBy(ctx, providerID, *ownerID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, apperr.Conflict("referral already redeemed")
	}

	referrerID, err := s.providers.CreditReferral(ctx, code)
	if err != nil || referrerID == nil {
		return nil, err
	}

	s.publish(ctx, events.ReferralApplied{
		BaseEvent:  events.NewBaseEvent(),
		ReferrerID: *referrerID,
		ReferredID: &providerID,
	})
	return referrerID, nil
}

// QuotaStatus reports lead usage for the current period.
func (s *Service) QuotaStatus(ctx context.Context, providerID uuid.UUID) (transport.QuotaStatus, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return transport.QuotaStatus{}, err
	}

	canReceive := s.CanReceiveLead(ctx, p)
	plan := s.GetPlan(ctx, p.Subscription.Plan)

	remaining := domain.UnlimitedLeads
	if !plan.Unlimited() {
		remaining = max(0, plan.LeadLimit-p.Subscription.LeadsUsed)
	}

	return transport.QuotaStatus{
		ProviderID:     p.ID,
		Plan:           string(plan.Name),
		Status:         string(p.Subscription.Status),
		LeadLimit:      plan.LeadLimit,
		LeadsUsed:      p.Subscription.LeadsUsed,
		Remaining:      remaining,
		PeriodStart:    p.Subscription.CurrentPeriodStart,
		PeriodEnd:      p.Subscription.CurrentPeriodEnd,
		CanReceiveLead: canReceive,
	}, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
