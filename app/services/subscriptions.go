package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/response"
)

type SubscriptionService struct {
	db *gorm.DB
}

type SubscriptionInput struct {
	ProductID  uint   `json:"productId"  validate:"required"`
	SupplierID *uint  `json:"supplierId"`
	Plan       string `json:"plan"       validate:"required,in=monthly|yearly"`
	AutoRenew  bool   `json:"autoRenew"`
}

// Subscribe starts a monthly or yearly plan on a product that offers it.
func (s *SubscriptionService) Subscribe(ctx context.Context, customerID uint, in SubscriptionInput) (*models.Subscription, error) {
	p, err := repositories.NewProductRepository(s.db).Find(ctx, in.ProductID)
	if err != nil {
		return nil, invalid("productId", "The selected product is invalid.")
	}

	start := time.Now()
	sub := &models.Subscription{
		CustomerID: customerID,
		ProductID:  p.ID,
		SupplierID: in.SupplierID,
		Plan:       in.Plan,
		StartDate:  start,
		Status:     models.SubscriptionActive,
		AutoRenew:  in.AutoRenew,
	}
	switch in.Plan {
	case models.PlanMonthly:
		if !p.MonthlyPackage {
			return nil, invalid("plan", "The product has no monthly plan.")
		}
		sub.Price = p.MonthlyPrice
		sub.EndDate = start.AddDate(0, 1, 0)
	case models.PlanYearly:
		if !p.YearlyPackage {
			return nil, invalid("plan", "The product has no yearly plan.")
		}
		sub.Price = p.YearlyPrice
		sub.EndDate = start.AddDate(1, 0, 0)
	default:
		return nil, invalid("plan", "The selected plan is invalid.")
	}

	if err := repositories.NewSubscriptionRepository(s.db).Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) ForCustomer(ctx context.Context, customerID uint, page, perPage int) ([]models.Subscription, response.Pagination, error) {
	return repositories.NewSubscriptionRepository(s.db).Paginate(ctx, page, perPage,
		repositories.Where("customer_id = ?", customerID),
		repositories.Preload("Product"), repositories.OrderBy("id DESC"))
}

// Cancel ends the customer's own active subscription.
func (s *SubscriptionService) Cancel(ctx context.Context, customerID, id uint) (*models.Subscription, error) {
	repo := repositories.NewSubscriptionRepository(s.db)
	sub, err := repo.FirstWhere(ctx, "id = ? AND customer_id = ?", id, customerID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionActive {
		return nil, transitionError("status", sub.Status, models.SubscriptionCancelled)
	}
	if err := repo.Update(ctx, id, map[string]any{"status": models.SubscriptionCancelled, "auto_renew": false}); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionCancelled
	sub.AutoRenew = false
	return sub, nil
}

// ExpireLapsed marks subscriptions past their end date expired.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	return repositories.NewSubscriptionRepository(s.db).ExpireLapsed(ctx, now)
}
