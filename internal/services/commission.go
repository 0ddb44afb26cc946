package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
)

// CashCommissionRate is the platform's cut of cash-on-delivery orders.
// Online payments carry zero commission here: Xendit performs the revenue
// split at disbursement.
var CashCommissionRate = decimal.NewFromFloat(0.10)

// ComputeCommission returns the commission owed on a gross amount for the
// given payment source
func ComputeCommission(source models.PaymentSource, gross decimal.Decimal) decimal.Decimal {
	if source == models.PaymentSourceCash {
		return gross.Mul(CashCommissionRate).Round(2)
	}
	return decimal.Zero
}

// manilaTZ is the settlement timezone. time.FixedZone avoids depending on the
// host's tzdata; Manila has no DST.
var manilaTZ = time.FixedZone("Asia/Manila", 8*60*60)

// WeekEnding returns the end of the settlement week containing now:
// Saturday 20:00 Manila time.
func WeekEnding(now time.Time) time.Time {
	local := now.In(manilaTZ)
	daysUntilSaturday := int(time.Saturday - local.Weekday())
	if daysUntilSaturday < 0 {
		daysUntilSaturday += 7
	}
	saturday := local.AddDate(0, 0, daysUntilSaturday)
	weekEnd := time.Date(saturday.Year(), saturday.Month(), saturday.Day(), 20, 0, 0, 0, manilaTZ)
	if weekEnd.Before(local) {
		weekEnd = weekEnd.AddDate(0, 0, 7)
	}
	return weekEnd
}

// CommissionService rolls unpaid cash-channel commission into one payable
// remittance invoice per restaurant per settlement week
type CommissionService struct {
	db       *gorm.DB
	ledger   *TransactionLedger
	provider PaymentProvider
	email    *EmailService
}

func NewCommissionService(db *gorm.DB, ledger *TransactionLedger, provider PaymentProvider, email *EmailService) *CommissionService {
	return &CommissionService{db: db, ledger: ledger, provider: provider, email: email}
}

// AggregateResult summarizes one rollup run
type AggregateResult struct {
	Invoiced int
	Skipped  int
	Failed   int
}

// AggregateWeek sums completed cash-channel commission per restaurant over
// (weekEnding-7d, weekEnding] and creates one payable invoice per restaurant
// with a positive sum. The CommissionRemittance row is inserted before the
// provider call; its unique (restaurant_id, week_ending) index makes re-runs
// and concurrent runs skip already-invoiced weeks, and a claimed row that
// never got its invoice is resumed rather than skipped. One restaurant
// failing never aborts the batch.
func (s *CommissionService) AggregateWeek(ctx context.Context, weekEnding time.Time) (*AggregateResult, error) {
	weekStart := weekEnding.AddDate(0, 0, -7)
	result := &AggregateResult{}

	restaurantIDs, err := s.ledger.RestaurantsWithCompletedCash(ctx, weekStart, weekEnding)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants with cash activity: %w", err)
	}

	for _, restaurantID := range restaurantIDs {
		if err := s.remitForRestaurant(ctx, restaurantID, weekStart, weekEnding, result); err != nil {
			log.Printf("Commission rollup failed for restaurant %d: %v", restaurantID, err)
			result.Failed++
		}
	}

	return result, nil
}

func (s *CommissionService) remitForRestaurant(ctx context.Context, restaurantID uint, weekStart, weekEnding time.Time, result *AggregateResult) error {
	var remittance models.CommissionRemittance
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND week_ending = ?", restaurantID, weekEnding).
		First(&remittance).Error

	freshClaim := false
	switch {
	case err == nil && remittance.XenditInvoiceID != "":
		// Already invoiced for this week
		result.Skipped++
		return nil
	case err == nil:
		// A previous run claimed the week but died before the provider call;
		// resume from the stored total instead of stranding the row
	case errors.Is(err, gorm.ErrRecordNotFound):
		txs, err := s.ledger.CompletedCashByWeek(ctx, restaurantID, weekStart, weekEnding)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, tx := range txs {
			total = total.Add(tx.Commission)
		}
		if !total.IsPositive() {
			result.Skipped++
			return nil
		}

		remittance = models.CommissionRemittance{
			RestaurantID:    restaurantID,
			WeekEnding:      weekEnding,
			TotalCommission: total,
			DueDate:         weekEnding.AddDate(0, 0, 7),
		}
		if err := s.db.WithContext(ctx).Create(&remittance).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A concurrent run claimed this week first
				result.Skipped++
				return nil
			}
			return err
		}
		freshClaim = true
	default:
		return err
	}

	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, restaurantID).Error; err != nil {
		return fmt.Errorf("failed to fetch restaurant: %w", err)
	}

	externalID := fmt.Sprintf("commission-%d-%d", restaurantID, weekEnding.Unix())
	description := fmt.Sprintf("Weekly commission for %s (week ending %s)", restaurant.Title, weekEnding.Format("2006-01-02"))
	invoice, err := s.provider.CreatePayableInvoice(ctx, externalID, remittance.TotalCommission, description, remittance.DueDate)
	if err != nil {
		// Release a freshly claimed week; a resumed row stays resumable
		if freshClaim {
			s.db.WithContext(ctx).Unscoped().Delete(&remittance)
		}
		return fmt.Errorf("failed to create payable invoice: %w", err)
	}

	remittance.XenditInvoiceID = invoice.ID
	remittance.InvoiceURL = invoice.InvoiceURL
	if err := s.db.WithContext(ctx).Save(&remittance).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"pending_remit_amount":      remittance.TotalCommission,
		"pending_remit_invoice_url": invoice.InvoiceURL,
		"pending_remit_due_date":    remittance.DueDate,
	}
	if err := s.db.WithContext(ctx).Model(&restaurant).Updates(updates).Error; err != nil {
		return err
	}

	s.notifyRestaurant(restaurant, remittance)
	result.Invoiced++
	return nil
}

func (s *CommissionService) notifyRestaurant(restaurant models.Restaurant, remittance models.CommissionRemittance) {
	if s.email == nil || restaurant.Email == "" {
		return
	}
	err := s.email.SendCommissionNotice(restaurant.Email, restaurant.Title,
		remittance.TotalCommission, remittance.InvoiceURL, remittance.DueDate)
	if err != nil {
		log.Printf("Failed to send commission notice to %s: %v", restaurant.Email, err)
	}
}
