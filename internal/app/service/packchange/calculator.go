package packchange

import (
	"fmt"
	"math"
	"time"

	models "github.com/yelenbi/packbilling/internal/models"
	types "github.com/yelenbi/packbilling/pkg/types"
)

// Proration is the partial-period credit for the running billing
// cycle. The cycle is startedAt..startedAt+1 month; days used are
// rounded up, so the credit only ever shrinks as time passes and is 0
// at or after the cycle end.
type Proration struct {
	TotalDays     int     `json:"total_days"`
	DaysUsed      int     `json:"days_used"`
	DaysRemaining int     `json:"days_remaining"`
	DailyRate     float64 `json:"daily_rate"`
	CreditAmount  int64   `json:"credit_amount"`
}

// Comparison classifies a requested pack transition. It is a pure
// read: nothing may mutate state before or while computing it.
type Comparison struct {
	ChangeType           types.PackChangeType `json:"change_type"`
	CurrentPack          *models.Pack         `json:"current_pack,omitempty"`
	NewPack              *models.Pack         `json:"new_pack"`
	PriceDifference      int64                `json:"price_difference"`
	RequiresPayment      bool                 `json:"requires_payment"`
	CanChangeImmediately bool                 `json:"can_change_immediately"`
	Proration            *Proration           `json:"proration,omitempty"`
	ActionDescription    string               `json:"action_description"`
	RecommendedAction    string               `json:"recommended_action"`
}

const (
	RecommendedActionCheckout  = "checkout"
	RecommendedActionImmediate = "immediate_change"
)

// ComputeProration returns the credit owed for the unused remainder of
// a cycle that started at startedAt, priced at price per month.
// Rounding: daysUsed rounds up, dailyRate is real division, the final
// credit rounds down.
func ComputeProration(price int64, startedAt, now time.Time) *Proration {
	cycleEnd := startedAt.AddDate(0, 1, 0)
	totalDays := int(cycleEnd.Sub(startedAt).Hours() / 24)
	if totalDays <= 0 {
		totalDays = 30
	}

	daysUsed := int(math.Ceil(now.Sub(startedAt).Hours() / 24))
	if daysUsed < 0 {
		daysUsed = 0
	}
	daysRemaining := totalDays - daysUsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	dailyRate := float64(price) / float64(totalDays)
	credit := int64(math.Floor(dailyRate * float64(daysRemaining)))

	return &Proration{
		TotalDays:     totalDays,
		DaysUsed:      daysUsed,
		DaysRemaining: daysRemaining,
		DailyRate:     dailyRate,
		CreditAmount:  credit,
	}
}

// Compare classifies the transition from currentPack to newPack.
// Classification order is significant: a user with no current pack is
// always first_pack regardless of price; otherwise price comparison
// decides, with equal prices falling through to same_price.
//
// Payment is required only for an upgrade or a priced first pack;
// everything else can be applied immediately.
func Compare(currentPack *models.Pack, newPack *models.Pack, currentSub *models.UserSubscription, now time.Time) *Comparison {
	cmp := &Comparison{
		CurrentPack: currentPack,
		NewPack:     newPack,
	}

	switch {
	case currentPack == nil:
		cmp.ChangeType = types.PackChangeTypeFirstPack
		cmp.PriceDifference = newPack.Price
	case newPack.Price > currentPack.Price:
		cmp.ChangeType = types.PackChangeTypeUpgrade
		cmp.PriceDifference = newPack.Price - currentPack.Price
	case newPack.Price < currentPack.Price:
		cmp.ChangeType = types.PackChangeTypeDowngrade
		cmp.PriceDifference = newPack.Price - currentPack.Price
	default:
		cmp.ChangeType = types.PackChangeTypeSamePrice
	}

	cmp.RequiresPayment = cmp.ChangeType == types.PackChangeTypeUpgrade ||
		(cmp.ChangeType == types.PackChangeTypeFirstPack && newPack.Price > 0)
	cmp.CanChangeImmediately = !cmp.RequiresPayment

	if currentSub != nil && currentPack != nil && currentPack.Price > 0 && !currentSub.StartedAt.IsZero() {
		cmp.Proration = ComputeProration(currentPack.Price, currentSub.StartedAt, now)
	}

	cmp.ActionDescription = describeAction(cmp)
	if cmp.RequiresPayment {
		cmp.RecommendedAction = RecommendedActionCheckout
	} else {
		cmp.RecommendedAction = RecommendedActionImmediate
	}

	return cmp
}

func describeAction(cmp *Comparison) string {
	switch cmp.ChangeType {
	case types.PackChangeTypeFirstPack:
		if cmp.NewPack.Price == 0 {
			return fmt.Sprintf("Activate %s at no charge", cmp.NewPack.Name)
		}
		return fmt.Sprintf("Subscribe to %s for %d %s/month", cmp.NewPack.Name, cmp.NewPack.Price, cmp.NewPack.Currency)
	case types.PackChangeTypeUpgrade:
		return fmt.Sprintf("Upgrade from %s to %s for an additional %d %s/month",
			cmp.CurrentPack.Name, cmp.NewPack.Name, cmp.PriceDifference, cmp.NewPack.Currency)
	case types.PackChangeTypeDowngrade:
		desc := fmt.Sprintf("Downgrade from %s to %s", cmp.CurrentPack.Name, cmp.NewPack.Name)
		if cmp.Proration != nil && cmp.Proration.CreditAmount > 0 {
			desc = fmt.Sprintf("%s with a %d %s credit for unused time", desc, cmp.Proration.CreditAmount, cmp.CurrentPack.Currency)
		}
		return desc
	default:
		return fmt.Sprintf("Switch from %s to %s at the same price", cmp.CurrentPack.Name, cmp.NewPack.Name)
	}
}
