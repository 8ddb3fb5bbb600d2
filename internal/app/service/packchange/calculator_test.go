package packchange

import (
	"testing"
	"time"

	models "github.com/yelenbi/packbilling/internal/models"
	types "github.com/yelenbi/packbilling/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pack(id string, price int64) *models.Pack {
	return &models.Pack{ID: id, Name: "Pack " + id, Price: price, Currency: "XOF", BillingPeriod: types.BillingPeriodMonthly, IsActive: true}
}

// April 10 to May 10 is exactly 30 days, matching the monthly cycle
// the pricing assumes.
var cycleStart = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

func TestCompare_Classification(t *testing.T) {
	tests := []struct {
		name         string
		current      *models.Pack
		newPack      *models.Pack
		wantType     types.PackChangeType
		wantPayment  bool
		wantDiff     int64
	}{
		{"no current pack, free target", nil, pack("a", 0), types.PackChangeTypeFirstPack, false, 0},
		{"no current pack, paid target", nil, pack("c", 10000), types.PackChangeTypeFirstPack, true, 10000},
		{"upgrade", pack("a", 5000), pack("b", 10000), types.PackChangeTypeUpgrade, true, 5000},
		{"downgrade to free", pack("b", 5000), pack("a", 0), types.PackChangeTypeDowngrade, false, -5000},
		{"downgrade paid to paid", pack("b", 10000), pack("a", 5000), types.PackChangeTypeDowngrade, false, -5000},
		{"same price different pack", pack("a", 5000), pack("b", 5000), types.PackChangeTypeSamePrice, false, 0},
		{"free to free lateral", pack("a", 0), pack("b", 0), types.PackChangeTypeSamePrice, false, 0},
		{"free to paid is upgrade", pack("a", 0), pack("b", 5000), types.PackChangeTypeUpgrade, true, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := Compare(tt.current, tt.newPack, nil, time.Now())
			assert.Equal(t, tt.wantType, cmp.ChangeType)
			assert.Equal(t, tt.wantPayment, cmp.RequiresPayment)
			assert.Equal(t, !tt.wantPayment, cmp.CanChangeImmediately)
			assert.Equal(t, tt.wantDiff, cmp.PriceDifference)
			assert.NotEmpty(t, cmp.ActionDescription)
			assert.NotEmpty(t, cmp.RecommendedAction)
		})
	}
}

// Every (currentPrice, newPrice) combination yields exactly one class,
// and payment is required only for upgrades and priced first packs.
func TestCompare_Totality(t *testing.T) {
	prices := []int64{0, 1, 5000, 10000}
	classes := map[types.PackChangeType]bool{
		types.PackChangeTypeFirstPack: true,
		types.PackChangeTypeUpgrade:   true,
		types.PackChangeTypeDowngrade: true,
		types.PackChangeTypeSamePrice: true,
	}

	for _, np := range prices {
		cmp := Compare(nil, pack("n", np), nil, time.Now())
		assert.Equal(t, types.PackChangeTypeFirstPack, cmp.ChangeType)
		assert.Equal(t, np > 0, cmp.RequiresPayment)
	}
	for _, cp := range prices {
		for _, np := range prices {
			cmp := Compare(pack("c", cp), pack("n", np), nil, time.Now())
			require.True(t, classes[cmp.ChangeType], "class %q for %d->%d", cmp.ChangeType, cp, np)
			assert.NotEqual(t, types.PackChangeTypeFirstPack, cmp.ChangeType)
			assert.Equal(t, cmp.ChangeType == types.PackChangeTypeUpgrade, cmp.RequiresPayment, "%d->%d", cp, np)
			assert.Equal(t, !cmp.RequiresPayment, cmp.CanChangeImmediately)
		}
	}
}

func TestComputeProration_DowngradeScenario(t *testing.T) {
	// 5000/mo, 10 days in: 20 of 30 days remaining.
	now := cycleStart.Add(10 * 24 * time.Hour)
	pr := ComputeProration(5000, cycleStart, now)

	assert.Equal(t, 30, pr.TotalDays)
	assert.Equal(t, 10, pr.DaysUsed)
	assert.Equal(t, 20, pr.DaysRemaining)
	assert.Equal(t, int64(3333), pr.CreditAmount)
}

func TestComputeProration_CancellationScenario(t *testing.T) {
	// 15000/mo, 5 days in: 25 of 30 days remaining.
	now := cycleStart.Add(5 * 24 * time.Hour)
	pr := ComputeProration(15000, cycleStart, now)

	assert.Equal(t, 5, pr.DaysUsed)
	assert.Equal(t, 25, pr.DaysRemaining)
	assert.Equal(t, int64(12500), pr.CreditAmount)
}

func TestComputeProration_PartialDayRoundsUp(t *testing.T) {
	now := cycleStart.Add(10*24*time.Hour + time.Hour)
	pr := ComputeProration(5000, cycleStart, now)

	assert.Equal(t, 11, pr.DaysUsed)
	assert.Equal(t, 19, pr.DaysRemaining)
	assert.Equal(t, int64(3166), pr.CreditAmount)
}

// Credit only shrinks as time passes, never exceeds the monthly price,
// and reaches 0 at or after the cycle end.
func TestComputeProration_Monotonic(t *testing.T) {
	price := int64(5000)
	prev := price + 1
	for h := 0; h <= 35*24; h += 6 {
		now := cycleStart.Add(time.Duration(h) * time.Hour)
		pr := ComputeProration(price, cycleStart, now)

		require.LessOrEqual(t, pr.CreditAmount, prev, "at hour %d", h)
		require.LessOrEqual(t, pr.CreditAmount, price)
		require.GreaterOrEqual(t, pr.CreditAmount, int64(0))
		prev = pr.CreditAmount
	}

	atEnd := ComputeProration(price, cycleStart, cycleStart.AddDate(0, 1, 0))
	assert.Equal(t, int64(0), atEnd.CreditAmount)
	after := ComputeProration(price, cycleStart, cycleStart.AddDate(0, 2, 0))
	assert.Equal(t, int64(0), after.CreditAmount)
}

func TestComputeProration_ClockBeforeStart(t *testing.T) {
	pr := ComputeProration(5000, cycleStart, cycleStart.Add(-time.Hour))
	assert.Equal(t, 0, pr.DaysUsed)
	assert.Equal(t, int64(5000), pr.CreditAmount)
}

func TestCompare_ProrationOnlyForPaidCurrentPack(t *testing.T) {
	sub := &models.UserSubscription{StartedAt: cycleStart, Status: types.SubscriptionStatusActive}
	now := cycleStart.Add(10 * 24 * time.Hour)

	withPaid := Compare(pack("b", 5000), pack("a", 0), sub, now)
	require.NotNil(t, withPaid.Proration)
	assert.Equal(t, int64(3333), withPaid.Proration.CreditAmount)

	withFree := Compare(pack("a", 0), pack("b", 0), sub, now)
	assert.Nil(t, withFree.Proration)

	noSub := Compare(pack("b", 5000), pack("a", 0), nil, now)
	assert.Nil(t, noSub.Proration)
}

func TestCompare_UpgradeKeepsAdvisoryCredit(t *testing.T) {
	sub := &models.UserSubscription{StartedAt: cycleStart, Status: types.SubscriptionStatusActive}
	now := cycleStart.Add(10 * 24 * time.Hour)

	cmp := Compare(pack("b", 5000), pack("c", 10000), sub, now)
	assert.Equal(t, types.PackChangeTypeUpgrade, cmp.ChangeType)
	assert.True(t, cmp.RequiresPayment)
	require.NotNil(t, cmp.Proration)
	assert.Equal(t, int64(3333), cmp.Proration.CreditAmount)
}
