package shipby_test

import (
	"testing"
	"time"

	"github.com/ordermesh/shipby/pkg/shipby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *shipby.Order {
	return &shipby.Order{
		ID: "1001",
		Metafields: []shipby.Metafield{
			{Namespace: "custom", Key: "delivery_date", Value: "2025-05-10"},
		},
		ShippingLines: []shipby.ShippingLine{
			{RateHandle: "yamato-cool", Title: "Yamato Cool"},
		},
		LineItems: []shipby.LineItem{{ProductID: "111"}},
	}
}

func testSetting() *shipby.ShopSetting {
	return &shipby.ShopSetting{
		Source:      shipby.SourceMetafield,
		DeliveryKey: "custom.delivery_date",
		DateFormat:  "YYYY-MM-DD",
		ShippingRates: []shipby.ShippingRate{
			{ID: "sr_yamato_cool", Handle: "yamato-cool", Title: "Yamato Cool"},
		},
	}
}

func TestCalculate_AdoptsMostSpecificRule(t *testing.T) {
	rules := []shipby.Rule{
		{ID: "all", Target: shipby.TargetAll, Days: 1},
		{ID: "product111", Target: shipby.TargetProduct, ProductIDs: []string{"111"}, Days: 2},
		{ID: "product-with-rate", Target: shipby.TargetProduct, ProductIDs: []string{"111"},
			ShippingRateIDs: []string{"sr_yamato_cool"}, Days: 3},
	}

	result, err := shipby.Calculate(testOrder(), rules, testSetting(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.AdoptDays)
	assert.Equal(t, []string{"product-with-rate"}, result.MatchedRuleIDs)
	assert.Equal(t, "sr_yamato_cool", result.ShippingID)
	assert.Equal(t, shipby.NewDate(2025, time.May, 10), result.DeliveryDate)
	assert.Equal(t, shipby.NewDate(2025, time.May, 7), result.ShipBy)
	assert.Equal(t, result.Candidate, result.ShipBy, "no holidays, no adjustment")
}

func TestCalculate_HolidayAdjustment(t *testing.T) {
	order := testOrder()
	order.Metafields[0].Value = "2025-05-05"
	rules := []shipby.Rule{
		{ID: "all", Target: shipby.TargetAll, Days: 1},
	}
	holidays := &shipby.HolidayConfig{
		Dates:    map[string]bool{"2025-05-03": true},
		Weekdays: map[string]bool{"sun": true},
	}

	result, err := shipby.Calculate(order, rules, testSetting(), holidays)
	require.NoError(t, err)
	assert.Equal(t, shipby.NewDate(2025, time.May, 4), result.Candidate)
	assert.Equal(t, shipby.NewDate(2025, time.May, 2), result.ShipBy)
}

func TestCalculate_FallbackWhenNoRuleMatches(t *testing.T) {
	setting := testSetting()
	setting.FallbackDays = 2

	result, err := shipby.Calculate(testOrder(), nil, setting, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AdoptDays)
	assert.Empty(t, result.MatchedRuleIDs)
	assert.NotNil(t, result.MatchedRuleIDs)
	assert.Equal(t, shipby.NewDate(2025, time.May, 8), result.ShipBy)
}

func TestCalculate_NoRuleWithoutFallback(t *testing.T) {
	_, err := shipby.Calculate(testOrder(), nil, testSetting(), nil)
	assert.Equal(t, shipby.KindNoRule, shipby.KindOf(err))
}

func TestCalculate_InvalidDeliveryFormat(t *testing.T) {
	order := testOrder()
	order.Metafields[0].Value = "05/10/2025"

	_, err := shipby.Calculate(order, nil, testSetting(), nil)
	assert.Equal(t, shipby.KindInvalidDeliveryFormat, shipby.KindOf(err))
}

func TestCalculate_ShortCircuitsBeforeMatching(t *testing.T) {
	// A failing date parse surfaces even when rule matching would also fail.
	order := testOrder()
	order.Metafields = nil

	_, err := shipby.Calculate(order, nil, testSetting(), nil)
	assert.Equal(t, shipby.KindDeliveryValueNotFound, shipby.KindOf(err))
}

func TestCalculate_MethodMode(t *testing.T) {
	order := testOrder()
	order.ShippingLines = []shipby.ShippingLine{{Code: "yamato_cool"}}
	order.ShippingAddress = &shipby.Address{ProvinceCode: "Tokyo"}

	setting := &shipby.ShopSetting{
		Source:      shipby.SourceMetafield,
		DeliveryKey: "custom.delivery_date",
		Methods: map[string]shipby.MethodSetting{
			"yamato_cool": {Title: "Yamato Cool", Enabled: true},
		},
	}
	rules := []shipby.Rule{
		{ID: "tokyo-method", Target: shipby.TargetShippingMethod,
			ShippingMethods: []string{"yamato_cool"}, Prefectures: []string{"tokyo"},
			Days: 2, Enabled: true},
	}

	result, err := shipby.Calculate(order, rules, setting, nil)
	require.NoError(t, err)
	assert.Equal(t, "yamato_cool", result.ShippingID)
	assert.Equal(t, 2, result.AdoptDays)
	assert.Equal(t, shipby.NewDate(2025, time.May, 8), result.ShipBy)
}

func TestCalculate_MethodMode_PrefectureMissing(t *testing.T) {
	order := testOrder()
	order.ShippingLines = []shipby.ShippingLine{{Code: "yamato_cool"}}

	setting := &shipby.ShopSetting{
		Source:      shipby.SourceMetafield,
		DeliveryKey: "custom.delivery_date",
		Methods: map[string]shipby.MethodSetting{
			"yamato_cool": {Title: "Yamato Cool", Enabled: true},
		},
	}

	_, err := shipby.Calculate(order, nil, setting, nil)
	assert.Equal(t, shipby.KindPrefectureMissing, shipby.KindOf(err))
}

func TestCalculate_MethodMode_Disabled(t *testing.T) {
	order := testOrder()
	order.ShippingLines = []shipby.ShippingLine{{Code: "yamato_cool"}}
	order.ShippingAddress = &shipby.Address{ProvinceCode: "tokyo"}

	setting := &shipby.ShopSetting{
		Source:      shipby.SourceMetafield,
		DeliveryKey: "custom.delivery_date",
		Methods: map[string]shipby.MethodSetting{
			"yamato_cool": {Title: "Yamato Cool", Enabled: false},
		},
	}

	_, err := shipby.Calculate(order, nil, setting, nil)
	assert.Equal(t, shipby.KindShippingMethodDisabled, shipby.KindOf(err))
}

func TestCalculate_Idempotent(t *testing.T) {
	rules := []shipby.Rule{
		{ID: "all", Target: shipby.TargetAll, Days: 3},
	}
	holidays := &shipby.HolidayConfig{Weekdays: map[string]bool{"sun": true}}

	first, err := shipby.Calculate(testOrder(), rules, testSetting(), holidays)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := shipby.Calculate(testOrder(), rules, testSetting(), holidays)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
