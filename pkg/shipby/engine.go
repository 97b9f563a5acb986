// Package shipby computes the latest date an order may leave the warehouse
// and still arrive by the customer-requested delivery date. The engine is
// pure: it performs no I/O, reads only the snapshots it is handed, and
// value-returns every failure as a typed *Error.
package shipby

// Calculate computes the ship-by date for one order. The pipeline is
// linear and short-circuits on the first failure: parse the requested
// delivery date, resolve the shipping identifier (and prefecture in the
// method-based mode), match lead-time rules, subtract the adopted lead
// time, then walk backward over holidays.
//
// A no_rule failure is the one recoverable case: when the setting carries
// a positive fallback lead time it is adopted with an empty matched-rule
// list instead of failing.
func Calculate(order *Order, rules []Rule, setting *ShopSetting, holidays *HolidayConfig) (*Result, error) {
	deliveryDate, err := parseDeliveryDate(order, setting)
	if err != nil {
		return nil, err
	}

	var (
		shippingID string
		outcome    *matchOutcome
	)
	if setting.MethodBased() {
		shippingID, err = resolveShippingMethod(order, setting)
		if err != nil {
			return nil, err
		}
		var prefecture string
		prefecture, err = resolvePrefecture(order)
		if err != nil {
			return nil, err
		}
		outcome, err = matchMethodRules(rules, shippingID, order.ProductIDs(), prefecture)
	} else {
		shippingID, err = resolveShippingRate(order, setting)
		if err != nil {
			return nil, err
		}
		outcome, err = matchRateRules(rules, shippingID, order.ProductIDs())
	}
	if err != nil {
		outcome, err = fallbackOutcome(err, setting)
		if err != nil {
			return nil, err
		}
	}

	candidate := deliveryDate.AddDate(0, 0, -outcome.Days)
	shipBy, err := adjustForHolidays(candidate, holidays)
	if err != nil {
		return nil, err
	}

	return &Result{
		ShipBy:         shipBy,
		DeliveryDate:   deliveryDate,
		Candidate:      candidate,
		AdoptDays:      outcome.Days,
		ShippingID:     shippingID,
		MatchedRuleIDs: outcome.RuleIDs,
	}, nil
}

// fallbackOutcome substitutes the configured fallback lead time for a
// no_rule failure. Any other failure, or no_rule without a positive
// fallback, passes through.
func fallbackOutcome(err error, setting *ShopSetting) (*matchOutcome, error) {
	if KindOf(err) == KindNoRule && setting.FallbackDays > 0 {
		return &matchOutcome{Days: setting.FallbackDays, RuleIDs: []string{}}, nil
	}
	return nil, err
}
