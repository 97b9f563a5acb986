package shipby

// matchOutcome carries the adopted lead time and every rule tied for it.
type matchOutcome struct {
	Days    int
	RuleIDs []string
}

// tierPredicate reports whether a rule matches one specificity tier.
type tierPredicate func(*Rule) bool

// matchTiers walks the tiers most specific first. The first tier with at
// least one matching rule wins outright; tiers are never mixed. Within the
// winning tier the maximum days value is adopted and every rule sharing it
// is reported, in rule input order.
func matchTiers(rules []Rule, tiers []tierPredicate) (*matchOutcome, bool) {
	for _, tier := range tiers {
		var matched []*Rule
		for i := range rules {
			if tier(&rules[i]) {
				matched = append(matched, &rules[i])
			}
		}
		if len(matched) == 0 {
			continue
		}

		adopt := 0
		for _, r := range matched {
			if r.Days > adopt {
				adopt = r.Days
			}
		}
		ids := make([]string, 0, len(matched))
		for _, r := range matched {
			if r.Days == adopt {
				ids = append(ids, r.ID)
			}
		}
		return &matchOutcome{Days: adopt, RuleIDs: ids}, true
	}
	return nil, false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// matchRateRules selects the adopted lead time in the rate-based mode.
// Tier order, most specific first:
//  1. product rules constrained to the resolved rate
//  2. product rules with no rate constraint
//  3. all-products rules constrained to the resolved rate
//  4. all-products rules with no rate constraint
//
// This ordering is load-bearing: downstream systems depend on a rate-scoped
// product rule beating an unscoped product rule regardless of days values.
func matchRateRules(rules []Rule, shippingID string, productIDs []string) (*matchOutcome, error) {
	products := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		products[id] = true
	}

	targetsProduct := func(r *Rule) bool {
		if r.Target != TargetProduct {
			return false
		}
		for _, id := range r.ProductIDs {
			if products[id] {
				return true
			}
		}
		return false
	}
	hasRate := func(r *Rule) bool {
		return containsString(r.ShippingRateIDs, shippingID)
	}

	tiers := []tierPredicate{
		func(r *Rule) bool { return targetsProduct(r) && len(r.ShippingRateIDs) > 0 && hasRate(r) },
		func(r *Rule) bool { return targetsProduct(r) && len(r.ShippingRateIDs) == 0 },
		func(r *Rule) bool { return r.targetsAllProducts() && len(r.ShippingRateIDs) > 0 && hasRate(r) },
		func(r *Rule) bool { return r.targetsAllProducts() && len(r.ShippingRateIDs) == 0 },
	}

	outcome, ok := matchTiers(rules, tiers)
	if !ok {
		return nil, newError(KindNoRule, "no lead-time rule matches shipping rate %q", shippingID)
	}
	return outcome, nil
}

// matchMethodRules selects the adopted lead time in the method/prefecture
// mode. Every tier additionally requires the rule to be enabled and, when
// the rule declares a prefecture list, the resolved prefecture to be a
// member. Tier order: product rules, then shipping_method rules naming the
// resolved method, then all-products rules.
func matchMethodRules(rules []Rule, methodKey string, productIDs []string, prefecture string) (*matchOutcome, error) {
	products := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		products[id] = true
	}

	eligible := func(r *Rule) bool {
		if !r.Enabled {
			return false
		}
		if len(r.Prefectures) == 0 {
			return true
		}
		for _, p := range r.Prefectures {
			if normalizeIdentifier(p) == prefecture {
				return true
			}
		}
		return false
	}
	targetsProduct := func(r *Rule) bool {
		if r.Target != TargetProduct {
			return false
		}
		for _, id := range r.ProductIDs {
			if products[id] {
				return true
			}
		}
		return false
	}

	tiers := []tierPredicate{
		func(r *Rule) bool { return eligible(r) && targetsProduct(r) },
		func(r *Rule) bool {
			return eligible(r) && r.Target == TargetShippingMethod &&
				containsString(r.ShippingMethods, methodKey)
		},
		func(r *Rule) bool { return eligible(r) && r.targetsAllProducts() },
	}

	outcome, ok := matchTiers(rules, tiers)
	if !ok {
		return nil, newError(KindNoRule, "no lead-time rule matches shipping method %q", methodKey)
	}
	return outcome, nil
}
