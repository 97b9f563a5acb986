package shipby

import (
	"strings"
	"unicode"
)

// normalizeIdentifier canonicalizes a shipping identifier candidate:
// trim, lower-case, and collapse runs of whitespace and hyphens into a
// single underscore, so "Yamato Cool", "yamato-cool" and "yamato_cool"
// all resolve to the same key.
func normalizeIdentifier(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// lineCandidateExtractors probe one shipping line for identifier
// candidates, most explicit field first. Historical order payloads spell
// the rate identifier in several places, so the list is centralized here
// and each shape is tested independently.
var lineCandidateExtractors = []func(ShippingLine) string{
	func(l ShippingLine) string { return l.RateHandle },
	func(l ShippingLine) string { return l.Code },
	func(l ShippingLine) string { return l.DeliveryCategory },
	func(l ShippingLine) string { return l.Title },
	func(l ShippingLine) string { return l.ID },
}

// shippingCandidates gathers identifier candidates from the order in
// priority order: shipping line fields, then metafield values, then
// attribute values.
func shippingCandidates(order *Order) []string {
	var out []string
	for _, line := range order.ShippingLines {
		for _, extract := range lineCandidateExtractors {
			if v := extract(line); v != "" {
				out = append(out, v)
			}
		}
	}
	for _, m := range order.Metafields {
		if m.Value != "" {
			out = append(out, m.Value)
		}
	}
	for _, a := range order.Attributes {
		if a.Value != "" {
			out = append(out, a.Value)
		}
	}
	return out
}

// resolveShippingRate determines which configured shipping rate the order
// used (rate-based mode). The first candidate whose normalized form matches
// a descriptor's id, handle or title wins.
func resolveShippingRate(order *Order, setting *ShopSetting) (string, error) {
	if len(setting.ShippingRates) == 0 {
		return "", newError(KindShippingRateNotConfigured,
			"no shipping rates are configured")
	}

	lookup := make(map[string]string, len(setting.ShippingRates)*3)
	for _, rate := range setting.ShippingRates {
		for _, alias := range []string{rate.ID, rate.Handle, rate.Title} {
			if key := normalizeIdentifier(alias); key != "" {
				if _, exists := lookup[key]; !exists {
					lookup[key] = rate.ID
				}
			}
		}
	}

	for _, candidate := range shippingCandidates(order) {
		if id, ok := lookup[normalizeIdentifier(candidate)]; ok {
			return id, nil
		}
	}
	return "", newError(KindShippingRateNotFound,
		"order %s matches none of the %d configured shipping rates",
		order.ID, len(setting.ShippingRates))
}

// resolveShippingMethod determines which configured shipping method the
// order used (method-based mode) and enforces the method's enablement
// state independent of rule matching.
func resolveShippingMethod(order *Order, setting *ShopSetting) (string, error) {
	if len(setting.Methods) == 0 {
		return "", newError(KindShippingMethodNotConfigured,
			"no shipping methods are configured")
	}

	lookup := make(map[string]string, len(setting.Methods)*2)
	for key, method := range setting.Methods {
		if k := normalizeIdentifier(key); k != "" {
			lookup[k] = key
		}
		if t := normalizeIdentifier(method.Title); t != "" {
			if _, exists := lookup[t]; !exists {
				lookup[t] = key
			}
		}
	}

	for _, candidate := range shippingCandidates(order) {
		key, ok := lookup[normalizeIdentifier(candidate)]
		if !ok {
			continue
		}
		if !setting.Methods[key].Enabled {
			return "", newError(KindShippingMethodDisabled,
				"shipping method %q is disabled", key)
		}
		return key, nil
	}
	return "", newError(KindShippingMethodNotFound,
		"order %s matches none of the %d configured shipping methods",
		order.ID, len(setting.Methods))
}

// resolvePrefecture yields the normalized prefecture code of the order's
// shipping address (method-based mode only).
func resolvePrefecture(order *Order) (string, error) {
	if order.ShippingAddress != nil {
		if code := normalizeIdentifier(order.ShippingAddress.ProvinceCode); code != "" {
			return code, nil
		}
	}
	return "", newError(KindPrefectureMissing,
		"order %s has no resolvable prefecture", order.ID)
}
