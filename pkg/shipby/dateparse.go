package shipby

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateTemplate is a compiled delivery date format. The template tokens
// YYYY, MM and DD become capture groups; every other rune is matched
// literally, and the whole pattern is anchored.
type dateTemplate struct {
	re     *regexp.Regexp
	tokens []string // capture group order, e.g. ["YYYY", "MM", "DD"]
}

var templateTokens = map[string]string{
	"YYYY": `(\d{4})`,
	"MM":   `(\d{1,2})`,
	"DD":   `(\d{1,2})`,
}

func compileDateTemplate(format string) (*dateTemplate, error) {
	var (
		pattern strings.Builder
		tokens  []string
		literal strings.Builder
	)
	pattern.WriteString(`^`)
	flush := func() {
		if literal.Len() > 0 {
			pattern.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}

	for i := 0; i < len(format); {
		matched := false
		for _, tok := range []string{"YYYY", "MM", "DD"} {
			if strings.HasPrefix(format[i:], tok) {
				flush()
				pattern.WriteString(templateTokens[tok])
				tokens = append(tokens, tok)
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			literal.WriteByte(format[i])
			i++
		}
	}
	flush()
	pattern.WriteString(`$`)

	seen := make(map[string]int, 3)
	for _, tok := range tokens {
		seen[tok]++
	}
	for _, tok := range []string{"YYYY", "MM", "DD"} {
		if seen[tok] != 1 {
			return nil, newError(KindInvalidDeliveryFormat,
				"date format %q must contain the %s token exactly once", format, tok)
		}
	}

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, newError(KindInvalidDeliveryFormat,
			"date format %q is not usable", format).WithCause(err)
	}
	return &dateTemplate{re: re, tokens: tokens}, nil
}

// parse matches raw against the template and validates that the numeric
// components form a real calendar date. time.Date normalizes overflow
// (Feb 30 becomes Mar 2), so the components must round-trip exactly.
func (t *dateTemplate) parse(raw string) (time.Time, error) {
	m := t.re.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, newError(KindInvalidDeliveryFormat,
			"delivery value %q does not match the configured date format", raw)
	}

	var year, month, day int
	for i, tok := range t.tokens {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, newError(KindInvalidDeliveryFormat,
				"delivery value %q has a non-numeric date component", raw).WithCause(err)
		}
		switch tok {
		case "YYYY":
			year = n
		case "MM":
			month = n
		case "DD":
			day = n
		}
	}

	date := NewDate(year, time.Month(month), day)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, newError(KindInvalidDeliveryFormat,
			"delivery value %q is not a valid calendar date", raw)
	}
	return date, nil
}

// parseDeliveryDate extracts the customer-requested delivery date from the
// order using the shop's configured source, key and format.
func parseDeliveryDate(order *Order, setting *ShopSetting) (time.Time, error) {
	if setting.Source == "" || setting.DeliveryKey == "" {
		return time.Time{}, newError(KindMissingSetting,
			"delivery date source or key is not configured")
	}

	raw, err := deliveryValue(order, setting)
	if err != nil {
		return time.Time{}, err
	}

	format := setting.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}
	tmpl, err := compileDateTemplate(format)
	if err != nil {
		return time.Time{}, err
	}
	return tmpl.parse(raw)
}

func deliveryValue(order *Order, setting *ShopSetting) (string, error) {
	switch setting.Source {
	case SourceMetafield:
		namespace, key, ok := strings.Cut(setting.DeliveryKey, ".")
		if !ok || namespace == "" || key == "" {
			return "", newError(KindMissingSetting,
				"metafield delivery key %q must be namespace.key", setting.DeliveryKey)
		}
		for _, m := range order.Metafields {
			if m.Namespace == namespace && m.Key == key {
				return m.Value, nil
			}
		}
		return "", newError(KindDeliveryValueNotFound,
			"order %s has no metafield %s", order.ID, setting.DeliveryKey)

	case SourceAttributes:
		for _, a := range order.Attributes {
			if a.Name == setting.DeliveryKey {
				return a.Value, nil
			}
		}
		return "", newError(KindDeliveryValueNotFound,
			"order %s has no attribute %q", order.ID, setting.DeliveryKey)

	default:
		return "", newError(KindMissingSetting,
			"unknown delivery date source %q", setting.Source)
	}
}
