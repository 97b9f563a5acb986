// Package ruleset loads the merchant configuration snapshot the engine
// consumes: shop setting, lead-time rules, and holiday configuration.
// The snapshot lives in one YAML document; loading deduplicates rule to
// shipping-rate associations and materializes serialized product-id lists
// into the shape the matcher expects.
package ruleset

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ordermesh/shipby/pkg/shipby"
	"gopkg.in/yaml.v3"
)

// Snapshot is a fully validated, read-only configuration snapshot.
type Snapshot struct {
	Setting  *shipby.ShopSetting
	Rules    []shipby.Rule
	Holidays *shipby.HolidayConfig
}

type document struct {
	Setting  settingDoc  `yaml:"setting"`
	Rules    []ruleDoc   `yaml:"rules"`
	Holidays holidaysDoc `yaml:"holidays"`
}

type settingDoc struct {
	Source       string `yaml:"source"`
	DeliveryKey  string `yaml:"delivery_key"`
	DateFormat   string `yaml:"date_format"`
	FallbackDays int    `yaml:"fallback_days"`

	ShippingRates []rateDoc            `yaml:"shipping_rates"`
	Methods       map[string]methodDoc `yaml:"shipping_methods"`
}

type rateDoc struct {
	ID     string `yaml:"id"`
	Handle string `yaml:"handle"`
	Title  string `yaml:"title"`
	Zone   string `yaml:"zone"`
}

type methodDoc struct {
	Title   string `yaml:"title"`
	Enabled bool   `yaml:"enabled"`
}

type ruleDoc struct {
	ID              string   `yaml:"id"`
	Target          string   `yaml:"target"`
	ProductIDs      string   `yaml:"product_ids"` // comma-joined id list
	ShippingRateIDs []string `yaml:"shipping_rate_ids"`
	ShippingMethods []string `yaml:"shipping_methods"`
	Prefectures     []string `yaml:"prefectures"`
	Days            int      `yaml:"days"`
	Enabled         *bool    `yaml:"enabled"` // defaults to true when omitted
}

type holidaysDoc struct {
	Dates    []string `yaml:"dates"`
	Weekdays []string `yaml:"weekdays"`
}

// Load reads and validates a snapshot from a YAML file.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
	}
	snap, err := LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return snap, nil
}

// LoadBytes parses and validates a snapshot from raw YAML.
func LoadBytes(raw []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	setting, err := buildSetting(doc.Setting)
	if err != nil {
		return nil, err
	}

	rules := make([]shipby.Rule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		rule, err := buildRule(rd)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rd.ID, err)
		}
		rules = append(rules, rule)
	}

	holidays, err := buildHolidays(doc.Holidays)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Setting: setting, Rules: rules, Holidays: holidays}, nil
}

func buildSetting(doc settingDoc) (*shipby.ShopSetting, error) {
	switch doc.Source {
	case "", string(shipby.SourceMetafield), string(shipby.SourceAttributes):
	default:
		return nil, fmt.Errorf("unknown delivery date source %q", doc.Source)
	}

	setting := &shipby.ShopSetting{
		Source:       shipby.DeliverySource(doc.Source),
		DeliveryKey:  doc.DeliveryKey,
		DateFormat:   doc.DateFormat,
		FallbackDays: doc.FallbackDays,
	}
	if doc.FallbackDays < 0 {
		return nil, fmt.Errorf("fallback_days must not be negative, got %d", doc.FallbackDays)
	}

	for _, rate := range doc.ShippingRates {
		if rate.ID == "" {
			return nil, fmt.Errorf("shipping rate with handle %q has no id", rate.Handle)
		}
		setting.ShippingRates = append(setting.ShippingRates, shipby.ShippingRate{
			ID:     rate.ID,
			Handle: rate.Handle,
			Title:  rate.Title,
			Zone:   rate.Zone,
		})
	}

	if len(doc.Methods) > 0 {
		if len(doc.ShippingRates) > 0 {
			return nil, fmt.Errorf("shipping_rates and shipping_methods are mutually exclusive")
		}
		setting.Methods = make(map[string]shipby.MethodSetting, len(doc.Methods))
		for key, m := range doc.Methods {
			setting.Methods[key] = shipby.MethodSetting{Title: m.Title, Enabled: m.Enabled}
		}
	}
	return setting, nil
}

var knownTargets = map[string]shipby.TargetKind{
	string(shipby.TargetAll):            shipby.TargetAll,
	string(shipby.TargetAllProducts):    shipby.TargetAllProducts,
	string(shipby.TargetProduct):        shipby.TargetProduct,
	string(shipby.TargetShippingMethod): shipby.TargetShippingMethod,
}

func buildRule(doc ruleDoc) (shipby.Rule, error) {
	var rule shipby.Rule
	if doc.ID == "" {
		return rule, fmt.Errorf("missing id")
	}
	target, ok := knownTargets[doc.Target]
	if !ok {
		return rule, fmt.Errorf("unknown target kind %q", doc.Target)
	}
	if doc.Days <= 0 {
		return rule, fmt.Errorf("days must be positive, got %d", doc.Days)
	}

	enabled := true
	if doc.Enabled != nil {
		enabled = *doc.Enabled
	}

	return shipby.Rule{
		ID:              doc.ID,
		Target:          target,
		ProductIDs:      splitIDList(doc.ProductIDs),
		ShippingRateIDs: dedupe(doc.ShippingRateIDs),
		ShippingMethods: dedupe(doc.ShippingMethods),
		Prefectures:     dedupe(doc.Prefectures),
		Days:            doc.Days,
		Enabled:         enabled,
	}, nil
}

var knownWeekdays = map[string]bool{
	"sun": true, "mon": true, "tue": true, "wed": true,
	"thu": true, "fri": true, "sat": true,
}

func buildHolidays(doc holidaysDoc) (*shipby.HolidayConfig, error) {
	cfg := &shipby.HolidayConfig{
		Dates:    make(map[string]bool, len(doc.Dates)),
		Weekdays: make(map[string]bool, len(doc.Weekdays)),
	}
	for _, d := range doc.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("holiday date %q is not ISO YYYY-MM-DD: %w", d, err)
		}
		cfg.Dates[d] = true
	}
	for _, w := range doc.Weekdays {
		code := strings.ToLower(strings.TrimSpace(w))
		if !knownWeekdays[code] {
			return nil, fmt.Errorf("unknown weekday code %q", w)
		}
		cfg.Weekdays[code] = true
	}
	return cfg, nil
}

// splitIDList materializes a serialized comma-joined product-id list.
func splitIDList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return dedupe(out)
}

// dedupe drops repeated association records, preserving first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
