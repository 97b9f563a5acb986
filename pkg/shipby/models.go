package shipby

import (
	"time"
)

// DeliverySource selects where the requested delivery date is read from.
type DeliverySource string

const (
	SourceMetafield  DeliverySource = "metafield"
	SourceAttributes DeliverySource = "attributes"
)

// DefaultDateFormat is used when a shop has no delivery date format configured.
const DefaultDateFormat = "YYYY-MM-DD"

// TargetKind states which orders a rule governs.
type TargetKind string

const (
	TargetAll            TargetKind = "all"
	TargetAllProducts    TargetKind = "all_products"
	TargetProduct        TargetKind = "product"
	TargetShippingMethod TargetKind = "shipping_method"
)

// Attribute is one free-form key/value pair attached to an order.
// Numeric attribute values are stringified by the order adapter before
// they reach the engine.
type Attribute struct {
	Name  string
	Value string
}

// Metafield is one namespaced metafield entry on an order. Only
// string-valued metafields are visible to the engine.
type Metafield struct {
	Namespace string
	Key       string
	Value     string
}

// ShippingLine describes one shipping line on an order. All identifier
// fields are optional; the resolver probes them in priority order.
type ShippingLine struct {
	ID               string
	Code             string
	Title            string
	RateHandle       string
	DeliveryCategory string
}

// LineItem exposes the product an order line refers to.
type LineItem struct {
	ProductID string
}

// Address is the subset of a shipping address the engine reads.
type Address struct {
	ProvinceCode string
}

// Order is a read-only snapshot of one order. The engine never mutates it.
type Order struct {
	ID              string
	Attributes      []Attribute
	Metafields      []Metafield
	ShippingLines   []ShippingLine
	LineItems       []LineItem
	ShippingAddress *Address
}

// ProductIDs returns the distinct product ids across the order's line items,
// preserving first-seen order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]bool, len(o.LineItems))
	ids := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		if li.ProductID == "" || seen[li.ProductID] {
			continue
		}
		seen[li.ProductID] = true
		ids = append(ids, li.ProductID)
	}
	return ids
}

// ShippingRate is one configured shipping rate descriptor (rate-based mode).
type ShippingRate struct {
	ID     string
	Handle string
	Title  string
	Zone   string
}

// MethodSetting is the per-method configuration in the method-based mode.
type MethodSetting struct {
	Title   string
	Enabled bool
}

// ShopSetting is the merchant configuration snapshot for one calculation.
// Exactly one of ShippingRates or Methods is expected to be populated;
// a populated Methods map selects the method/prefecture matching mode.
type ShopSetting struct {
	Source       DeliverySource
	DeliveryKey  string // "namespace.key" for metafields, bare attribute name otherwise
	DateFormat   string // template with YYYY, MM and DD tokens
	FallbackDays int    // adopted when no rule matches; 0 disables the fallback

	ShippingRates []ShippingRate
	Methods       map[string]MethodSetting
}

// MethodBased reports whether the method/prefecture matching mode is active.
func (s *ShopSetting) MethodBased() bool {
	return len(s.Methods) > 0
}

// Rule is one lead-time rule. The engine only reads and ranks rules,
// it never mutates them.
type Rule struct {
	ID         string
	Target     TargetKind
	ProductIDs []string

	// ShippingRateIDs constrains a rate-based rule to specific shipping
	// rates. Empty means the rule applies under any shipping identifier.
	ShippingRateIDs []string

	// ShippingMethods names the method keys a shipping_method rule governs
	// (method-based mode only).
	ShippingMethods []string

	// Prefectures limits a method-based rule to specific prefecture codes.
	// Empty means the rule applies everywhere.
	Prefectures []string

	Days int

	// Enabled is honored in the method-based mode only; rate-based rules
	// are always live.
	Enabled bool
}

func (r *Rule) targetsAllProducts() bool {
	return r.Target == TargetAll || r.Target == TargetAllProducts
}

// HolidayConfig is the set of non-working days for a shop.
type HolidayConfig struct {
	// Dates holds single-date holidays keyed by ISO YYYY-MM-DD.
	Dates map[string]bool
	// Weekdays holds recurring weekly holidays keyed by code ("sun".."sat").
	Weekdays map[string]bool
}

// Result is the success payload of one ship-by calculation.
type Result struct {
	ShipBy         time.Time
	DeliveryDate   time.Time
	Candidate      time.Time // ship-by before holiday adjustment
	AdoptDays      int
	ShippingID     string
	MatchedRuleIDs []string
}

// NewDate builds a whole calendar day at UTC midnight. All engine date
// arithmetic happens in UTC so daylight-saving transitions cannot skew it.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as ISO YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
