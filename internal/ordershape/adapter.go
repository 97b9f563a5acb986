// Package ordershape normalizes heterogeneous webhook and Admin API order
// payloads into the engine's order model. Historical payloads spell the
// same data several ways (snake_case and camelCase keys, string or number
// ids, note_attributes vs attributes), so each field is probed through an
// ordered list of shape fallbacks.
package ordershape

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ordermesh/shipby/pkg/shipby"
)

type rawAttribute struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type rawMetafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

type rawShippingLine struct {
	ID                  any    `json:"id"`
	Code                string `json:"code"`
	Title               string `json:"title"`
	Handle              string `json:"handle"`
	RateHandle          string `json:"rate_handle"`
	RateHandleCamel     string `json:"rateHandle"`
	ShippingRateID      any    `json:"shipping_rate_id"`
	ShippingRateIDCamel any    `json:"shippingRateId"`
	DeliveryCategory    string `json:"delivery_category"`
	DeliveryCatCamel    string `json:"deliveryCategory"`
}

type rawLineItem struct {
	ProductID      any `json:"product_id"`
	ProductIDCamel any `json:"productId"`
}

type rawAddress struct {
	ProvinceCode      string `json:"province_code"`
	ProvinceCodeCamel string `json:"provinceCode"`
}

type rawOrder struct {
	ID   any    `json:"id"`
	Name string `json:"name"`

	Attributes          []rawAttribute `json:"attributes"`
	NoteAttributes      []rawAttribute `json:"note_attributes"`
	NoteAttributesCamel []rawAttribute `json:"noteAttributes"`

	Metafields []rawMetafield `json:"metafields"`

	ShippingLines      []rawShippingLine `json:"shipping_lines"`
	ShippingLinesCamel []rawShippingLine `json:"shippingLines"`

	LineItems      []rawLineItem `json:"line_items"`
	LineItemsCamel []rawLineItem `json:"lineItems"`

	ShippingAddress      *rawAddress `json:"shipping_address"`
	ShippingAddressCamel *rawAddress `json:"shippingAddress"`
}

// Parse decodes a raw order payload into the engine's order model.
// Absent arrays default to empty, numeric values are stringified, and
// non-string metafield values are dropped.
func Parse(raw []byte) (*shipby.Order, error) {
	var payload rawOrder
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding order payload: %w", err)
	}
	return fromRaw(&payload), nil
}

func fromRaw(payload *rawOrder) *shipby.Order {
	order := &shipby.Order{
		ID:            stringify(payload.ID),
		Attributes:    []shipby.Attribute{},
		Metafields:    []shipby.Metafield{},
		ShippingLines: []shipby.ShippingLine{},
		LineItems:     []shipby.LineItem{},
	}
	if order.ID == "" {
		order.ID = payload.Name
	}

	// All attribute spellings flatten into one list, in payload order.
	for _, group := range [][]rawAttribute{payload.Attributes, payload.NoteAttributes, payload.NoteAttributesCamel} {
		for _, a := range group {
			name := a.Name
			if name == "" {
				name = a.Key
			}
			value := stringify(a.Value)
			if name == "" || value == "" {
				continue
			}
			order.Attributes = append(order.Attributes, shipby.Attribute{Name: name, Value: value})
		}
	}

	for _, m := range payload.Metafields {
		value, ok := m.Value.(string)
		if !ok {
			continue
		}
		order.Metafields = append(order.Metafields, shipby.Metafield{
			Namespace: m.Namespace,
			Key:       m.Key,
			Value:     value,
		})
	}

	lines := payload.ShippingLines
	if len(lines) == 0 {
		lines = payload.ShippingLinesCamel
	}
	for _, l := range lines {
		order.ShippingLines = append(order.ShippingLines, shipby.ShippingLine{
			ID:               stringify(l.ID),
			Code:             l.Code,
			Title:            l.Title,
			RateHandle:       rateHandle(l),
			DeliveryCategory: firstNonEmpty(l.DeliveryCategory, l.DeliveryCatCamel),
		})
	}

	items := payload.LineItems
	if len(items) == 0 {
		items = payload.LineItemsCamel
	}
	for _, li := range items {
		id := stringify(li.ProductID)
		if id == "" {
			id = stringify(li.ProductIDCamel)
		}
		if id == "" {
			continue
		}
		order.LineItems = append(order.LineItems, shipby.LineItem{ProductID: id})
	}

	if addr := payload.ShippingAddress; addr != nil {
		order.ShippingAddress = &shipby.Address{ProvinceCode: firstNonEmpty(addr.ProvinceCode, addr.ProvinceCodeCamel)}
	} else if addr := payload.ShippingAddressCamel; addr != nil {
		order.ShippingAddress = &shipby.Address{ProvinceCode: firstNonEmpty(addr.ProvinceCode, addr.ProvinceCodeCamel)}
	}

	return order
}

// rateHandleExtractors probe one shipping line for its explicit rate
// identifier, most explicit spelling first.
var rateHandleExtractors = []func(rawShippingLine) string{
	func(l rawShippingLine) string { return l.RateHandle },
	func(l rawShippingLine) string { return l.RateHandleCamel },
	func(l rawShippingLine) string { return l.Handle },
	func(l rawShippingLine) string { return stringify(l.ShippingRateID) },
	func(l rawShippingLine) string { return stringify(l.ShippingRateIDCamel) },
}

func rateHandle(l rawShippingLine) string {
	for _, extract := range rateHandleExtractors {
		if v := extract(l); v != "" {
			return v
		}
	}
	return ""
}

// stringify renders string and finite-number JSON values as strings.
// Anything else (objects, arrays, booleans, null, NaN) yields "".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
