package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ordermesh/shipby/internal/ruleset"
	"github.com/ordermesh/shipby/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const testRuleset = `
setting:
  source: metafield
  delivery_key: custom.delivery_date
  fallback_days: 2
  shipping_rates:
    - id: sr_yamato_cool
      handle: yamato-cool
      title: Yamato Cool
rules:
  - id: product-with-rate
    target: product
    product_ids: "111"
    shipping_rate_ids: [sr_yamato_cool]
    days: 3
holidays:
  weekdays: [sun]
`

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	snapshot, err := ruleset.LoadBytes([]byte(testRuleset))
	require.NoError(t, err)

	srv := server.New(server.Config{
		Port:             8080,
		BatchConcurrency: 2,
		Registry:         prometheus.NewRegistry(),
	}, snapshot, otelzap.New(zap.NewNop()))
	return srv.Handler()
}

const orderPayload = `{
	"id": 1001,
	"metafields": [{"namespace": "custom", "key": "delivery_date", "value": "2025-05-10"}],
	"shipping_lines": [{"code": "yamato-cool"}],
	"line_items": [{"product_id": 111}]
}`

func TestServer_Health(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Calculate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/calculate", strings.NewReader(orderPayload))
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "2025-05-07", resp["shipBy"])
	assert.Equal(t, "2025-05-10", resp["deliveryDate"])
	assert.Equal(t, float64(3), resp["adoptDays"])
	assert.Equal(t, "sr_yamato_cool", resp["shippingId"])
	assert.Equal(t, []any{"product-with-rate"}, resp["matchedRuleIds"])
	assert.NotEmpty(t, resp["calculationId"])
}

func TestServer_Calculate_EngineFailure(t *testing.T) {
	payload := `{
		"id": 1001,
		"metafields": [{"namespace": "custom", "key": "delivery_date", "value": "05/10/2025"}],
		"shipping_lines": [{"code": "yamato-cool"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/calculate", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "invalid_delivery_format", resp["errorKind"])
	assert.NotEmpty(t, resp["message"])
}

func TestServer_Calculate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/calculate", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Calculate_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/calculate", nil)
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_CalculateBatch(t *testing.T) {
	// One calculable order, one order that falls through to the fallback
	// lead time, one unparseable payload.
	noRules := `{
		"id": 1002,
		"metafields": [{"namespace": "custom", "key": "delivery_date", "value": "2025-05-10"}],
		"shipping_lines": [{"code": "yamato-cool"}]
	}`
	body := `{"orders": [` + orderPayload + `, ` + noRules + `, "not an object"]}`

	req := httptest.NewRequest(http.MethodPost, "/v1/calculate/batch", strings.NewReader(body))
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 3)

	assert.Equal(t, true, resp.Results[0]["ok"])
	assert.Equal(t, "2025-05-07", resp.Results[0]["shipBy"])

	assert.Equal(t, true, resp.Results[1]["ok"])
	assert.Equal(t, float64(2), resp.Results[1]["adoptDays"], "fallback lead time")
	assert.Equal(t, []any{}, resp.Results[1]["matchedRuleIds"])
	assert.Equal(t, "2025-05-08", resp.Results[1]["shipBy"])

	assert.Equal(t, false, resp.Results[2]["ok"])
	assert.NotEmpty(t, resp.Results[2]["message"])
}

func TestServer_Metrics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	newTestHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
