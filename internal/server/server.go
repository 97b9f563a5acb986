// Package server exposes the ship-by engine over a thin JSON admin API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ordermesh/shipby/internal/ordershape"
	"github.com/ordermesh/shipby/internal/ruleset"
	"github.com/ordermesh/shipby/internal/telemetry"
	"github.com/ordermesh/shipby/pkg/shipby"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Server is the HTTP server for the ship-by service.
type Server struct {
	port        int
	snapshot    *ruleset.Snapshot
	concurrency int
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
}

// Config holds server configuration.
type Config struct {
	Port             int
	BatchConcurrency int

	// Registry overrides the Prometheus registerer; nil uses the default.
	Registry prometheus.Registerer
}

// New creates a new server instance.
func New(cfg Config, snapshot *ruleset.Snapshot, logger *otelzap.Logger) *Server {
	metrics := telemetry.NewMetrics(cfg.Registry)
	metrics.SetRuleCount(len(snapshot.Rules))

	return &Server{
		port:        cfg.Port,
		snapshot:    snapshot,
		concurrency: cfg.BatchConcurrency,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("shipby/server"),
	}
}

// Handler builds the HTTP route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/calculate", s.handleCalculate)
	mux.HandleFunc("/v1/calculate/batch", s.handleCalculateBatch)
	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// calculationResponse is the JSON result of one calculation.
type calculationResponse struct {
	OK             bool     `json:"ok"`
	CalculationID  string   `json:"calculationId"`
	OrderID        string   `json:"orderId,omitempty"`
	ShipBy         string   `json:"shipBy,omitempty"`
	DeliveryDate   string   `json:"deliveryDate,omitempty"`
	Candidate      string   `json:"candidate,omitempty"`
	AdoptDays      int      `json:"adoptDays,omitempty"`
	ShippingID     string   `json:"shippingId,omitempty"`
	MatchedRuleIDs []string `json:"matchedRuleIds"`
	ErrorKind      string   `json:"errorKind,omitempty"`
	Message        string   `json:"message,omitempty"`
}

type batchRequest struct {
	Orders []json.RawMessage `json:"orders"`
}

type batchResponse struct {
	Results []calculationResponse `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed, use POST"})
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "calculate")
	defer span.End()

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	order, err := ordershape.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	start := time.Now()
	result, err := shipby.Calculate(order, s.snapshot.Rules, s.snapshot.Setting, s.snapshot.Holidays)
	resp := s.buildResponse(ctx, order.ID, result, err)
	s.metrics.RecordCalculation("calculate", outcomeLabel(err), time.Since(start).Seconds())

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCalculateBatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed, use POST"})
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "calculate_batch")
	defer span.End()

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("batch.size", len(req.Orders)))

	// Payloads that fail shape normalization are reported inline and
	// excluded from the engine fan-out.
	results := make([]calculationResponse, len(req.Orders))
	orders := make([]*shipby.Order, 0, len(req.Orders))
	slots := make([]int, 0, len(req.Orders))
	for i, raw := range req.Orders {
		order, err := ordershape.Parse(raw)
		if err != nil {
			results[i] = calculationResponse{
				OK:             false,
				CalculationID:  uuid.NewString(),
				MatchedRuleIDs: []string{},
				Message:        err.Error(),
			}
			continue
		}
		orders = append(orders, order)
		slots = append(slots, i)
	}

	start := time.Now()
	items := shipby.CalculateBatch(ctx, orders, s.snapshot.Rules, s.snapshot.Setting, s.snapshot.Holidays, s.concurrency)
	for n, item := range items {
		results[slots[n]] = s.buildResponse(ctx, item.OrderID, item.Result, item.Err)
		s.metrics.RecordCalculation("calculate_batch", outcomeLabel(item.Err), 0)
	}
	s.metrics.CalculationDuration.WithLabelValues("calculate_batch").Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) buildResponse(ctx context.Context, orderID string, result *shipby.Result, err error) calculationResponse {
	resp := calculationResponse{
		CalculationID:  uuid.NewString(),
		OrderID:        orderID,
		MatchedRuleIDs: []string{},
	}
	if err != nil {
		resp.ErrorKind = string(shipby.KindOf(err))
		resp.Message = err.Error()
		s.logger.Ctx(ctx).Warn("Calculation failed",
			zap.String("order_id", orderID),
			zap.String("error_kind", resp.ErrorKind),
			zap.Error(err),
		)
		return resp
	}

	resp.OK = true
	resp.ShipBy = shipby.FormatDate(result.ShipBy)
	resp.DeliveryDate = shipby.FormatDate(result.DeliveryDate)
	resp.Candidate = shipby.FormatDate(result.Candidate)
	resp.AdoptDays = result.AdoptDays
	resp.ShippingID = result.ShippingID
	if len(result.MatchedRuleIDs) > 0 {
		resp.MatchedRuleIDs = result.MatchedRuleIDs
	}
	s.logger.Ctx(ctx).Info("Calculation succeeded",
		zap.String("order_id", orderID),
		zap.String("ship_by", resp.ShipBy),
		zap.Int("adopt_days", resp.AdoptDays),
		zap.Strings("matched_rule_ids", result.MatchedRuleIDs),
	)
	return resp
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := shipby.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
