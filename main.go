package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ordermesh/shipby/internal/ordershape"
	"github.com/ordermesh/shipby/internal/server"
	"github.com/ordermesh/shipby/pkg/shipby"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shipby",
	Short:   "Ship-by deadline engine - computes the latest warehouse departure date for an order",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute the ship-by date for one order JSON file",
	RunE:  runCalculate,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect ruleset snapshots",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate a ruleset snapshot",
	RunE:  runRulesLint,
}

var (
	orderPath   string
	rulesetPath string
)

func init() {
	calculateCmd.Flags().StringVar(&orderPath, "order", "", "path to an order JSON file (required)")
	calculateCmd.MarkFlagRequired("order")
	calculateCmd.Flags().StringVar(&rulesetPath, "ruleset", "", "path to the ruleset snapshot (defaults to RULESET_PATH)")
	rulesLintCmd.Flags().StringVar(&rulesetPath, "ruleset", "", "path to the ruleset snapshot (defaults to RULESET_PATH)")

	rulesCmd.AddCommand(rulesLintCmd)
	rootCmd.AddCommand(serveCmd, calculateCmd, rulesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	snapshot, err := loadRuleset(cfg.RulesetPath)
	if err != nil {
		return err
	}

	logger.Info("Starting ship-by deadline engine",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("ruleset", cfg.RulesetPath),
		zap.Int("rules", len(snapshot.Rules)),
	)

	srv := server.New(server.Config{
		Port:             cfg.Port,
		BatchConcurrency: cfg.BatchConcurrency,
	}, snapshot, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runCalculate(cmd *cobra.Command, args []string) error {
	snapshot, err := loadRulesetFromFlag()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(orderPath)
	if err != nil {
		return fmt.Errorf("reading order %s: %w", orderPath, err)
	}
	order, err := ordershape.Parse(raw)
	if err != nil {
		return err
	}

	result, err := shipby.Calculate(order, snapshot.Rules, snapshot.Setting, snapshot.Holidays)
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err != nil {
		enc.Encode(map[string]any{
			"ok":        false,
			"orderId":   order.ID,
			"errorKind": string(shipby.KindOf(err)),
			"message":   err.Error(),
		})
		return err
	}
	return enc.Encode(map[string]any{
		"ok":             true,
		"orderId":        order.ID,
		"shipBy":         shipby.FormatDate(result.ShipBy),
		"deliveryDate":   shipby.FormatDate(result.DeliveryDate),
		"candidate":      shipby.FormatDate(result.Candidate),
		"adoptDays":      result.AdoptDays,
		"shippingId":     result.ShippingID,
		"matchedRuleIds": result.MatchedRuleIDs,
	})
}

func runRulesLint(cmd *cobra.Command, args []string) error {
	snapshot, err := loadRulesetFromFlag()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d rules, %d holiday dates, %d weekly holidays\n",
		len(snapshot.Rules), len(snapshot.Holidays.Dates), len(snapshot.Holidays.Weekdays))
	return nil
}
