package shipby

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one order within a batch calculation.
// Exactly one of Result and Err is set.
type BatchItem struct {
	OrderID string
	Result  *Result
	Err     error
}

// CalculateBatch runs Calculate for each order concurrently. Per-order
// failures are carried inline rather than failing the batch; each
// calculation reads only its own inputs so no coordination is needed
// beyond bounding the fan-out.
func CalculateBatch(ctx context.Context, orders []*Order, rules []Rule, setting *ShopSetting, holidays *HolidayConfig, concurrency int) []BatchItem {
	if concurrency <= 0 {
		concurrency = 1
	}

	items := make([]BatchItem, len(orders))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, order := range orders {
		i, order := i, order
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i] = BatchItem{OrderID: order.ID, Err: err}
				return nil
			}
			result, err := Calculate(order, rules, setting, holidays)
			items[i] = BatchItem{OrderID: order.ID, Result: result, Err: err}
			return nil
		})
	}

	g.Wait()
	return items
}
