package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/shopspring/decimal"
)

const usage = `Usage: app <command> [args]

Commands:
  stock [location_id]                       show stock levels
  adjust <sku> <location_id> <delta> [reason]
                                            apply a signed stock correction
  transition <batch_id> <start|delay|complete>
                                            move a batch through its lifecycle
  trace <lot_number>                        print the provenance of a lot as JSON
  verify                                    check ledger and lot invariants`

// ErrUsage is returned when the command line can not be parsed.
var ErrUsage = errors.New("invalid usage")

// Run executes a one-shot CLI command, writing its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "stock", "st":
		var filter core.StockFilter
		if len(args) > 1 {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: location_id must be a number", ErrUsage)
			}
			filter.LocationID = id
		}
		result, err := svc.GetStockLevels(ctx, actor, filter)
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStock(out, result)

	case "adjust", "adj":
		if len(args) < 4 {
			return fmt.Errorf("%w: adjust <sku> <location_id> <delta> [reason]", ErrUsage)
		}
		locationID, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: location_id must be a number", ErrUsage)
		}
		delta, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("%w: delta must be a decimal number", ErrUsage)
		}
		reason := "manual adjustment"
		if len(args) > 4 {
			reason = strings.Join(args[4:], " ")
		}
		result, err := svc.AdjustInventory(ctx, actor, app.AdjustInventoryRequest{
			SKU: args[1], LocationID: locationID, Delta: delta, Reason: reason,
		})
		if err != nil {
			return fmt.Errorf("adjustment failed: %w", err)
		}
		fmt.Fprintf(out, "Inventory %d: quantity %s, available %s\n",
			result.InventoryID, result.Quantity.StringFixed(4), result.Available.StringFixed(4))

	case "transition", "tr":
		if len(args) < 3 {
			return fmt.Errorf("%w: transition <batch_id> <start|delay|complete>", ErrUsage)
		}
		batchID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: batch_id must be a number", ErrUsage)
		}
		result, err := svc.TransitionBatch(ctx, actor, batchID, args[2])
		if err != nil {
			return fmt.Errorf("transition failed: %w", err)
		}
		fmt.Fprintf(out, "Batch %s (%d): %s\n", result.Batch.BatchNumber, result.BatchID, result.DisplayStatus)

	case "trace":
		if len(args) < 2 {
			return fmt.Errorf("%w: trace <lot_number>", ErrUsage)
		}
		trace, err := svc.TraceLot(ctx, actor, args[1])
		if err != nil {
			return fmt.Errorf("trace failed: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)

	case "verify":
		result, err := svc.VerifyInvariants(ctx)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		if result.OK {
			fmt.Fprintln(out, "All invariants hold.")
			return nil
		}
		for _, v := range result.Violations {
			fmt.Fprintf(out, "  [%s] %s: %s\n", v.Check, v.Entity, v.Detail)
		}
		return fmt.Errorf("%d invariant violation(s) found", len(result.Violations))

	case "help", "-h", "--help":
		fmt.Fprintln(out, usage)

	default:
		fmt.Fprintln(out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	return nil
}

func printStock(out io.Writer, result *app.StockResult) {
	line := strings.Repeat("-", 86)
	fmt.Fprintf(out, "%-16s %-20s %-16s %10s %10s %10s\n", "SKU", "NAME", "LOCATION", "ON HAND", "RESERVED", "AVAILABLE")
	fmt.Fprintln(out, line)
	for _, l := range result.Levels {
		flag := ""
		if l.BelowReorder {
			flag = "  (reorder)"
		}
		fmt.Fprintf(out, "%-16s %-20s %-16s %10s %10s %10s%s\n",
			truncate(l.SKUCode, 16), truncate(l.SKUName, 20), truncate(l.LocationName, 16),
			l.OnHand.StringFixed(2), l.Reserved.StringFixed(2), l.Available.StringFixed(2), flag)
	}
	fmt.Fprintln(out, line)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
