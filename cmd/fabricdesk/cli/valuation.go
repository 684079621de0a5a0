package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Valuator computes a warehouse valuation.
type Valuator interface {
	Valuation(ctx context.Context, strategy inventory.Strategy) (inventory.WarehouseValuation, error)
}

// ValuationCLI prints stock valuations for operators.
type ValuationCLI struct {
	source Valuator
}

// NewValuationCLI constructs the helper.
func NewValuationCLI(source Valuator) *ValuationCLI {
	return &ValuationCLI{source: source}
}

// ValuationOptions controls the valuation printout.
type ValuationOptions struct {
	Strategy   string
	Lang       string
	JSONOutput bool
}

// Show computes the valuation and renders it to out.
func (c *ValuationCLI) Show(ctx context.Context, out io.Writer, opts ValuationOptions) error {
	strategy, err := inventory.ParseStrategy(opts.Strategy)
	if err != nil {
		return err
	}
	v, err := c.source.Valuation(ctx, strategy)
	if err != nil {
		return err
	}
	if opts.JSONOutput {
		return json.NewEncoder(out).Encode(roundValuation(v))
	}
	tag := language.English
	if opts.Lang != "" {
		parsed, err := language.Parse(opts.Lang)
		if err != nil {
			return fmt.Errorf("invalid language %q: %w", opts.Lang, err)
		}
		tag = parsed
	}
	renderValuation(message.NewPrinter(tag), out, v)
	return nil
}

func renderValuation(p *message.Printer, out io.Writer, v inventory.WarehouseValuation) {
	_, _ = p.Fprintf(out, "Warehouse valuation (%s)\n", v.Strategy)
	if len(v.Fabrics) == 0 {
		_, _ = p.Fprintln(out, "No fabrics in stock.")
	}
	for _, f := range v.Fabrics {
		_, _ = p.Fprintf(out, " - %-12s %-20s %12.2f m %4d rolls  avg %10.2f  value %14.2f\n",
			f.MainCode, f.Name, f.Meters, f.RollCount, f.AvgCost, f.Value)
	}
	_, _ = p.Fprintf(out, "Total: %.2f m, value %.2f\n", v.TotalMeters, v.TotalValue)
}

func roundValuation(v inventory.WarehouseValuation) inventory.WarehouseValuation {
	out := v
	out.Fabrics = make([]inventory.FabricValuation, len(v.Fabrics))
	for i, f := range v.Fabrics {
		f.Meters = shared.Round2(f.Meters)
		f.AvgCost = shared.Round2(f.AvgCost)
		f.Value = shared.Round2(f.Value)
		out.Fabrics[i] = f
	}
	out.TotalMeters = shared.Round2(v.TotalMeters)
	out.TotalValue = shared.Round2(v.TotalValue)
	return out
}
