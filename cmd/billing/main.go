// Command billing is the non-interactive front end: list the menu, place an
// order, reprint a bill, or export the sales reports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restobill/internal/app"
	"restobill/internal/archive"
	"restobill/internal/config"
	"restobill/internal/domain"
	"restobill/internal/logger"
	"restobill/internal/order"
	"restobill/internal/receipt"
	"restobill/internal/report"
)

const usage = `usage:
  billing menu
  billing order [-mode dine-in|takeaway] [-payment cash|upi|card] [-discount PCT] ID=QTY...
  billing bill [-format text|csv|json] [-pdf out.pdf] <timestamp>
  billing report [-out dir]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = zl.Sync() }()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "menu":
		err = runMenu(ctx, cfg, zl, stdout)
	case "order":
		err = runOrder(ctx, cfg, zl, rest, stdout)
	case "bill":
		err = runBill(ctx, cfg, zl, rest, stdout)
	case "report":
		err = runReport(ctx, cfg, zl, rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if domain.IsValidation(err) || errors.Is(err, domain.ErrNotFound) {
			return 2
		}
		return 1
	}
	return 0
}

func runMenu(ctx context.Context, cfg config.Config, zl *zap.Logger, stdout io.Writer) error {
	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	rule := strings.Repeat("-", 45)
	fmt.Fprintf(stdout, "\n----MENU----\n%-8s %-20s %-12s\n%s\n", "Food_ID", "Item", "Price (Rs)", rule)
	for _, item := range a.Catalog.Items() {
		fmt.Fprintf(stdout, "%-8s %-20s Rs. %s\n", item.ID, item.Name, item.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(stdout, "%s\n", rule)
	return nil
}

func runOrder(ctx context.Context, cfg config.Config, zl *zap.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	mode := fs.String("mode", "dine-in", "service mode: dine-in or takeaway")
	payment := fs.String("payment", "cash", "payment mode: cash, upi or card")
	discount := fs.String("discount", "0", "discount percent between 0 and 100")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	discountPct, err := decimal.NewFromString(strings.TrimSpace(*discount))
	if err != nil {
		return fmt.Errorf("%w: discount %q is not a number", domain.ErrInvalidInput, *discount)
	}

	lines := make([]domain.OrderLine, 0, fs.NArg())
	for _, spec := range fs.Args() {
		line, err := order.ParseItemSpec(spec)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		fmt.Fprintln(stdout, "No items ordered, order cancelled.")
		return nil
	}

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	builder := order.NewBuilder(a.Catalog)
	for _, line := range lines {
		if err := builder.AddItem(line.ItemID, line.Quantity); err != nil {
			return err
		}
	}
	o, err := builder.Finalize()
	if err != nil {
		return err
	}

	resp, err := a.Billing.PlaceOrder(ctx, domain.PlaceOrderRequest{
		ServiceMode:     *mode,
		PaymentMode:     *payment,
		DiscountPercent: discountPct,
		Items:           o.Lines,
	})
	if err != nil {
		return err
	}

	if err := receipt.Text(stdout, resp.Bill, a.Catalog); err != nil {
		return err
	}
	if resp.ArchivePath == "" {
		fmt.Fprintf(stdout, "Warning: order recorded but bill file not saved: %s\n", resp.ArchiveError)
		return nil
	}
	fmt.Fprintf(stdout, "Bill saved to: %s\n", resp.ArchivePath)
	return nil
}

func runBill(ctx context.Context, cfg config.Config, zl *zap.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("bill", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "text", "output format: text, csv or json")
	pdfPath := fs.String("pdf", "", "also write a PDF receipt to this path")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: bill timestamp is required", domain.ErrInvalidInput)
	}

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	ts, err := domain.ParseTimestamp(strings.Join(fs.Args(), " "), a.Location)
	if err != nil {
		return err
	}
	bill, err := a.Billing.RetrieveBill(ctx, ts)
	if err != nil {
		return err
	}

	switch *format {
	case "text":
		err = receipt.Text(stdout, bill, a.Catalog)
	case "csv":
		var content []byte
		if content, err = archive.Render(bill); err == nil {
			_, err = stdout.Write(content)
		}
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(bill)
	default:
		return fmt.Errorf("%w: format %q must be text, csv or json", domain.ErrInvalidInput, *format)
	}
	if err != nil {
		return err
	}

	if *pdfPath != "" {
		doc, err := receipt.PDF(bill)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*pdfPath, doc, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintf(stdout, "PDF receipt saved to: %s\n", *pdfPath)
	}
	return nil
}

func runReport(ctx context.Context, cfg config.Config, zl *zap.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", "", "report folder (defaults to REPORT_DIR)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if *out != "" {
		cfg.ReportDir = *out
	}

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.Reports.Generate(ctx)
	if err != nil {
		return err
	}
	files, err := report.Export(cfg.ReportDir, reports)
	if err != nil {
		return err
	}

	windows := make([]string, 0, len(files))
	for w := range files {
		windows = append(windows, w)
	}
	slices.Sort(windows)
	for _, r := range reports {
		fmt.Fprintf(stdout, "%s: %d distinct items sold since %s", r.Window, len(r.MostSold), r.Since.Format(domain.TimestampLayout))
		if len(r.MostSold) > 0 {
			fmt.Fprintf(stdout, ", top seller %s (%d)", r.MostSold[0].Name, r.MostSold[0].Quantity)
		}
		fmt.Fprintln(stdout)
	}
	for _, w := range windows {
		fmt.Fprintf(stdout, "saved %s and %s\n", files[w].MostSold, files[w].MostProfitable)
	}
	return nil
}
