package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restobill/internal/archive"
	"restobill/internal/clock"
	"restobill/internal/domain"
	"restobill/internal/menu"
	"restobill/internal/order"
	"restobill/internal/pricing"
	"restobill/internal/store"
)

type Service struct {
	// mu serializes timestamp selection and the write that claims it.
	mu      sync.Mutex
	repo    store.Repository
	catalog *menu.Catalog
	archive *archive.Writer
	clock   clock.Clock
	log     *zap.Logger
}

func New(repo store.Repository, catalog *menu.Catalog, writer *archive.Writer, clk clock.Clock, log *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		archive: writer,
		clock:   clk,
		log:     log,
	}
}

func (s *Service) Catalog() *menu.Catalog {
	return s.catalog
}

// RecordTransaction prices the order and stores the transaction and its bill
// rows in one write. Nothing is stored when validation fails.
func (s *Service) RecordTransaction(ctx context.Context, o domain.Order, serviceMode domain.ServiceMode, paymentMode domain.PaymentMode, discountPercent decimal.Decimal) (domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, err := s.prepare(ctx, o, serviceMode, paymentMode, discountPercent)
	if err != nil {
		return domain.Bill{}, err
	}
	return s.persist(ctx, bill)
}

// ExportBillCSV writes the bill's archive file, replacing any earlier export.
func (s *Service) ExportBillCSV(bill domain.Bill) (string, error) {
	return s.archive.Export(bill)
}

// PlaceOrder validates a raw request, records it, and publishes its archive
// file. The archive file is staged first and only published after the store
// write succeeds, so a failed order leaves no trace in either. Once the store
// write succeeds the order is placed: an archive file that cannot be published
// is rewritten once, and if that fails too the response carries the archive
// error with an empty ArchivePath.
func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlaceOrderResponse, error) {
	serviceMode, err := domain.ParseServiceMode(req.ServiceMode)
	if err != nil {
		return domain.PlaceOrderResponse{}, err
	}
	paymentMode, err := domain.ParsePaymentMode(req.PaymentMode)
	if err != nil {
		return domain.PlaceOrderResponse{}, err
	}
	o, err := order.Build(s.catalog, req.Items)
	if err != nil {
		return domain.PlaceOrderResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bill, err := s.prepare(ctx, o, serviceMode, paymentMode, req.DiscountPercent)
	if err != nil {
		return domain.PlaceOrderResponse{}, err
	}

	staged, err := s.archive.Stage(bill)
	if err != nil {
		return domain.PlaceOrderResponse{}, err
	}

	bill, err = s.persist(ctx, bill)
	if err != nil {
		staged.Discard()
		return domain.PlaceOrderResponse{}, err
	}

	path, err := staged.Commit()
	if err != nil {
		s.log.Warn("archive file not published, rewriting",
			zap.Int64("order_id", bill.OrderID),
			zap.String("timestamp", store.FormatTimestamp(bill.Timestamp)),
			zap.Error(err),
		)
		path, err = s.archive.Export(bill)
	}
	if err != nil {
		s.log.Error("bill recorded without archive file",
			zap.Int64("order_id", bill.OrderID),
			zap.String("timestamp", store.FormatTimestamp(bill.Timestamp)),
			zap.Error(err),
		)
		return domain.PlaceOrderResponse{Bill: bill, ArchiveError: err.Error()}, nil
	}

	return domain.PlaceOrderResponse{Bill: bill, ArchivePath: path}, nil
}

// RetrieveBill rebuilds a bill from its stored rows. Bills whose transaction
// row is missing report payment mode Unknown, take the discount from the bill
// rows, and total their lines.
func (s *Service) RetrieveBill(ctx context.Context, ts time.Time) (domain.Bill, error) {
	records, err := s.repo.FindBillRecords(ctx, ts)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("%w: find bill rows: %v", domain.ErrPersistence, err)
	}
	if len(records) == 0 {
		return domain.Bill{}, fmt.Errorf("%w: no bill at %s", domain.ErrNotFound, store.FormatTimestamp(ts))
	}

	lines := make([]domain.BillLine, 0, len(records))
	for _, rec := range records {
		lines = append(lines, domain.BillLine{
			ItemID:           rec.ItemID,
			Name:             rec.Name,
			Quantity:         rec.Quantity,
			UnitPriceWithGST: rec.UnitPriceGST,
			LineTotal:        rec.TotalPriceGST,
		})
	}

	bill := domain.Bill{
		OrderID:         records[0].OrderID,
		Timestamp:       records[0].Timestamp,
		ServiceMode:     records[0].ServiceMode,
		PaymentMode:     domain.PaymentUnknown,
		DiscountPercent: records[0].DiscountPercent,
		TotalAmount:     pricing.Total(lines),
		Lines:           lines,
	}

	tx, err := s.repo.FindTransactionByTimestamp(ctx, ts)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.log.Warn("bill has no transaction row", zap.String("timestamp", store.FormatTimestamp(ts)))
	case err != nil:
		return domain.Bill{}, fmt.Errorf("%w: find transaction: %v", domain.ErrPersistence, err)
	default:
		bill.OrderID = tx.OrderID
		bill.ServiceMode = tx.ServiceMode
		bill.PaymentMode = tx.PaymentMode
		bill.DiscountPercent = tx.DiscountPercent
		bill.TotalAmount = tx.TotalAmount
	}
	return bill, nil
}

// prepare validates the arguments, prices every line and picks the timestamp.
// Callers hold s.mu.
func (s *Service) prepare(ctx context.Context, o domain.Order, serviceMode domain.ServiceMode, paymentMode domain.PaymentMode, discountPercent decimal.Decimal) (domain.Bill, error) {
	if serviceMode != domain.ServiceDineIn && serviceMode != domain.ServiceTakeaway {
		return domain.Bill{}, fmt.Errorf("%w: service_mode %q is not supported", domain.ErrInvalidInput, serviceMode)
	}
	switch paymentMode {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentUPI:
	default:
		return domain.Bill{}, fmt.Errorf("%w: payment_mode %q is not supported", domain.ErrInvalidInput, paymentMode)
	}
	if err := pricing.ValidateDiscount(discountPercent); err != nil {
		return domain.Bill{}, err
	}
	if len(o.Lines) == 0 {
		return domain.Bill{}, fmt.Errorf("%w: no items were added", domain.ErrEmptyOrder)
	}

	lines := make([]domain.BillLine, 0, len(o.Lines))
	for _, ol := range o.Lines {
		item, err := s.catalog.Lookup(ol.ItemID)
		if err != nil {
			return domain.Bill{}, fmt.Errorf("%w: food id %q is not on the menu", domain.ErrUnknownItem, ol.ItemID)
		}
		if ol.Quantity < 1 {
			return domain.Bill{}, fmt.Errorf("%w: quantity for %s must be a positive integer, got %d", domain.ErrInvalidQuantity, item.ID, ol.Quantity)
		}
		unit, total, err := pricing.PriceLine(item.UnitPrice, item.GSTPercent, ol.Quantity, discountPercent)
		if err != nil {
			return domain.Bill{}, err
		}
		lines = append(lines, domain.BillLine{
			ItemID:           item.ID,
			Name:             item.Name,
			Quantity:         ol.Quantity,
			UnitPriceWithGST: unit,
			LineTotal:        total,
		})
	}

	ts, err := s.nextTimestamp(ctx)
	if err != nil {
		return domain.Bill{}, err
	}

	return domain.Bill{
		Timestamp:       ts,
		ServiceMode:     serviceMode,
		PaymentMode:     paymentMode,
		DiscountPercent: discountPercent,
		TotalAmount:     pricing.Total(lines),
		Lines:           lines,
	}, nil
}

// nextTimestamp returns now at second resolution, or one second past the latest
// stored timestamp when now does not come after it.
func (s *Service) nextTimestamp(ctx context.Context) (time.Time, error) {
	ts := s.clock.Now().Truncate(time.Second)
	latest, ok, err := s.repo.LatestTimestamp(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: read latest timestamp: %v", domain.ErrPersistence, err)
	}
	if ok && !ts.After(latest) {
		ts = latest.Add(time.Second).In(ts.Location())
	}
	return ts, nil
}

func (s *Service) persist(ctx context.Context, bill domain.Bill) (domain.Bill, error) {
	orderID, err := s.repo.RecordTransaction(ctx, bill.Transaction(), bill.Records())
	if err != nil {
		s.log.Error("record transaction failed",
			zap.String("timestamp", store.FormatTimestamp(bill.Timestamp)),
			zap.Error(err),
		)
		return domain.Bill{}, fmt.Errorf("%w: record transaction: %v", domain.ErrPersistence, err)
	}
	bill.OrderID = orderID

	s.log.Info("order recorded",
		zap.Int64("order_id", orderID),
		zap.String("timestamp", store.FormatTimestamp(bill.Timestamp)),
		zap.String("service_mode", string(bill.ServiceMode)),
		zap.String("payment_mode", string(bill.PaymentMode)),
		zap.String("total_amount", bill.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(bill.Lines)),
	)
	return bill, nil
}
