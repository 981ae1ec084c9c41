package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the canonical text form of bill timestamps in storage and archives.
const TimestampLayout = "2006-01-02 15:04:05"

// ParseTimestamp accepts the canonical layout and the archive filename form
// (2006-01-02_15-04-05), interpreting both in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{TimestampLayout, "2006-01-02_15-04-05", "2006-01-02T15:04:05"} {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q must look like 2006-01-02 15:04:05", ErrInvalidInput, raw)
}

type ServiceMode string

const (
	ServiceDineIn   ServiceMode = "Dine-in"
	ServiceTakeaway ServiceMode = "Takeaway"
)

// ParseServiceMode accepts the display name in any case, a few common spellings,
// and the console menu numbers ("1" dine-in, "2" takeaway).
func ParseServiceMode(raw string) (ServiceMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "dine-in", "dinein", "dine in":
		return ServiceDineIn, nil
	case "2", "takeaway", "take-away", "take away":
		return ServiceTakeaway, nil
	}
	return "", fmt.Errorf("%w: service_mode %q must be Dine-in or Takeaway", ErrInvalidInput, raw)
}

type PaymentMode string

const (
	PaymentCash    PaymentMode = "Cash"
	PaymentCard    PaymentMode = "Card"
	PaymentUPI     PaymentMode = "UPI"
	PaymentUnknown PaymentMode = "Unknown"
)

// ParsePaymentMode follows the console numbering: 1 cash, 2 UPI, 3 card.
func ParsePaymentMode(raw string) (PaymentMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "cash":
		return PaymentCash, nil
	case "2", "upi":
		return PaymentUPI, nil
	case "3", "card":
		return PaymentCard, nil
	}
	return "", fmt.Errorf("%w: payment_mode %q must be Cash, Card or UPI", ErrInvalidInput, raw)
}

type MenuItem struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	GSTPercent decimal.Decimal  `json:"gst_percent"`
	Cost       *decimal.Decimal `json:"cost,omitempty"`
}

type OrderLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"qty"`
}

// Order holds lines with unique item ids in first-entry order.
type Order struct {
	Lines []OrderLine `json:"lines"`
}

func (o Order) Quantity(itemID string) int {
	for _, line := range o.Lines {
		if line.ItemID == itemID {
			return line.Quantity
		}
	}
	return 0
}

type BillLine struct {
	ItemID           string          `json:"item_id"`
	Name             string          `json:"name"`
	Quantity         int             `json:"qty"`
	UnitPriceWithGST decimal.Decimal `json:"unit_price_with_gst"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

type Transaction struct {
	OrderID         int64           `json:"order_id"`
	ServiceMode     ServiceMode     `json:"service_mode"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Timestamp       time.Time       `json:"timestamp"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
}

type BillRecord struct {
	OrderID         int64           `json:"order_id"`
	ItemID          string          `json:"food_id"`
	Name            string          `json:"food_name"`
	Quantity        int             `json:"qty"`
	UnitPriceGST    decimal.Decimal `json:"unit_price_gst"`
	TotalPriceGST   decimal.Decimal `json:"total_price_gst"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ServiceMode     ServiceMode     `json:"service_mode"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Bill is the joined view of one order: its transaction header plus its lines.
type Bill struct {
	OrderID         int64           `json:"order_id"`
	Timestamp       time.Time       `json:"timestamp"`
	ServiceMode     ServiceMode     `json:"service_mode"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Lines           []BillLine      `json:"lines"`
}

func (b Bill) Transaction() Transaction {
	return Transaction{
		OrderID:         b.OrderID,
		ServiceMode:     b.ServiceMode,
		DiscountPercent: b.DiscountPercent,
		TotalAmount:     b.TotalAmount,
		Timestamp:       b.Timestamp,
		PaymentMode:     b.PaymentMode,
	}
}

func (b Bill) Records() []BillRecord {
	records := make([]BillRecord, 0, len(b.Lines))
	for _, line := range b.Lines {
		records = append(records, BillRecord{
			OrderID:         b.OrderID,
			ItemID:          line.ItemID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitPriceGST:    line.UnitPriceWithGST,
			TotalPriceGST:   line.LineTotal,
			DiscountPercent: b.DiscountPercent,
			ServiceMode:     b.ServiceMode,
			Timestamp:       b.Timestamp,
		})
	}
	return records
}

// ArchiveRow is one line item read back from the CSV archive. Date is nil when the
// file name does not encode a parseable timestamp.
type ArchiveRow struct {
	Source    string          `json:"source"`
	Date      *time.Time      `json:"date,omitempty"`
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Window struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

var (
	WindowDaily   = Window{Name: "daily", Duration: 24 * time.Hour}
	WindowWeekly  = Window{Name: "weekly", Duration: 7 * 24 * time.Hour}
	WindowMonthly = Window{Name: "monthly", Duration: 30 * 24 * time.Hour}
)

func DefaultWindows() []Window {
	return []Window{WindowDaily, WindowWeekly, WindowMonthly}
}

type SoldEntry struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
}

type ProfitEntry struct {
	ItemID string          `json:"item_id"`
	Name   string          `json:"name"`
	Profit decimal.Decimal `json:"profit"`
}

type Report struct {
	Window         string        `json:"window"`
	Since          time.Time     `json:"since"`
	CostBased      bool          `json:"cost_based"`
	MostSold       []SoldEntry   `json:"most_sold"`
	MostProfitable []ProfitEntry `json:"most_profitable"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type PlaceOrderRequest struct {
	ServiceMode     string          `json:"service_mode"`
	PaymentMode     string          `json:"payment_mode"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Items           []OrderLine     `json:"items"`
}

type PlaceOrderResponse struct {
	Bill         Bill   `json:"bill"`
	ArchivePath  string `json:"archive_path"`
	ArchiveError string `json:"archive_error,omitempty"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
