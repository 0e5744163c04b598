package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string           `json:"id"`
	SKU      string           `json:"sku"`
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Brand    string           `json:"brand,omitempty"`
	Price    decimal.Decimal  `json:"price"`
	MRP      decimal.Decimal  `json:"mrp"`
	Stock    int              `json:"stock"`
	Sizes    []ProductVariant `json:"sizes,omitempty"`
	Colors   []ProductVariant `json:"colors,omitempty"`
	Active   bool             `json:"active"`
}

// ProductVariant is one size or color option with its own stock and an
// optional price override.
type ProductVariant struct {
	Name  string           `json:"name"`
	Stock int              `json:"stock"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// VariantQuote is the read-only snapshot the engine takes from the catalog
// at the moment an item is added or its quantity changes.
type VariantQuote struct {
	SKU            string          `json:"sku"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Size           string          `json:"size,omitempty"`
	Color          string          `json:"color,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	AvailableStock int             `json:"available_stock"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	GSTNo     string    `json:"gst_no,omitempty"`
	Wholesale bool      `json:"wholesale"`
	CreatedAt time.Time `json:"created_at"`
}

type LineItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

type PaymentDetails struct {
	CashAmount         decimal.Decimal `json:"cash_amount"`
	CardAmount         decimal.Decimal `json:"card_amount"`
	UPIAmount          decimal.Decimal `json:"upi_amount"`
	BankTransferAmount decimal.Decimal `json:"bank_transfer_amount"`
	ChangeGiven        decimal.Decimal `json:"change_given"`
}

// Tendered sums all payment channels, excluding change.
func (p PaymentDetails) Tendered() decimal.Decimal {
	return p.CashAmount.Add(p.CardAmount).Add(p.UPIAmount).Add(p.BankTransferAmount)
}

type InvoiceAdjustments struct {
	ExtraLess decimal.Decimal `json:"extra_less"`
	Savings   decimal.Decimal `json:"savings"`
}

type InvoiceTotals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	InvoiceTotal decimal.Decimal `json:"invoice_total"`
}

// ActiveInvoice is the single invoice-in-progress for one session. It is a
// value type: engine mutations build a new ActiveInvoice and swap it in,
// never edit one in place.
type ActiveInvoice struct {
	InvoiceNumber string             `json:"invoice_number"`
	Lines         []LineItem         `json:"lines"`
	Customer      *Customer          `json:"customer,omitempty"`
	Adjustments   InvoiceAdjustments `json:"adjustments"`
	Payment       PaymentDetails     `json:"payment"`
	Totals        InvoiceTotals      `json:"totals"`
}

// Clone deep-copies the invoice so held snapshots never alias the draft.
func (inv ActiveInvoice) Clone() ActiveInvoice {
	out := inv
	out.Lines = make([]LineItem, len(inv.Lines))
	copy(out.Lines, inv.Lines)
	if inv.Customer != nil {
		customer := *inv.Customer
		out.Customer = &customer
	}
	return out
}

type HeldInvoice struct {
	ID      string        `json:"id"`
	Invoice ActiveInvoice `json:"invoice"`
	HeldAt  time.Time     `json:"held_at"`
}

// SaleRecord is the finalized, immutable result of a completed invoice.
type SaleRecord struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerGSTNo string          `json:"customer_gst_no,omitempty"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Savings       decimal.Decimal `json:"savings"`
	ExtraLess     decimal.Decimal `json:"extra_less"`
	Total         decimal.Decimal `json:"total"`
	Payment       PaymentDetails  `json:"payment"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AddItemRequest struct {
	SKU      string `json:"sku"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	Quantity int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type SetCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type AdjustmentsRequest struct {
	ExtraLess *decimal.Decimal `json:"extra_less,omitempty"`
	Savings   *decimal.Decimal `json:"savings,omitempty"`
}

type TenderRequest struct {
	CashAmount         *decimal.Decimal `json:"cash_amount,omitempty"`
	CardAmount         *decimal.Decimal `json:"card_amount,omitempty"`
	UPIAmount          *decimal.Decimal `json:"upi_amount,omitempty"`
	BankTransferAmount *decimal.Decimal `json:"bank_transfer_amount,omitempty"`
}

type InvoiceNumberRequest struct {
	InvoiceNumber string `json:"invoice_number"`
}

// InvoiceSnapshot is the read surface the rendering layer consumes.
type InvoiceSnapshot struct {
	SessionID    string        `json:"session_id"`
	Invoice      ActiveInvoice `json:"invoice"`
	HeldInvoices []HeldInvoice `json:"held_invoices"`
	LastSaleID   string        `json:"last_sale_id,omitempty"`
	LastSaleErr  string        `json:"last_sale_error,omitempty"`
}

type FinalizeResponse struct {
	Sale SaleRecord `json:"sale"`
}

type SaleSearchParams struct {
	InvoiceNumber string
	CustomerName  string
	Status        string
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

type SaleListResponse struct {
	Sales      []SaleRecord `json:"sales"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"total_pages"`
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

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
	SaleStatusRefunded  = "refunded"
)
