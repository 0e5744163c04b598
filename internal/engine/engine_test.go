package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"garmentpos/backend/internal/domain"
	"garmentpos/backend/internal/money"
	"garmentpos/backend/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakeRepo struct {
	products  map[string]domain.Product
	customers map[string]domain.Customer
	sales     []domain.SaleRecord
	saleErr   error
}

func newFakeRepo() *fakeRepo {
	price37 := dec("120")
	return &fakeRepo{
		products: map[string]domain.Product{
			"TS-001": {
				ID: "prod-1", SKU: "TS-001", Name: "Classic Tee", Category: "T-Shirts",
				Price: dec("100"), MRP: dec("120"), Stock: 10, Active: true,
				Sizes: []domain.ProductVariant{
					{Name: "M", Stock: 3},
					{Name: "L", Stock: 6},
				},
				Colors: []domain.ProductVariant{
					{Name: "Black", Stock: 8},
					{Name: "White", Stock: 2},
				},
			},
			"SH-037": {
				ID: "prod-2", SKU: "SH-037", Name: "Oxford Shirt", Category: "Shirts",
				Price: dec("80"), MRP: dec("150"), Stock: 5, Active: true,
				Sizes: []domain.ProductVariant{{Name: "42", Stock: 5, Price: &price37}},
			},
		},
		customers: map[string]domain.Customer{
			"cust-1": {ID: "cust-1", Name: "Asha Traders", Phone: "9000000001", GSTNo: "27AAAAA0000A1Z5"},
		},
	}
}

func (r *fakeRepo) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	p, ok := r.products[strings.ToUpper(sku)]
	if !ok || !p.Active {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *fakeRepo) VariantQuote(ctx context.Context, sku string, size string, color string) (*domain.VariantQuote, error) {
	p, err := r.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return store.Quote(*p, size, color)
}

func (r *fakeRepo) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *fakeRepo) SearchCustomers(_ context.Context, _ string, _ int) ([]domain.Customer, error) {
	return nil, nil
}

func (r *fakeRepo) CreateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if r.saleErr != nil {
		return nil, r.saleErr
	}
	r.sales = append(r.sales, sale)
	return &sale, nil
}

func (r *fakeRepo) GetSaleByID(_ context.Context, _ string) (*domain.SaleRecord, error) {
	return nil, store.ErrNotFound
}

func (r *fakeRepo) ListSales(_ context.Context, _ domain.SaleSearchParams) (domain.SaleListResponse, error) {
	return domain.SaleListResponse{}, nil
}

func (r *fakeRepo) CreateUser(_ context.Context, _ domain.UserAccount) error { return nil }

func (r *fakeRepo) ListUsers(_ context.Context) ([]domain.UserAccount, error) { return nil, nil }

func (r *fakeRepo) UpdateUserPassword(_ context.Context, _ string, _ string) error { return nil }

func newTestEngine(repo store.Repository) *Engine {
	return New(repo, nil, money.NewCalculator(dec("5")), nil, 0)
}

func addTee(t *testing.T, e *Engine, session string, qty int) domain.InvoiceSnapshot {
	t.Helper()
	snap, err := e.AddItem(context.Background(), session, domain.AddItemRequest{
		SKU: "TS-001", Size: "L", Color: "Black", Quantity: qty,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return snap
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	for _, qty := range []int{0, -2} {
		_, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{SKU: "TS-001", Quantity: qty})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestAddItemOverStockLeavesCartUntouched(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	// Size M stock is 3.
	_, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
		SKU: "TS-001", Size: "M", Quantity: 5,
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	snap := e.Snapshot("t1")
	if len(snap.Invoice.Lines) != 0 {
		t.Fatalf("expected empty cart after rejected add, got %d lines", len(snap.Invoice.Lines))
	}
	if !snap.Invoice.Totals.InvoiceTotal.IsZero() {
		t.Fatalf("expected zero total, got %s", snap.Invoice.Totals.InvoiceTotal)
	}
}

func TestAddItemUnknownVariant(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	_, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
		SKU: "TS-001", Size: "XXL", Quantity: 1,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown size, got %v", err)
	}
}

func TestAddItemMergesSameVariant(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	first := addTee(t, e, "t1", 2)
	second := addTee(t, e, "t1", 1)

	if len(second.Invoice.Lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(second.Invoice.Lines))
	}
	line := second.Invoice.Lines[0]
	if line.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", line.Quantity)
	}
	if line.ID != first.Invoice.Lines[0].ID {
		t.Fatalf("merge must keep the original line id")
	}
	if !line.UnitPrice.Equal(dec("100")) {
		t.Fatalf("merge must keep the original price snapshot, got %s", line.UnitPrice)
	}
}

func TestAddItemMergeRespectsStock(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	// Color White has stock 2; two singles fit, a third must not.
	for i := 0; i < 2; i++ {
		if _, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
			SKU: "TS-001", Color: "White", Quantity: 1,
		}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	_, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
		SKU: "TS-001", Color: "White", Quantity: 1,
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock on merged overflow, got %v", err)
	}
}

func TestVariantPriceOverride(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	snap, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
		SKU: "SH-037", Size: "42", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !snap.Invoice.Lines[0].UnitPrice.Equal(dec("120")) {
		t.Fatalf("expected size price override 120, got %s", snap.Invoice.Lines[0].UnitPrice)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	snap := addTee(t, e, "t1", 2)

	out, err := e.SetQuantity(context.Background(), "t1", snap.Invoice.Lines[0].ID, 0)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if len(out.Invoice.Lines) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(out.Invoice.Lines))
	}
	if !out.Invoice.Totals.InvoiceTotal.IsZero() {
		t.Fatalf("expected zero total after removal, got %s", out.Invoice.Totals.InvoiceTotal)
	}
}

func TestSetQuantityUnknownLine(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 1)

	if _, err := e.SetQuantity(context.Background(), "t1", "line-missing", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetQuantityOverStockKeepsLine(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	snap := addTee(t, e, "t1", 2)

	// Size L stock is 6.
	_, err := e.SetQuantity(context.Background(), "t1", snap.Invoice.Lines[0].ID, 9)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	after := e.Snapshot("t1")
	if after.Invoice.Lines[0].Quantity != 2 {
		t.Fatalf("rejected update must keep quantity 2, got %d", after.Invoice.Lines[0].Quantity)
	}
}

func TestRemoveItemIdempotent(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	snap := addTee(t, e, "t1", 1)

	out := e.RemoveItem("t1", snap.Invoice.Lines[0].ID)
	if len(out.Invoice.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(out.Invoice.Lines))
	}
	out = e.RemoveItem("t1", snap.Invoice.Lines[0].ID)
	if len(out.Invoice.Lines) != 0 {
		t.Fatalf("second remove must be a no-op")
	}
}

func TestTotalsRecomputeOnEveryMutation(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	snap := addTee(t, e, "t1", 2)

	// 2 x 100 at 5% GST.
	if !snap.Invoice.Totals.Subtotal.Equal(dec("200")) {
		t.Fatalf("subtotal: got %s", snap.Invoice.Totals.Subtotal)
	}
	if !snap.Invoice.Totals.Tax.Equal(dec("10")) {
		t.Fatalf("tax: got %s", snap.Invoice.Totals.Tax)
	}
	if !snap.Invoice.Totals.InvoiceTotal.Equal(dec("210")) {
		t.Fatalf("total: got %s", snap.Invoice.Totals.InvoiceTotal)
	}
}

func TestSetAdjustmentsNegativeSavings(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2)

	_, err := e.SetAdjustments("t1", domain.AdjustmentsRequest{Savings: decPtr("-5")})
	if !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
	}
}

func TestSetAdjustmentsRejectsNegativeTotal(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2) // total 210

	before := e.Snapshot("t1")
	_, err := e.SetAdjustments("t1", domain.AdjustmentsRequest{ExtraLess: decPtr("-300")})
	if !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
	}
	after := e.Snapshot("t1")
	if !after.Invoice.Adjustments.ExtraLess.Equal(before.Invoice.Adjustments.ExtraLess) {
		t.Fatalf("rejected adjustment must leave state untouched")
	}
	if !after.Invoice.Totals.InvoiceTotal.Equal(dec("210")) {
		t.Fatalf("total changed after rejected adjustment: %s", after.Invoice.Totals.InvoiceTotal)
	}
}

func TestAdjustmentsFlowIntoTotal(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2) // total 210

	snap, err := e.SetAdjustments("t1", domain.AdjustmentsRequest{
		Savings:   decPtr("10"),
		ExtraLess: decPtr("-5"),
	})
	if err != nil {
		t.Fatalf("SetAdjustments: %v", err)
	}
	// 210 - 10 savings - 5 extra less
	if !snap.Invoice.Totals.InvoiceTotal.Equal(dec("195")) {
		t.Fatalf("expected total 195, got %s", snap.Invoice.Totals.InvoiceTotal)
	}
}

func TestSetTenderComputesChange(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2) // total 210

	snap, err := e.SetTender("t1", domain.TenderRequest{
		CashAmount: decPtr("150"),
		UPIAmount:  decPtr("100"),
	})
	if err != nil {
		t.Fatalf("SetTender: %v", err)
	}
	if !snap.Invoice.Payment.ChangeGiven.Equal(dec("40")) {
		t.Fatalf("expected change 40, got %s", snap.Invoice.Payment.ChangeGiven)
	}
}

func TestSetTenderUnderTenderGivesZeroChange(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2) // total 210

	snap, err := e.SetTender("t1", domain.TenderRequest{CardAmount: decPtr("50")})
	if err != nil {
		t.Fatalf("SetTender: %v", err)
	}
	if !snap.Invoice.Payment.ChangeGiven.IsZero() {
		t.Fatalf("under-tender must give zero change, got %s", snap.Invoice.Payment.ChangeGiven)
	}
}

func TestSetTenderRejectsNegativeAmount(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 1)

	_, err := e.SetTender("t1", domain.TenderRequest{CashAmount: decPtr("-1")})
	if !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
	}
}

func TestChangeRecomputedWhenCartChanges(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	snap := addTee(t, e, "t1", 2) // total 210

	if _, err := e.SetTender("t1", domain.TenderRequest{CashAmount: decPtr("250")}); err != nil {
		t.Fatalf("SetTender: %v", err)
	}

	out, err := e.SetQuantity(context.Background(), "t1", snap.Invoice.Lines[0].ID, 1)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	// total now 105, so change 145.
	if !out.Invoice.Payment.ChangeGiven.Equal(dec("145")) {
		t.Fatalf("expected change 145 after quantity change, got %s", out.Invoice.Payment.ChangeGiven)
	}
}

func TestHoldEmptyCart(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	if _, err := e.Hold("t1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestHoldResumeRoundTrip(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2)
	if _, err := e.SetCustomer(context.Background(), "t1", "cust-1"); err != nil {
		t.Fatalf("SetCustomer: %v", err)
	}
	if _, err := e.SetAdjustments("t1", domain.AdjustmentsRequest{Savings: decPtr("10")}); err != nil {
		t.Fatalf("SetAdjustments: %v", err)
	}
	before := e.Snapshot("t1")

	held, err := e.Hold("t1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	afterHold := e.Snapshot("t1")
	if len(afterHold.Invoice.Lines) != 0 {
		t.Fatalf("hold must reset the draft, got %d lines", len(afterHold.Invoice.Lines))
	}
	if afterHold.Invoice.InvoiceNumber == before.Invoice.InvoiceNumber {
		t.Fatalf("hold must issue a new invoice number for the fresh draft")
	}
	if len(afterHold.HeldInvoices) != 1 {
		t.Fatalf("expected one held invoice, got %d", len(afterHold.HeldInvoices))
	}

	resumed, err := e.Resume("t1", held.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Invoice.InvoiceNumber != before.Invoice.InvoiceNumber {
		t.Fatalf("resume must restore the invoice number")
	}
	if len(resumed.Invoice.Lines) != 1 || resumed.Invoice.Lines[0].Quantity != 2 {
		t.Fatalf("resume must restore the lines")
	}
	if resumed.Invoice.Customer == nil || resumed.Invoice.Customer.ID != "cust-1" {
		t.Fatalf("resume must restore the customer")
	}
	if !resumed.Invoice.Adjustments.Savings.Equal(dec("10")) {
		t.Fatalf("resume must restore adjustments, got %s", resumed.Invoice.Adjustments.Savings)
	}
	if len(resumed.HeldInvoices) != 0 {
		t.Fatalf("resume must remove the snapshot from the held collection")
	}
}

func TestResumeDiscardsCurrentDraft(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 1)
	held, err := e.Hold("t1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	// Start a second draft, then resume over it.
	if _, err := e.AddItem(context.Background(), "t1", domain.AddItemRequest{
		SKU: "SH-037", Size: "42", Quantity: 1,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	resumed, err := e.Resume("t1", held.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(resumed.Invoice.Lines) != 1 || resumed.Invoice.Lines[0].SKU != "TS-001" {
		t.Fatalf("resume must replace the draft wholesale")
	}
}

func TestResumeUnknownHeld(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	if _, err := e.Resume("t1", "held-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveHeldIdempotent(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 1)
	held, err := e.Hold("t1")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	out := e.RemoveHeld("t1", held.ID)
	if len(out.HeldInvoices) != 0 {
		t.Fatalf("expected held collection emptied")
	}
	out = e.RemoveHeld("t1", held.ID)
	if len(out.HeldInvoices) != 0 {
		t.Fatalf("second remove must be a no-op")
	}
}

func TestSetInvoiceNumberOverride(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	snap := e.SetInvoiceNumber("t1", "  INV-CUSTOM-7  ")
	if snap.Invoice.InvoiceNumber != "INV-CUSTOM-7" {
		t.Fatalf("expected trimmed override, got %q", snap.Invoice.InvoiceNumber)
	}
}

func TestFinalizePreconditions(t *testing.T) {
	e := newTestEngine(newFakeRepo())

	if _, err := e.Finalize(context.Background(), "t1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	addTee(t, e, "t1", 1)
	if _, err := e.Finalize(context.Background(), "t1"); !errors.Is(err, ErrNoCustomerSelected) {
		t.Fatalf("expected ErrNoCustomerSelected, got %v", err)
	}

	snap := e.Snapshot("t1")
	if len(snap.Invoice.Lines) != 1 {
		t.Fatalf("failed finalize must leave the draft intact")
	}
}

func TestFinalizeSuccess(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)
	addTee(t, e, "t1", 2)
	if _, err := e.SetCustomer(context.Background(), "t1", "cust-1"); err != nil {
		t.Fatalf("SetCustomer: %v", err)
	}
	if _, err := e.SetTender("t1", domain.TenderRequest{CashAmount: decPtr("250")}); err != nil {
		t.Fatalf("SetTender: %v", err)
	}

	sale, err := e.Finalize(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected status completed, got %q", sale.Status)
	}
	if sale.CustomerName != "Asha Traders" {
		t.Fatalf("expected customer snapshot on the record, got %q", sale.CustomerName)
	}
	if !sale.Total.Equal(dec("210")) {
		t.Fatalf("expected total 210, got %s", sale.Total)
	}
	if !sale.Payment.ChangeGiven.Equal(dec("40")) {
		t.Fatalf("expected change 40, got %s", sale.Payment.ChangeGiven)
	}
	if len(repo.sales) != 1 {
		t.Fatalf("expected one persisted sale, got %d", len(repo.sales))
	}

	snap := e.Snapshot("t1")
	if snap.LastSaleID != sale.ID {
		t.Fatalf("expected last sale id recorded")
	}
	if snap.LastSaleErr != "" {
		t.Fatalf("expected last sale error cleared, got %q", snap.LastSaleErr)
	}
}

func TestFinalizePersistenceFailureKeepsDraft(t *testing.T) {
	repo := newFakeRepo()
	repo.saleErr = errors.New("connection refused")
	e := newTestEngine(repo)
	addTee(t, e, "t1", 2)
	if _, err := e.SetCustomer(context.Background(), "t1", "cust-1"); err != nil {
		t.Fatalf("SetCustomer: %v", err)
	}

	_, err := e.Finalize(context.Background(), "t1")
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}

	snap := e.Snapshot("t1")
	if len(snap.Invoice.Lines) != 1 {
		t.Fatalf("persistence failure must preserve the draft")
	}
	if snap.LastSaleErr == "" {
		t.Fatalf("expected failure recorded on the session")
	}

	// Retry once the backend is healthy again.
	repo.saleErr = nil
	if _, err := e.Finalize(context.Background(), "t1"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	e := newTestEngine(newFakeRepo())
	addTee(t, e, "t1", 2)

	other := e.Snapshot("t2")
	if len(other.Invoice.Lines) != 0 {
		t.Fatalf("sessions must not share cart state")
	}
}
