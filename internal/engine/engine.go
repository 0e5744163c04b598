package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"garmentpos/backend/internal/cache"
	"garmentpos/backend/internal/domain"
	"garmentpos/backend/internal/money"
	"garmentpos/backend/internal/store"
	"garmentpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Engine drives the sales transaction and invoice lifecycle for any number of
// POS sessions. Each session owns exactly one invoice-in-progress; the engine
// itself holds no ambient invoice state, only the session registry and its
// collaborators (catalog/persistence repository, quote cache, calculator,
// event notifier).
type Engine struct {
	repo     store.Repository
	quotes   cache.QuoteCache
	quoteTTL time.Duration
	calc     money.Calculator
	notifier Notifier

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(repo store.Repository, quotes cache.QuoteCache, calc money.Calculator, notifier Notifier, quoteTTL time.Duration) *Engine {
	if quotes == nil {
		quotes = cache.NoopQuoteCache{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if quoteTTL <= 0 {
		quoteTTL = 15 * time.Second
	}

	return &Engine{
		repo:     repo,
		quotes:   quotes,
		quoteTTL: quoteTTL,
		calc:     calc,
		notifier: notifier,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for the given id, creating it with a fresh
// empty draft on first use.
func (e *Engine) Session(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "main-terminal"
	}

	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return sess
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[id]; ok {
		return sess
	}
	sess = newSession(id)
	e.sessions[id] = sess
	return sess
}

func (e *Engine) Snapshot(sessionID string) domain.InvoiceSnapshot {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked()
}

// AddItem appends a product/variant selection to the cart, or merges into an
// existing line for the same product+size+color. The merged quantity is
// re-checked against the stock snapshot taken now, not at original add time.
func (e *Engine) AddItem(ctx context.Context, sessionID string, req domain.AddItemRequest) (domain.InvoiceSnapshot, error) {
	if req.Quantity <= 0 {
		return domain.InvoiceSnapshot{}, ErrInvalidQuantity
	}
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return domain.InvoiceSnapshot{}, fmt.Errorf("%w: sku is required", ErrNotFound)
	}
	size := strings.TrimSpace(req.Size)
	color := strings.TrimSpace(req.Color)

	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	quote, err := e.variantQuote(ctx, sku, size, color)
	if err != nil {
		return domain.InvoiceSnapshot{}, err
	}

	lines := make([]domain.LineItem, len(sess.invoice.Lines))
	copy(lines, sess.invoice.Lines)

	lineID := ""
	merged := false
	for i, line := range lines {
		if line.SKU == sku && strings.EqualFold(line.Size, size) && strings.EqualFold(line.Color, color) {
			newQty := line.Quantity + req.Quantity
			if newQty > quote.AvailableStock {
				return domain.InvoiceSnapshot{}, ErrOutOfStock
			}
			// Merging keeps the price snapshot taken when the line was
			// first added.
			line.Quantity = newQty
			line.Total = e.calc.LineTotal(line.Quantity, line.UnitPrice, line.Discount)
			lines[i] = line
			lineID = line.ID
			merged = true
			break
		}
	}

	if !merged {
		if req.Quantity > quote.AvailableStock {
			return domain.InvoiceSnapshot{}, ErrOutOfStock
		}
		line := domain.LineItem{
			ID:          xid.New("line"),
			ProductID:   quote.ProductID,
			ProductName: quote.ProductName,
			SKU:         sku,
			Size:        size,
			Color:       color,
			Quantity:    req.Quantity,
			UnitPrice:   quote.UnitPrice,
		}
		line.Total = e.calc.LineTotal(line.Quantity, line.UnitPrice, line.Discount)
		lines = append(lines, line)
		lineID = line.ID
	}

	e.recomputeLocked(sess, lines, sess.invoice.Adjustments)

	eventType := EventItemAdded
	if merged {
		eventType = EventItemChanged
	}
	e.notify(Event{Type: eventType, SessionID: sess.id, LineID: lineID})
	e.notify(Event{Type: EventTotalsRecomputed, SessionID: sess.id})

	return sess.snapshotLocked(), nil
}

// SetQuantity changes a line's quantity. Zero removes the line; a quantity
// above the variant's currently available stock fails and leaves the line
// unchanged.
func (e *Engine) SetQuantity(ctx context.Context, sessionID string, lineID string, quantity int) (domain.InvoiceSnapshot, error) {
	if quantity < 0 {
		return domain.InvoiceSnapshot{}, ErrInvalidQuantity
	}

	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	idx := -1
	for i, line := range sess.invoice.Lines {
		if line.ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.InvoiceSnapshot{}, ErrNotFound
	}

	if quantity == 0 {
		return e.removeLineLocked(sess, lineID), nil
	}

	target := sess.invoice.Lines[idx]
	quote, err := e.variantQuote(ctx, target.SKU, target.Size, target.Color)
	if err != nil {
		return domain.InvoiceSnapshot{}, err
	}
	if quantity > quote.AvailableStock {
		return domain.InvoiceSnapshot{}, ErrOutOfStock
	}

	lines := make([]domain.LineItem, len(sess.invoice.Lines))
	copy(lines, sess.invoice.Lines)
	lines[idx].Quantity = quantity
	lines[idx].Total = e.calc.LineTotal(quantity, lines[idx].UnitPrice, lines[idx].Discount)

	e.recomputeLocked(sess, lines, sess.invoice.Adjustments)
	e.notify(Event{Type: EventItemChanged, SessionID: sess.id, LineID: lineID})
	e.notify(Event{Type: EventTotalsRecomputed, SessionID: sess.id})

	return sess.snapshotLocked(), nil
}

// RemoveItem removes a line from the cart. Removing an unknown id is a no-op.
func (e *Engine) RemoveItem(sessionID string, lineID string) domain.InvoiceSnapshot {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return e.removeLineLocked(sess, lineID)
}

func (e *Engine) removeLineLocked(sess *Session, lineID string) domain.InvoiceSnapshot {
	lines := make([]domain.LineItem, 0, len(sess.invoice.Lines))
	removed := false
	for _, line := range sess.invoice.Lines {
		if line.ID == lineID {
			removed = true
			continue
		}
		lines = append(lines, line)
	}
	if !removed {
		return sess.snapshotLocked()
	}

	e.recomputeLocked(sess, lines, sess.invoice.Adjustments)
	e.notify(Event{Type: EventItemRemoved, SessionID: sess.id, LineID: lineID})
	e.notify(Event{Type: EventTotalsRecomputed, SessionID: sess.id})
	return sess.snapshotLocked()
}

// SetCustomer attaches a customer snapshot to the draft. An empty id clears
// the selection.
func (e *Engine) SetCustomer(ctx context.Context, sessionID string, customerID string) (domain.InvoiceSnapshot, error) {
	customerID = strings.TrimSpace(customerID)

	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if customerID == "" {
		inv := sess.invoice
		inv.Customer = nil
		sess.invoice = inv
		return sess.snapshotLocked(), nil
	}

	customer, err := e.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.InvoiceSnapshot{}, ErrNotFound
		}
		return domain.InvoiceSnapshot{}, err
	}

	inv := sess.invoice
	snapshot := *customer
	inv.Customer = &snapshot
	sess.invoice = inv
	return sess.snapshotLocked(), nil
}

// SetAdjustments updates savings and/or extraLess. Savings must be
// non-negative, and the resulting invoice total must not go negative; a
// rejected update leaves both fields untouched.
func (e *Engine) SetAdjustments(sessionID string, req domain.AdjustmentsRequest) (domain.InvoiceSnapshot, error) {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	adjustments := sess.invoice.Adjustments
	if req.Savings != nil {
		if req.Savings.IsNegative() {
			return domain.InvoiceSnapshot{}, ErrInvalidAdjustment
		}
		adjustments.Savings = *req.Savings
	}
	if req.ExtraLess != nil {
		adjustments.ExtraLess = *req.ExtraLess
	}

	totals := e.calc.Totals(sess.invoice.Lines, adjustments)
	if totals.InvoiceTotal.IsNegative() {
		return domain.InvoiceSnapshot{}, ErrInvalidAdjustment
	}

	e.recomputeLocked(sess, sess.invoice.Lines, adjustments)
	e.notify(Event{Type: EventTotalsRecomputed, SessionID: sess.id})
	return sess.snapshotLocked(), nil
}

// SetTender updates any subset of the payment channels and recomputes the
// change due. Under-tender is allowed to persist; only negative amounts are
// rejected.
func (e *Engine) SetTender(sessionID string, req domain.TenderRequest) (domain.InvoiceSnapshot, error) {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, amount := range []*decimal.Decimal{req.CashAmount, req.CardAmount, req.UPIAmount, req.BankTransferAmount} {
		if amount != nil && amount.IsNegative() {
			return domain.InvoiceSnapshot{}, ErrInvalidAdjustment
		}
	}

	payment := sess.invoice.Payment
	if req.CashAmount != nil {
		payment.CashAmount = *req.CashAmount
	}
	if req.CardAmount != nil {
		payment.CardAmount = *req.CardAmount
	}
	if req.UPIAmount != nil {
		payment.UPIAmount = *req.UPIAmount
	}
	if req.BankTransferAmount != nil {
		payment.BankTransferAmount = *req.BankTransferAmount
	}

	inv := sess.invoice
	inv.Payment = money.Reconcile(payment, inv.Totals.InvoiceTotal)
	sess.invoice = inv

	e.notify(Event{Type: EventTotalsRecomputed, SessionID: sess.id})
	return sess.snapshotLocked(), nil
}

// SetInvoiceNumber overrides the draft's invoice number. No uniqueness check
// is performed here; that is the persistence layer's concern.
func (e *Engine) SetInvoiceNumber(sessionID string, value string) domain.InvoiceSnapshot {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	inv := sess.invoice
	inv.InvoiceNumber = strings.TrimSpace(value)
	sess.invoice = inv
	return sess.snapshotLocked()
}

// Hold parks the current draft into the held collection and resets the
// session to a fresh empty draft with a newly generated invoice number.
func (e *Engine) Hold(sessionID string) (domain.HeldInvoice, error) {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.invoice.Lines) == 0 {
		return domain.HeldInvoice{}, ErrEmptyCart
	}

	invoice := sess.invoice.Clone()
	if invoice.InvoiceNumber == "" {
		invoice.InvoiceNumber = xid.InvoiceNumber()
	}
	held := domain.HeldInvoice{
		ID:      xid.New("held"),
		Invoice: invoice,
		HeldAt:  time.Now().UTC(),
	}
	sess.held = append(sess.held, held)
	sess.invoice = freshDraft()

	e.notify(Event{Type: EventInvoiceHeld, SessionID: sess.id, HeldID: held.ID,
		Message: fmt.Sprintf("items=%d", len(held.Invoice.Lines))})

	return domain.HeldInvoice{ID: held.ID, Invoice: roundInvoice(held.Invoice.Clone()), HeldAt: held.HeldAt}, nil
}

// Resume replaces the current draft wholesale with a held snapshot and
// removes it from the held collection. Unsaved edits in the current draft
// are discarded.
func (e *Engine) Resume(sessionID string, heldID string) (domain.InvoiceSnapshot, error) {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	idx := -1
	for i, held := range sess.held {
		if held.ID == heldID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.InvoiceSnapshot{}, ErrNotFound
	}

	sess.invoice = sess.held[idx].Invoice.Clone()
	sess.held = append(sess.held[:idx], sess.held[idx+1:]...)

	e.notify(Event{Type: EventInvoiceResumed, SessionID: sess.id, HeldID: heldID})
	return sess.snapshotLocked(), nil
}

// RemoveHeld discards a held snapshot. Removing an unknown id is a no-op.
func (e *Engine) RemoveHeld(sessionID string, heldID string) domain.InvoiceSnapshot {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	held := make([]domain.HeldInvoice, 0, len(sess.held))
	for _, h := range sess.held {
		if h.ID == heldID {
			continue
		}
		held = append(held, h)
	}
	sess.held = held
	return sess.snapshotLocked()
}

// Finalize validates the draft, converts it into an immutable sale record and
// submits it to the persistence collaborator. On any failure the draft is
// preserved so the operator can retry; on success the draft is also left
// intact and clearing it is the caller's decision.
func (e *Engine) Finalize(ctx context.Context, sessionID string) (domain.SaleRecord, error) {
	sess := e.Session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.invoice.Lines) == 0 {
		return domain.SaleRecord{}, ErrEmptyCart
	}
	if sess.invoice.Customer == nil {
		return domain.SaleRecord{}, ErrNoCustomerSelected
	}

	invoice := sess.invoice.Clone()
	sale := domain.SaleRecord{
		ID:            xid.New("sale"),
		InvoiceNumber: invoice.InvoiceNumber,
		CustomerID:    invoice.Customer.ID,
		CustomerName:  invoice.Customer.Name,
		CustomerPhone: invoice.Customer.Phone,
		CustomerGSTNo: invoice.Customer.GSTNo,
		Items:         invoice.Lines,
		Subtotal:      invoice.Totals.Subtotal,
		Discount:      invoice.Totals.Discount,
		Tax:           invoice.Totals.Tax,
		Savings:       invoice.Adjustments.Savings,
		ExtraLess:     invoice.Adjustments.ExtraLess,
		Total:         invoice.Totals.InvoiceTotal,
		Payment:       invoice.Payment,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     time.Now().UTC(),
	}
	sale = money.RoundRecord(sale)

	created, err := e.repo.CreateSale(ctx, sale)
	if err != nil {
		sess.lastSaleErr = err.Error()
		e.notify(Event{Type: EventFinalizeFailed, SessionID: sess.id, Message: err.Error()})
		return domain.SaleRecord{}, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	sess.lastSaleID = created.ID
	sess.lastSaleErr = ""
	e.notify(Event{Type: EventInvoiceFinalized, SessionID: sess.id, SaleID: created.ID,
		Message: fmt.Sprintf("invoice=%s total=%s", created.InvoiceNumber, created.Total)})

	return *created, nil
}

func (e *Engine) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return e.repo.ListProducts(ctx)
}

func (e *Engine) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 20
	}
	return e.repo.SearchCustomers(ctx, strings.TrimSpace(query), limit)
}

func (e *Engine) ListSales(ctx context.Context, params domain.SaleSearchParams) (domain.SaleListResponse, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}
	return e.repo.ListSales(ctx, params)
}

// recomputeLocked swaps in a new invoice value with the given lines and
// adjustments, re-deriving totals and change synchronously so no read can
// ever observe stale derived state.
func (e *Engine) recomputeLocked(sess *Session, lines []domain.LineItem, adjustments domain.InvoiceAdjustments) {
	inv := sess.invoice
	inv.Lines = lines
	inv.Adjustments = adjustments
	inv.Totals = e.calc.Totals(lines, adjustments)
	inv.Payment = money.Reconcile(inv.Payment, inv.Totals.InvoiceTotal)
	sess.invoice = inv
}

func (e *Engine) variantQuote(ctx context.Context, sku string, size string, color string) (*domain.VariantQuote, error) {
	key := fmt.Sprintf("quote:%s|%s|%s", sku, strings.ToLower(size), strings.ToLower(color))

	cached, hit, err := e.quotes.Get(ctx, key)
	if err != nil {
		log.Printf("[engine] WARN: quote cache read failed key=%s: %v", key, err)
	}
	if hit {
		return cached, nil
	}

	quote, err := e.repo.VariantQuote(ctx, sku, size, color)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := e.quotes.Set(ctx, key, quote, e.quoteTTL); err != nil {
		log.Printf("[engine] WARN: quote cache write failed key=%s: %v", key, err)
	}
	return quote, nil
}

func (e *Engine) notify(event Event) {
	event.At = time.Now().UTC()
	e.notifier.Notify(event)
}
