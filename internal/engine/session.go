package engine

import (
	"sync"

	"garmentpos/backend/internal/domain"
	"garmentpos/backend/internal/money"
	"garmentpos/backend/internal/xid"
)

// Session owns the state for one POS terminal: the single invoice-in-progress,
// the held-invoice collection, and the outcome of the last finalize attempt.
// Sessions are fully independent of each other; a mutex serializes operations
// within one session so hold/resume never observe a half-applied draft.
type Session struct {
	mu          sync.Mutex
	id          string
	invoice     domain.ActiveInvoice
	held        []domain.HeldInvoice
	lastSaleID  string
	lastSaleErr string
}

func newSession(id string) *Session {
	return &Session{
		id:      id,
		invoice: freshDraft(),
		held:    make([]domain.HeldInvoice, 0, 4),
	}
}

func freshDraft() domain.ActiveInvoice {
	return domain.ActiveInvoice{
		InvoiceNumber: xid.InvoiceNumber(),
		Lines:         []domain.LineItem{},
	}
}

func (s *Session) ID() string {
	return s.id
}

// snapshotLocked builds the read view. Monetary values are display-rounded on
// the copy only; the session keeps full precision internally.
func (s *Session) snapshotLocked() domain.InvoiceSnapshot {
	held := make([]domain.HeldInvoice, len(s.held))
	for i, h := range s.held {
		held[i] = domain.HeldInvoice{ID: h.ID, Invoice: roundInvoice(h.Invoice.Clone()), HeldAt: h.HeldAt}
	}

	return domain.InvoiceSnapshot{
		SessionID:    s.id,
		Invoice:      roundInvoice(s.invoice.Clone()),
		HeldInvoices: held,
		LastSaleID:   s.lastSaleID,
		LastSaleErr:  s.lastSaleErr,
	}
}

func roundInvoice(inv domain.ActiveInvoice) domain.ActiveInvoice {
	for i := range inv.Lines {
		inv.Lines[i].UnitPrice = money.RoundDisplay(inv.Lines[i].UnitPrice)
		inv.Lines[i].Discount = money.RoundDisplay(inv.Lines[i].Discount)
		inv.Lines[i].Total = money.RoundDisplay(inv.Lines[i].Total)
	}
	inv.Adjustments.ExtraLess = money.RoundDisplay(inv.Adjustments.ExtraLess)
	inv.Adjustments.Savings = money.RoundDisplay(inv.Adjustments.Savings)
	inv.Totals.Subtotal = money.RoundDisplay(inv.Totals.Subtotal)
	inv.Totals.Discount = money.RoundDisplay(inv.Totals.Discount)
	inv.Totals.Tax = money.RoundDisplay(inv.Totals.Tax)
	inv.Totals.InvoiceTotal = money.RoundDisplay(inv.Totals.InvoiceTotal)
	inv.Payment.CashAmount = money.RoundDisplay(inv.Payment.CashAmount)
	inv.Payment.CardAmount = money.RoundDisplay(inv.Payment.CardAmount)
	inv.Payment.UPIAmount = money.RoundDisplay(inv.Payment.UPIAmount)
	inv.Payment.BankTransferAmount = money.RoundDisplay(inv.Payment.BankTransferAmount)
	inv.Payment.ChangeGiven = money.RoundDisplay(inv.Payment.ChangeGiven)
	return inv
}
