package engine

import (
	"log"
	"time"
)

const (
	EventItemAdded        = "item_added"
	EventItemChanged      = "item_changed"
	EventItemRemoved      = "item_removed"
	EventTotalsRecomputed = "totals_recomputed"
	EventInvoiceHeld      = "invoice_held"
	EventInvoiceResumed   = "invoice_resumed"
	EventInvoiceFinalized = "invoice_finalized"
	EventFinalizeFailed   = "finalize_failed"
)

// Event carries enough payload for a UI to render a toast or refresh a view.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	LineID    string    `json:"line_id,omitempty"`
	HeldID    string    `json:"held_id,omitempty"`
	SaleID    string    `json:"sale_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(event Event)
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(Event) {}

// LogNotifier writes every engine event to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(event Event) {
	log.Printf("[engine] event=%s session=%s line=%s held=%s sale=%s %s",
		event.Type, event.SessionID, event.LineID, event.HeldID, event.SaleID, event.Message)
}
