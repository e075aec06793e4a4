package model

import "time"

// ProcessingStatus is the canonical lifecycle state of a deal. The CRM record
// is the system of record; this process only ever moves a deal forward along
// to_start -> in_progress -> {done, failed}, with failed -> in_progress as
// the single retry back-edge.
type ProcessingStatus string

const (
	StatusToStart    ProcessingStatus = "to_start"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusDone       ProcessingStatus = "done"
	StatusFailed     ProcessingStatus = "failed"
)

// transitions is the full set of legal status edges.
var transitions = map[ProcessingStatus]map[ProcessingStatus]bool{
	StatusToStart:    {StatusInProgress: true},
	StatusInProgress: {StatusDone: true, StatusFailed: true},
	StatusFailed:     {StatusInProgress: true},
	StatusDone:       {},
}

// CanTransition reports whether moving a deal from one status to another is
// legal. Every skip of in_progress is illegal, as is any edge out of done.
func CanTransition(from, to ProcessingStatus) bool {
	return transitions[from][to]
}

// Claimable reports whether a deal in this status may be claimed for
// processing. in_progress is deliberately excluded: another path owns it.
func (s ProcessingStatus) Claimable() bool {
	return s == StatusToStart || s == StatusFailed
}

// Terminal reports whether the status is an end state for one attempt.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// StoreType distinguishes the two scoring paths.
type StoreType string

const (
	StoreTypeOnline   StoreType = "online"
	StoreTypePhysical StoreType = "physical"
)

// Deal is the CRM deal record as read by this process. The CRM owns the
// record; fields here mirror the deal properties the pipeline reads.
type Deal struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Amount    float64          `json:"amount,omitempty"`
	Pipeline  string           `json:"pipeline"`
	Source    string           `json:"source"`
	Status    ProcessingStatus `json:"status"`
	VATNumber string           `json:"vat_number,omitempty"`
	Domain    string           `json:"domain,omitempty"`
	Category  string           `json:"category,omitempty"`
	StoreType StoreType        `json:"store_type,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
}

// Online reports whether the deal takes the e-commerce scoring path.
func (d *Deal) Online() bool {
	return d.StoreType == StoreTypeOnline
}
