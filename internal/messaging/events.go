package messaging

import (
	"time"

	"github.com/google/uuid"
)

// BoqDistributed is the body of boq.submitted and boq.updated
type BoqDistributed struct {
	BoqID             uuid.UUID `json:"boq_id"`
	BoqNumber         string    `json:"boq_number"`
	Status            string    `json:"status"`
	SectionTypes      []string  `json:"section_types"`
	SuppliersMatched  int       `json:"suppliers_matched"`
	SuppliersNotified int       `json:"suppliers_notified"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// AccessResponded is the body of boq.access.declined and boq.access.quoted
type AccessResponded struct {
	BoqID      uuid.UUID `json:"boq_id"`
	SupplierID uuid.UUID `json:"supplier_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CapabilitiesChanged is the body of supplier.capabilities.changed
type CapabilitiesChanged struct {
	SupplierID uuid.UUID `json:"supplier_id"`
}
