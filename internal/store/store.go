// Package store persists outreach tracking records and customers. Three
// drivers implement the same interface: the shared spreadsheet the sales
// team works in (xlsx), a local sqlite file, and postgres.
package store

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
)

// TrackingFilter specifies criteria for listing tracking records.
type TrackingFilter struct {
	Status  model.EmailStatus `json:"status,omitempty"`
	Replied *bool             `json:"replied,omitempty"`
	Stage   int               `json:"stage,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Tracking records
	AppendTracking(ctx context.Context, rec model.TrackingRecord) error
	ListTracking(ctx context.Context, filter TrackingFilter) ([]model.TrackingRecord, error)
	GetTracking(ctx context.Context, emailID string) (*model.TrackingRecord, error)
	UpdateTracking(ctx context.Context, emailID string, upd model.TrackingUpdate) error

	// FindOpenTrackingByEmail returns the first still-open record (status
	// sent or queued, not yet replied) for a contact address, or nil when
	// none matches. With duplicate contact rows the earliest-sent open
	// record wins; later duplicates are left for manual review.
	FindOpenTrackingByEmail(ctx context.Context, email string) (*model.TrackingRecord, error)

	// Customers
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, upd model.CustomerUpdate) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
