package reconcile

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendTracking(ctx context.Context, rec model.TrackingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) ListTracking(ctx context.Context, filter store.TrackingFilter) ([]model.TrackingRecord, error) {
	args := m.Called(ctx, filter)
	if recs := args.Get(0); recs != nil {
		return recs.([]model.TrackingRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetTracking(ctx context.Context, emailID string) (*model.TrackingRecord, error) {
	args := m.Called(ctx, emailID)
	if rec := args.Get(0); rec != nil {
		return rec.(*model.TrackingRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateTracking(ctx context.Context, emailID string, upd model.TrackingUpdate) error {
	args := m.Called(ctx, emailID, upd)
	return args.Error(0)
}

func (m *mockStore) FindOpenTrackingByEmail(ctx context.Context, email string) (*model.TrackingRecord, error) {
	args := m.Called(ctx, email)
	if rec := args.Get(0); rec != nil {
		return rec.(*model.TrackingRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	args := m.Called(ctx)
	if customers := args.Get(0); customers != nil {
		return customers.([]model.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	args := m.Called(ctx, customerID)
	if c := args.Get(0); c != nil {
		return c.(*model.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateCustomer(ctx context.Context, customerID string, upd model.CustomerUpdate) error {
	args := m.Called(ctx, customerID, upd)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncReply(ctx context.Context, c model.Customer, rs ReplySync) error {
	args := m.Called(ctx, c, rs)
	return args.Error(0)
}

type stubReader struct {
	replies []model.InboundReply
	err     error
	since   time.Duration
}

func (r *stubReader) Fetch(ctx context.Context, since time.Duration) ([]model.InboundReply, error) {
	r.since = since
	return r.replies, r.err
}

var _ store.Store = (*mockStore)(nil)
