package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendTracking(ctx context.Context, rec model.TrackingRecord) error {
	return m.Called(ctx, rec).Error(0)
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
	return m.Called(ctx, emailID, upd).Error(0)
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
	return m.Called(ctx, customerID, upd).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

var _ store.Store = (*mockStore)(nil)

func TestCollector_Collect(t *testing.T) {
	st := &mockStore{}
	st.On("ListCustomers", mock.Anything).Return([]model.Customer{
		{ID: "c1", PipelineStage: 3, Engagement: model.EngagementHot},
		{ID: "c2", PipelineStage: 3, Engagement: model.EngagementWarm},
		{ID: "c3", PipelineStage: 5, Engagement: model.EngagementHot},
		{ID: "c4", PipelineStage: 1},
	}, nil)
	st.On("ListTracking", mock.Anything, store.TrackingFilter{Limit: 10000}).
		Return([]model.TrackingRecord{
			{EmailID: "e1", Replied: true},
			{EmailID: "e2"},
			{EmailID: "e3", Replied: true},
			{EmailID: "e4"},
		}, nil)

	snap, err := NewCollector(st).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalCustomers)
	assert.Equal(t, 2, snap.StageCounts[3])
	assert.Equal(t, 1, snap.StageCounts[5])
	assert.Equal(t, 2, snap.Engagement[model.EngagementHot])
	assert.Equal(t, 4, snap.TotalTracked)
	assert.Equal(t, 2, snap.Replied)
	assert.InDelta(t, 0.5, snap.ReplyRate, 0.001)
}
