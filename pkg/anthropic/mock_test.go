package anthropic

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*BatchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if resp := args.Get(0); resp != nil {
		return resp.(*BatchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if iter := args.Get(0); iter != nil {
		return iter.(BatchResultIterator), args.Error(1)
	}
	return nil, args.Error(1)
}

var _ Client = (*MockClient)(nil)

// sliceIterator is a BatchResultIterator over a fixed result set.
type sliceIterator struct {
	items  []BatchResultItem
	idx    int
	err    error
	closed bool
}

func newSliceIterator(items []BatchResultItem) *sliceIterator {
	return &sliceIterator{items: items, idx: -1}
}

func (it *sliceIterator) Next() bool {
	if it.err != nil || it.idx+1 >= len(it.items) {
		return false
	}
	it.idx++
	return true
}

func (it *sliceIterator) Item() BatchResultItem { return it.items[it.idx] }
func (it *sliceIterator) Err() error            { return it.err }
func (it *sliceIterator) Close() error          { it.closed = true; return nil }
