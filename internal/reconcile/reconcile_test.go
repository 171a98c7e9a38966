package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/cache"
	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

func newTestReconciler(st *mockStore, sf SalesforceSyncer) *Reconciler {
	orch := classify.NewOrchestrator(nil, stage.Default(), classify.OrchestratorConfig{})
	return New(st, orch, stage.Default(), cache.New(time.Minute), sf, Config{})
}

func openTracking(emailID, email string, stageNum int) *model.TrackingRecord {
	return &model.TrackingRecord{
		EmailID:       emailID,
		CustomerID:    "cust-1",
		CompanyName:   "Acme Chemicals",
		ContactEmail:  email,
		PipelineStage: stageNum,
		Status:        model.StatusSent,
		SentDate:      time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestProcessReplies_QuotationAdvancesToNegotiation(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "buyer@acme.com").
		Return(openTracking("em-1", "buyer@acme.com", 3), nil)
	st.On("ListCustomers", mock.Anything).Return([]model.Customer{
		{ID: "cust-1", CompanyName: "Acme Chemicals", ContactEmail: "buyer@acme.com", PipelineStage: 3},
	}, nil)

	var gotUpdate model.TrackingUpdate
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2).(model.TrackingUpdate)
		}).Return(nil)

	var gotCustomer model.CustomerUpdate
	st.On("UpdateCustomer", mock.Anything, "cust-1", mock.Anything).
		Run(func(args mock.Arguments) {
			gotCustomer = args.Get(2).(model.CustomerUpdate)
		}).Return(nil)

	r := newTestReconciler(st, nil)
	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{
			From:    "Jo Smith <buyer@acme.com>",
			Subject: "Re: quartz supply",
			Body:    "please send your quotation for 20 tons",
			Date:    time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Errors)

	assert.Equal(t, model.StatusReplied, gotUpdate.Status)
	require.NotNil(t, gotUpdate.Replied)
	assert.True(t, *gotUpdate.Replied)
	require.NotNil(t, gotUpdate.DetectedStage)
	assert.Equal(t, 5, *gotUpdate.DetectedStage)
	require.NotNil(t, gotUpdate.ReplySummary)
	assert.Equal(t, "[Quotation Request] please send your quotation for 20 tons", *gotUpdate.ReplySummary)
	require.NotNil(t, gotUpdate.NextAction)
	assert.Contains(t, *gotUpdate.NextAction, "Send Stage 5")

	require.NotNil(t, gotCustomer.PipelineStage)
	assert.Equal(t, 5, *gotCustomer.PipelineStage)
	assert.Equal(t, model.EngagementHot, gotCustomer.Engagement)

	out := res.Outcomes[0]
	assert.Equal(t, model.IntentQuotationRequest, out.Intent)
	assert.Equal(t, 3, out.CurrentStage)
	assert.Equal(t, 5, out.DetectedStage)
	st.AssertExpectations(t)
}

func TestProcessReplies_DeclinedGetsLostAction(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "buyer@acme.com").
		Return(openTracking("em-1", "buyer@acme.com", 3), nil)
	st.On("ListCustomers", mock.Anything).Return([]model.Customer{
		{ID: "cust-1", ContactEmail: "buyer@acme.com"},
	}, nil)

	var gotUpdate model.TrackingUpdate
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2).(model.TrackingUpdate)
		}).Return(nil)
	st.On("UpdateCustomer", mock.Anything, "cust-1",
		mock.MatchedBy(func(u model.CustomerUpdate) bool {
			return u.Engagement == model.EngagementCold
		})).Return(nil)

	r := newTestReconciler(st, nil)
	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "buyer@acme.com", Body: "please unsubscribe"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	require.NotNil(t, gotUpdate.NextAction)
	assert.Equal(t, "Customer declined - move to Lost/Inactive", *gotUpdate.NextAction)
	st.AssertExpectations(t)
}

func TestProcessReplies_SpamFilteredBeforeLookup(t *testing.T) {
	st := &mockStore{}
	r := newTestReconciler(st, nil)

	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "Pinterest <news@pinterest.com>", Body: "weekly picks"},
		{From: "mailer-daemon@googlemail.com", Body: "delivery failed"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Spam)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, "spam", res.Outcomes[0].SkipReason)
	st.AssertNotCalled(t, "FindOpenTrackingByEmail", mock.Anything, mock.Anything)
}

func TestDefaultSpamFragments_CoverNotificationSenders(t *testing.T) {
	st := &mockStore{}
	r := newTestReconciler(st, nil)

	senders := []string{
		"recs@inspire.pinterest.com",
		"contributor@shutterstock.com",
		"learn@coursera.org",
		"updates@discord.com",
		"news@malwarebytes.com",
		"no-reply@dropbox.com",
	}
	for _, s := range senders {
		assert.True(t, r.isSpam(s), "expected %s to be filtered", s)
	}
	assert.False(t, r.isSpam("buyer@acme.com"))
}

func TestProcessReplies_NoOpenRecordSkips(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "stranger@new.com").Return(nil, nil)

	r := newTestReconciler(st, nil)
	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "stranger@new.com", Body: "hello, who is this?"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, "no_open_record", res.Outcomes[0].SkipReason)
}

func TestProcessReplies_StoreErrorDoesNotAbortBatch(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "a@one.com").
		Return(openTracking("em-1", "a@one.com", 2), nil)
	st.On("FindOpenTrackingByEmail", mock.Anything, "b@two.com").
		Return(openTracking("em-2", "b@two.com", 2), nil)
	st.On("ListCustomers", mock.Anything).Return(nil, eris.New("roster down"))
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).
		Return(eris.New("row locked"))
	st.On("UpdateTracking", mock.Anything, "em-2", mock.Anything).Return(nil)

	r := newTestReconciler(st, nil)
	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "a@one.com", Body: "please unsubscribe"},
		{From: "b@two.com", Body: "please unsubscribe"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Errors)
	st.AssertExpectations(t)
}

func TestProcessReplies_SalesforceSyncReceivesNewPosition(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "buyer@acme.com").
		Return(openTracking("em-1", "buyer@acme.com", 3), nil)
	st.On("ListCustomers", mock.Anything).Return([]model.Customer{
		{ID: "cust-1", ContactEmail: "buyer@acme.com", SalesforceID: "003xx"},
	}, nil)
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).Return(nil)
	st.On("UpdateCustomer", mock.Anything, "cust-1", mock.Anything).Return(nil)

	sf := &mockSyncer{}
	sf.On("SyncReply", mock.Anything, mock.MatchedBy(func(c model.Customer) bool {
		return c.ID == "cust-1" && c.PipelineStage == 5 && c.Engagement == model.EngagementHot
	}), mock.MatchedBy(func(rs ReplySync) bool {
		return rs.Intent == model.IntentQuotationRequest && !rs.ReplyDate.IsZero() &&
			strings.Contains(rs.Summary, "please send your quotation")
	})).Return(nil)

	r := newTestReconciler(st, sf)
	_, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "buyer@acme.com", Body: "please send your quotation for 20 tons"},
	})
	require.NoError(t, err)
	sf.AssertExpectations(t)
}

func TestProcessReplies_SalesforceFailureIsNonFatal(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "buyer@acme.com").
		Return(openTracking("em-1", "buyer@acme.com", 3), nil)
	st.On("ListCustomers", mock.Anything).Return([]model.Customer{
		{ID: "cust-1", ContactEmail: "buyer@acme.com"},
	}, nil)
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).Return(nil)
	st.On("UpdateCustomer", mock.Anything, "cust-1", mock.Anything).Return(nil)

	sf := &mockSyncer{}
	sf.On("SyncReply", mock.Anything, mock.Anything, mock.Anything).Return(eris.New("sf unavailable"))

	r := newTestReconciler(st, sf)
	res, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "buyer@acme.com", Body: "please send your quotation for 20 tons"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Errors)
}

func TestProcessReplies_GeneralReplyFallsBackToNextStage(t *testing.T) {
	st := &mockStore{}
	st.On("FindOpenTrackingByEmail", mock.Anything, "buyer@acme.com").
		Return(openTracking("em-1", "buyer@acme.com", 3), nil)
	st.On("ListCustomers", mock.Anything).Return(nil, nil)

	var gotUpdate model.TrackingUpdate
	st.On("UpdateTracking", mock.Anything, "em-1", mock.Anything).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2).(model.TrackingUpdate)
		}).Return(nil)

	r := newTestReconciler(st, nil)
	// No rule keyword anywhere; keyword-only classification yields General
	// Reply with no stage signal, so the record advances by one.
	_, err := r.ProcessReplies(context.Background(), []model.InboundReply{
		{From: "buyer@acme.com", Body: "Thanks, I will circle back with colleagues."},
	})
	require.NoError(t, err)
	require.NotNil(t, gotUpdate.DetectedStage)
	assert.Equal(t, 4, *gotUpdate.DetectedStage)
}

func TestCheckReplies_UsesConfiguredWindow(t *testing.T) {
	st := &mockStore{}
	reader := &stubReader{}

	orch := classify.NewOrchestrator(nil, stage.Default(), classify.OrchestratorConfig{})
	r := New(st, orch, stage.Default(), cache.New(time.Minute), nil, Config{Since: 6 * time.Hour})

	res, err := r.CheckReplies(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Found)
	assert.Equal(t, 6*time.Hour, reader.since)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 150))
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncate(string(long), 150), 150)
}
