package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// PipelineSnapshot holds a point-in-time view of the outreach pipeline.
type PipelineSnapshot struct {
	TotalCustomers int                      `json:"total_customers"`
	StageCounts    map[int]int              `json:"stage_counts"`
	Engagement     map[model.Engagement]int `json:"engagement_counts"`

	TotalTracked int     `json:"total_tracked"`
	Replied      int     `json:"replied"`
	ReplyRate    float64 `json:"reply_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers pipeline aggregates from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a pipeline metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect builds a snapshot of stage distribution, engagement mix, and reply
// rate.
func (c *Collector) Collect(ctx context.Context) (*PipelineSnapshot, error) {
	snap := &PipelineSnapshot{
		StageCounts: make(map[int]int),
		Engagement:  make(map[model.Engagement]int),
		CollectedAt: time.Now().UTC(),
	}

	customers, err := c.store.ListCustomers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list customers")
	}
	snap.TotalCustomers = len(customers)
	for _, cust := range customers {
		snap.StageCounts[cust.PipelineStage]++
		if cust.Engagement != "" {
			snap.Engagement[cust.Engagement]++
		}
	}

	recs, err := c.store.ListTracking(ctx, store.TrackingFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list tracking")
	}
	snap.TotalTracked = len(recs)
	for _, rec := range recs {
		if rec.Replied {
			snap.Replied++
		}
	}
	if snap.TotalTracked > 0 {
		snap.ReplyRate = float64(snap.Replied) / float64(snap.TotalTracked)
	}
	return snap, nil
}
