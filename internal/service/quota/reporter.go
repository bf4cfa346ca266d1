package quota

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Reporter periodically logs quota usage. It only reads the store.
type Reporter struct {
	store *Store
	cron  *cron.Cron
}

// NewReporter creates a Reporter whose schedule runs in loc.
func NewReporter(store *Store, loc *time.Location) *Reporter {
	return &Reporter{
		store: store,
		cron:  cron.New(cron.WithLocation(loc)),
	}
}

// ScheduleInterval registers the report to run every interval.
func (r *Reporter) ScheduleInterval(interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return r.cron.AddFunc(spec, func() { r.Report() })
}

// Report logs the current usage and returns it.
func (r *Reporter) Report() Stats {
	stats := r.store.Stats()
	log.Printf("[quota] active users=%d exhausted=%d reserved=%d limit=%d",
		stats.Users, stats.Exhausted, stats.Reserved, r.store.Limit())
	return stats
}

func (r *Reporter) Start() {
	r.cron.Start()
}

func (r *Reporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
