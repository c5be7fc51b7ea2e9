package reconcile

import (
	"sync"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

// Collector is an append-only, concurrency-safe set of action reports.
type Collector struct {
	mu      sync.Mutex
	reports []domain.ActionReport
}

func (c *Collector) Add(report domain.ActionReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, report)
}

// Reports returns a copy of everything collected so far.
func (c *Collector) Reports() []domain.ActionReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ActionReport(nil), c.reports...)
}
