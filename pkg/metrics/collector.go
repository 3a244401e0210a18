package metrics

import (
	"time"

	"github.com/cuemby/modio-go/pkg/collection"
)

// collectorInterval matches the teacher's Collector's own polling period.
const collectorInterval = 15 * time.Second

// Collector periodically polls a Collection and updates CollectionSize,
// generalized from the teacher's pkg/metrics.Collector (which polled a
// manager for node/service/task counts on the same ticker shape).
type Collector struct {
	collection *collection.Collection
	stopCh     chan struct{}
}

// NewCollector builds a Collector over col. Call Start to begin polling.
func NewCollector(col *collection.Collection) *Collector {
	return &Collector{collection: col, stopCh: make(chan struct{})}
}

// Start begins polling on a ticker, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(collectorInterval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts polling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	counts := make(map[string]int)
	for _, e := range c.collection.All() {
		counts[string(e.State())]++
	}
	for state, count := range counts {
		CollectionSize.WithLabelValues(state).Set(float64(count))
	}
}
