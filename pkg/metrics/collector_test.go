package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/types"
)

func TestCollectorUpdatesCollectionSize(t *testing.T) {
	col := collection.New()
	col.Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))
	entry := types.NewEntry(types.ModProfile{ID: 2}, "/mods/2")
	entry.SetState(types.StateInstalled)
	col.Put(entry)

	c := NewCollector(col)
	c.Start()
	defer c.Stop()

	time.Sleep(20 * time.Millisecond)

	got := testutil.ToFloat64(CollectionSize.WithLabelValues(string(entry.State())))
	if got != 1 {
		t.Errorf("CollectionSize{state=%s} = %v, want 1", entry.State(), got)
	}
}
