package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/types"
)

// fetchFanOutLimit bounds how many newly-added subscriptions get their mod
// profile fetched concurrently in one flush, the same bounded-fan-out shape
// the teacher's metadata resolver uses for its own batch HTTP fetches.
const fetchFanOutLimit = 8

// flushSubscriptionDelta adds newly-subscribed mods to the collection in
// StateInstallPending and marks newly-unsubscribed ones
// StateUninstallPending, then records the new baseline as applied. Added
// mods are fetched concurrently, bounded by fetchFanOutLimit, since one
// delta can easily name dozens of mods and fetching them one at a time
// would waste most of a tick's wall-clock on round-trip latency rather
// than bandwidth.
func (s *Scheduler) flushSubscriptionDelta(ctx context.Context) error {
	s.mu.Lock()
	delta := types.Diff(s.applied, s.desired)
	applied := s.desired
	s.mu.Unlock()

	var toAdd []types.ModID
	for _, id := range delta.Added {
		if _, ok := s.collection.Get(id); !ok {
			toAdd = append(toAdd, id)
		}
	}

	var (
		mu      sync.Mutex
		entries []*types.Entry
		firstErr error
	)
	eg := new(errgroup.Group)
	eg.SetLimit(fetchFanOutLimit)
	for _, id := range toAdd {
		id := id
		eg.Go(func() error {
			entry, err := s.dispatcher.FlushSubscriptionAdd(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	}
	_ = eg.Wait()

	for _, entry := range entries {
		s.collection.Put(entry)
	}

	for _, id := range delta.Removed {
		entry, ok := s.collection.Get(id)
		if !ok {
			continue
		}
		tx := collection.Begin(entry)
		entry.SetState(types.StateUninstallPending)
		tx.Commit()
	}

	s.mu.Lock()
	s.applied = applied
	s.mu.Unlock()
	return firstErr
}
