package ops

import (
	"context"

	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// Subscribe records the caller's subscription to modID server-side and,
// per spec.md §4.9/S6, treats a success-no-op error_ref identically to a
// 2xx — Send already folds that into a nil error, so callers here only
// ever see a genuine failure.
func (o *Ops) Subscribe(ctx context.Context, modID types.ModID) error {
	req := transport.NewRequest(transport.POST, "/v1/games/{game-id}/mods/{mod-id}/subscribe").
		WithPathParam("game-id", o.gameID).
		WithPathParam("mod-id", int64(modID))
	_, err := o.client.Send(ctx, req)
	return err
}

// Unsubscribe removes the caller's subscription server-side. Callers that
// get a failure here are expected to add modID to the deferred-unsubscribe
// ledger for a later retry rather than surface it immediately.
func (o *Ops) Unsubscribe(ctx context.Context, modID types.ModID) error {
	req := transport.NewRequest(transport.DELETE, "/v1/games/{game-id}/mods/{mod-id}/subscribe").
		WithPathParam("game-id", o.gameID).
		WithPathParam("mod-id", int64(modID))
	_, err := o.client.Send(ctx, req)
	return err
}

// FlushSubscriptionAdd implements scheduler.Dispatcher: fetch modID's
// profile and return a fresh collection entry for it in
// StateInstallPending, ready for the scheduler to Put into the collection.
func (o *Ops) FlushSubscriptionAdd(ctx context.Context, modID types.ModID) (*types.Entry, error) {
	profile, err := o.fetchModProfile(ctx, modID)
	if err != nil {
		return nil, err
	}
	o.modInfo.Put(profile)
	path := o.paths.ModInstallDir(o.gameID, int64(modID))
	entry := types.NewEntry(profile, path)
	return entry, nil
}

// RetryUnsubscribe implements scheduler.Dispatcher: retry a previously
// failed server-side unsubscribe for a mod the ledger still remembers.
func (o *Ops) RetryUnsubscribe(ctx context.Context, modID types.ModID) error {
	return o.Unsubscribe(ctx, modID)
}
