package ops

import (
	"context"

	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/types"
)

// RefreshModInfo forces a non-cached profile fetch for modID and, if the
// mod is already tracked in the collection, compares the new metadata
// against what the entry currently holds. A changed MetadataID on an
// installed entry means the server has a newer file release; the entry
// moves to StateUpdatePending so the next scheduler tick picks it up,
// matching the original SDK's update-detection behavior on GetModInfo.
func (o *Ops) RefreshModInfo(ctx context.Context, modID types.ModID) (types.ModProfile, error) {
	profile, err := o.fetchModProfile(ctx, modID)
	if err != nil {
		return types.ModProfile{}, err
	}
	o.modInfo.Put(profile)

	if o.collection == nil {
		return profile, nil
	}
	entry, ok := o.collection.Get(modID)
	if !ok {
		return profile, nil
	}

	if entry.State() == types.StateInstalled && entry.Profile().MetadataID != profile.MetadataID {
		tx := collection.Begin(entry)
		entry.UpdateProfile(profile)
		entry.SetState(types.StateUpdatePending)
		tx.Commit()
		return profile, nil
	}

	entry.UpdateProfile(profile)
	return profile, nil
}
