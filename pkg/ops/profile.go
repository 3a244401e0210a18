package ops

import (
	"context"

	"github.com/cuemby/modio-go/pkg/metrics"
	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// modInfoCacheMetricName labels ModInfoCache hit/miss counters in pkg/metrics.
const modInfoCacheMetricName = "mod_info"

func (m modProfileResponse) toModProfile() types.ModProfile {
	return types.ModProfile{
		ID:            types.ModID(m.ID),
		GameID:        m.GameID,
		Name:          m.Name,
		Summary:       m.Summary,
		Description:   m.Description,
		MetadataID:    m.Modfile.MetadataID,
		DownloadURL:   m.Modfile.DownloadURL,
		SizeBytes:     m.Modfile.SizeBytes,
		Visibility:    types.Visibility(m.Visibility),
		Maturity:      types.Maturity(m.Maturity),
		Tags:          m.Tags,
		GalleryImages: m.Gallery,
		Logo:          m.Logo,
		SubmittedBy: types.SubmitterRef{
			ID:       types.UserID(m.Submitter.ID),
			Username: m.Submitter.Username,
		},
	}
}

// GetModInfo returns the mod's profile, serving the mod-info cache when
// populated (it carries no TTL — only explicit invalidation on mutation or
// user change per spec.md's mod-info cache rule).
func (o *Ops) GetModInfo(ctx context.Context, modID types.ModID) (types.ModProfile, error) {
	if cached, ok := o.modInfo.Get(modID); ok {
		metrics.CacheResultsTotal.WithLabelValues(modInfoCacheMetricName, "hit").Inc()
		return cached, nil
	}
	metrics.CacheResultsTotal.WithLabelValues(modInfoCacheMetricName, "miss").Inc()
	profile, err := o.fetchModProfile(ctx, modID)
	if err != nil {
		return types.ModProfile{}, err
	}
	o.modInfo.Put(profile)
	return profile, nil
}

func (o *Ops) fetchModProfile(ctx context.Context, modID types.ModID) (types.ModProfile, error) {
	req := transport.NewRequest(transport.GET, "/v1/games/{game-id}/mods/{mod-id}").
		WithPathParam("game-id", o.gameID).
		WithPathParam("mod-id", int64(modID))
	resp, err := o.client.Send(ctx, req)
	if err != nil {
		return types.ModProfile{}, err
	}
	var wire modProfileResponse
	if err := decodeJSON(resp.Body.Bytes(), &wire); err != nil {
		return types.ModProfile{}, err
	}
	return wire.toModProfile(), nil
}
