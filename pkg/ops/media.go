package ops

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// UpdateModLogo uploads a new logo image for modID and invalidates the
// mod's cached profile, matching the original SDK's
// AddOrUpdateModLogoOp/spec.md §4.6's "invalidated explicitly on mutating
// operations" rule for the mod-info cache.
func (o *Ops) UpdateModLogo(ctx context.Context, modID types.ModID, imagePath string) error {
	if err := o.postMediaFile(ctx, "/v1/games/{game-id}/mods/{mod-id}/media", modID, "logo", imagePath); err != nil {
		return err
	}
	o.modInfo.Invalidate(modID)
	return nil
}

// UpdateModGalleryImages uploads replacement gallery images for modID and
// invalidates the mod's cached profile.
func (o *Ops) UpdateModGalleryImages(ctx context.Context, modID types.ModID, imagePaths []string) error {
	for _, path := range imagePaths {
		if err := o.postMediaFile(ctx, "/v1/games/{game-id}/mods/{mod-id}/media", modID, "images[]", path); err != nil {
			return err
		}
	}
	o.modInfo.Invalidate(modID)
	return nil
}

func (o *Ops) postMediaFile(ctx context.Context, path string, modID types.ModID, field, filePath string) error {
	f, err := fsio.Open(o.exec, filePath, fsio.ReadOnly, false)
	if err != nil {
		return errcode.FileNotFound.With("opening %s: %v", filePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filePath)
	if err != nil {
		return errcode.FileNotFound.With("creating media form part: %v", err)
	}
	if _, err := io.Copy(part, f.IO()); err != nil {
		return errcode.FileNotFound.With("reading %s: %v", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return errcode.FileNotFound.With("closing media form: %v", err)
	}

	req := transport.NewRequest(transport.POST, path).
		WithPathParam("game-id", o.gameID).
		WithPathParam("mod-id", int64(modID)).
		WithHeader("Content-Type", mw.FormDataContentType()).
		WithBody(body.Bytes())
	_, err = o.client.Send(ctx, req)
	return err
}
