package ops

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuemby/modio-go/pkg/archive"
	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// Upload packages dir into a zip and uploads it as a new file release for
// modID, submitting the modfile metadata once the transfer completes, and
// invalidates the mod's cached profile since its metadata_id is about to
// change server-side.
func (o *Ops) Upload(ctx context.Context, modID types.ModID, dir string) error {
	info := o.progressReg.begin(modID)
	defer o.progressReg.end(modID)
	tracker := progress.NewTracker(info)

	o.events.Record(modID, progress.EventBeginUpload, 0)

	zipPath := filepath.Join(o.paths.TempDir(), modArchiveName(modID)+".upload")
	if err := fsio.CreateFolder(o.paths.TempDir()); err != nil {
		o.events.Record(modID, progress.EventUploaded, 1)
		return err
	}
	defer os.Remove(zipPath)

	info.SetState(types.ProgressCompressing)
	if err := o.compressInto(zipPath, dir, tracker, info); err != nil {
		o.events.Record(modID, progress.EventUploaded, 1)
		return err
	}

	info.SetState(types.ProgressUploading)
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	uploadID, err := o.client.UploadFile(uploadCtx, int64(modID), zipPath, func(sent, total int64) {
		info.Update(sent, total)
		if _, ok := tracker.Upgrade(); !ok {
			cancel()
		}
	})
	if err != nil {
		o.events.Record(modID, progress.EventUploaded, 1)
		if uploadCtx.Err() != nil {
			return errcode.Cancelled.With("upload of mod %d cancelled", modID)
		}
		return err
	}

	if uploadID != "" {
		if err := o.submitModfileMetadata(ctx, modID, uploadID); err != nil {
			o.events.Record(modID, progress.EventUploaded, 1)
			return err
		}
	}

	o.modInfo.Invalidate(modID)
	o.events.Record(modID, progress.EventUploaded, 0)
	return nil
}

// submitModfileMetadata is the upload flow's fourth step for a
// multipart-session upload: the single-shot path already submits the
// modfile in its one request, but a chunked session only transfers bytes —
// the file release itself isn't created until this call references the
// completed upload_id.
func (o *Ops) submitModfileMetadata(ctx context.Context, modID types.ModID, uploadID string) error {
	req := transport.NewRequest(transport.POST, "/v1/games/{game-id}/mods/{mod-id}/files").
		WithPathParam("game-id", o.gameID).
		WithPathParam("mod-id", int64(modID)).
		WithHeader("Content-Type", "application/x-www-form-urlencoded").
		WithBody([]byte("upload_id=" + uploadID))
	_, err := o.client.Send(ctx, req)
	return err
}

// compressInto walks dir and writes every regular file and directory into
// a fresh zip at zipPath, deflate-compressing file payloads.
func (o *Ops) compressInto(zipPath, dir string, tracker *progress.Tracker, info *progress.Info) error {
	zipFile, err := fsio.Create(o.exec, zipPath)
	if err != nil {
		return errcode.FileNotFound.With("creating upload archive: %v", err)
	}
	defer zipFile.Close()
	out := zipFile.IO()

	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			if stat, statErr := d.Info(); statErr == nil {
				total += stat.Size()
			}
		}
		return nil
	})
	info.SetTotal(total)

	wr := archive.NewWriter(out)
	var written int64

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		entryName := filepath.ToSlash(rel)

		if _, ok := tracker.Upgrade(); !ok {
			return errcode.Cancelled.With("compress of %s cancelled", dir)
		}

		if d.IsDir() {
			return wr.AddDirectoryEntry(entryName)
		}

		f, ferr := fsio.Open(o.exec, path, fsio.ReadOnly, false)
		if ferr != nil {
			return errcode.FileNotFound.With("opening %s: %v", path, ferr)
		}
		defer f.Close()

		counted := &countingUploadReader{r: f.IO(), onRead: func(n int64) {
			written += n
			info.Update(written, total)
		}}
		return wr.AddFileEntry(entryName, archive.Deflate, counted)
	})
	if walkErr != nil {
		return walkErr
	}

	if err := wr.Finalize(); err != nil {
		return errcode.CompressionFailed.With("%v", err)
	}
	return nil
}

// countingUploadReader reports cumulative bytes read via onRead, the
// compress-side analogue of transport's progressReader.
type countingUploadReader struct {
	r      io.Reader
	onRead func(n int64)
}

func (c *countingUploadReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.onRead(int64(n))
	}
	return n, err
}
