package ops

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/modio-go/pkg/archive"
	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/types"
)

// Install implements scheduler.Dispatcher for an entry in
// StateInstallPending: download the current file release into a temp zip
// and extract it into the entry's install directory.
func (o *Ops) Install(ctx context.Context, e *types.Entry) error {
	return o.downloadAndExtract(ctx, e)
}

// Update implements scheduler.Dispatcher for an entry in
// StateUpdatePending. The original SDK runs the identical download/extract
// sequence for an update as for a first install; only the entry's prior
// state differs, which the scheduler already accounts for.
func (o *Ops) Update(ctx context.Context, e *types.Entry) error {
	return o.downloadAndExtract(ctx, e)
}

func (o *Ops) downloadAndExtract(ctx context.Context, e *types.Entry) error {
	info := o.progressReg.begin(e.ID)
	defer o.progressReg.end(e.ID)
	tracker := progress.NewTracker(info)

	profile := e.Profile()
	if profile.DownloadURL == "" {
		return errcode.BadParameter.With("mod %d has no download URL on its current profile", e.ID)
	}

	zipPath := filepath.Join(o.paths.TempDir(), modArchiveName(e.ID))
	if err := fsio.CreateFolder(o.paths.TempDir()); err != nil {
		return err
	}
	defer os.Remove(zipPath)

	e.SetState(types.StateDownloading)
	info.SetState(types.ProgressDownloading)
	dlCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := o.client.Download(dlCtx, profile.DownloadURL, zipPath, func(written, total int64) {
		info.Update(written, total)
		if _, ok := tracker.Upgrade(); !ok {
			cancel()
		}
	})
	if err != nil {
		if dlCtx.Err() != nil {
			return errcode.Cancelled.With("install of mod %d cancelled during download", e.ID)
		}
		return err
	}

	e.SetState(types.StateExtracting)
	info.SetState(types.ProgressExtracting)
	size, err := o.extractInto(e.PathOnDisk(), zipPath, tracker, info)
	if err != nil {
		return err
	}

	e.SetSizeOnDisk(size)
	e.SetState(types.StateInstalled)
	return nil
}

// extractInto opens the zip at zipPath and writes every entry under
// destDir, returning the total bytes written to disk. Directory entries
// create empty directories; everything else is streamed through
// archive.ExtractEntry with progress forwarded to info.
func (o *Ops) extractInto(destDir, zipPath string, tracker *progress.Tracker, info *progress.Info) (int64, error) {
	f, err := fsio.Open(o.exec, zipPath, fsio.ReadOnly, false)
	if err != nil {
		return 0, errcode.FileNotFound.With("opening downloaded archive: %v", err)
	}
	defer f.Close()

	stat, err := os.Stat(zipPath)
	if err != nil {
		return 0, errcode.FileNotFound.With("statting downloaded archive: %v", err)
	}

	rd, err := archive.Open(f.IO(), stat.Size())
	if err != nil {
		return 0, errcode.ArchiveInvalidHeader.With("%v", err)
	}

	if err := fsio.CreateFolder(destDir); err != nil {
		return 0, err
	}

	var totalWritten int64
	for _, entry := range rd.Entries() {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return 0, err
		}
		if entry.IsDirectory {
			if err := fsio.CreateFolder(target); err != nil {
				return 0, err
			}
			continue
		}
		if err := fsio.CreateFolder(filepath.Dir(target)); err != nil {
			return 0, err
		}
		out, err := fsio.Create(o.exec, target)
		if err != nil {
			return 0, errcode.FileNotFound.With("creating %s: %v", target, err)
		}
		err = rd.ExtractEntry(entry, out.IO(), func(written int64) {
			info.Update(totalWritten+written, int64(entry.UncompressedSize))
		})
		closeErr := out.Close()
		if err != nil {
			return 0, err
		}
		if closeErr != nil {
			return 0, errcode.FileNotFound.With("closing %s: %v", target, closeErr)
		}
		if _, ok := tracker.Upgrade(); !ok {
			return 0, errcode.Cancelled.With("extract of %s cancelled", destDir)
		}
		totalWritten += int64(entry.UncompressedSize)
	}
	return totalWritten, nil
}

// safeJoin resolves a zip entry name against destDir the way the original
// extractor does, rejecting any entry whose name climbs out of destDir via
// ".." path segments (the classic zip-slip attack). destDir itself is
// always a safe prefix, so checking after cleaning both paths is enough.
func safeJoin(destDir, entryName string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(entryName))
	cleanDest := filepath.Clean(destDir)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
		return "", errcode.ArchiveInvalidHeader.With("zip entry %q escapes install directory", entryName)
	}
	return target, nil
}

func modArchiveName(id types.ModID) string {
	return "mod_" + strconv.FormatInt(int64(id), 10) + ".zip"
}
