package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/metrics"
)

// resumeRoundingUnit is the granularity a partially-downloaded side file's
// existing length is rounded down to before resuming: if the process was
// killed mid-write of the last megabyte, that megabyte is re-fetched
// rather than trusted.
const resumeRoundingUnit = 1 << 20

// DownloadProgress reports cumulative bytes written for a single download.
type DownloadProgress func(written, total int64)

// Download fetches url into destPath's ".download" side file, resuming
// from any existing partial content (rounded down to resumeRoundingUnit),
// and renames it into place once the transfer completes. Cancelling ctx
// leaves the partial side file in place for a future resume; only an
// explicit install-cancel should truncate it to zero, which callers do by
// removing the side file themselves before calling Download again.
func (c *Client) Download(ctx context.Context, url, destPath string, onProgress DownloadProgress) error {
	sidePath := fsio.DownloadSideFile(destPath)

	var resumeFrom int64
	if info, err := os.Stat(sidePath); err == nil {
		resumeFrom = (info.Size() / resumeRoundingUnit) * resumeRoundingUnit
	}

	if err := fsio.CreateFolder(filepath.Dir(sidePath)); err != nil {
		return err
	}
	sideFile, err := fsio.Open(c.exec, sidePath, fsio.ReadWrite, false)
	if err != nil {
		return errcode.FileNotFound.With("unable to open download side file: %v", err)
	}
	out := sideFile.IO()
	defer out.Close()
	if _, err := out.Seek(resumeFrom, io.SeekStart); err != nil {
		return errcode.FileNotFound.With("unable to seek download side file: %v", err)
	}
	if _, err := async.Await(ctx, c.exec, sideFile.Truncate(resumeFrom)); err != nil {
		return errcode.FileNotFound.With("unable to truncate download side file: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return errcode.BadParameter.With("unable to build download request: %v", err)
	}
	if resumeFrom > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errcode.HttpConnectionFailed.With("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return errcode.HttpBadResponse.With("download returned status %d", resp.StatusCode)
	}

	total := resumeFrom + resp.ContentLength
	written := resumeFrom
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return errcode.Cancelled
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return errcode.FileNotFound.With("writing download: %v", werr)
			}
			written += int64(n)
			metrics.DownloadBytesTotal.Add(float64(n))
			if onProgress != nil {
				onProgress(written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errcode.HttpConnectionFailed.With("reading download body: %v", rerr)
		}
	}

	if err := out.Close(); err != nil {
		return errcode.FileNotFound.With("closing download side file: %v", err)
	}
	if err := os.Rename(sidePath, destPath); err != nil {
		return errcode.FileNotFound.With("renaming completed download into place: %v", err)
	}
	return nil
}
