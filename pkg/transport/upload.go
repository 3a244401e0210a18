package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/metrics"
)

// multipartThreshold is the file size above which a modfile upload must go
// through the create/add-part/complete session flow instead of a single
// multipart/form-data POST.
const multipartThreshold = 50 * 1024 * 1024

// UploadProgress reports cumulative bytes sent for a single upload.
type UploadProgress func(sent, total int64)

// UploadSessionStatus mirrors the server's multipart session lifecycle.
type UploadSessionStatus string

const (
	UploadSessionActive    UploadSessionStatus = "active"
	UploadSessionCompleted UploadSessionStatus = "completed"
	UploadSessionCancelled UploadSessionStatus = "cancelled"
)

type uploadSessionResponse struct {
	UploadID string              `json:"upload_id"`
	Status   UploadSessionStatus `json:"status"`
}

// UploadFile uploads an archive in a single multipart/form-data request
// when it is small enough, or through the chunked session flow otherwise.
func (c *Client) UploadFile(ctx context.Context, modID int64, path string, onProgress UploadProgress) (uploadID string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errcode.FileNotFound.With("stat upload file: %v", err)
	}

	if info.Size() <= multipartThreshold {
		return "", c.uploadSingleShot(ctx, modID, path, info.Size(), onProgress)
	}
	return c.uploadMultipartSession(ctx, modID, path, info.Size(), onProgress)
}

func (c *Client) uploadSingleShot(ctx context.Context, modID int64, path string, size int64, onProgress UploadProgress) error {
	f, err := fsio.Open(c.exec, path, fsio.ReadOnly, false)
	if err != nil {
		return errcode.FileNotFound.With("open upload file: %v", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("filedata", path)
	if err != nil {
		return errcode.FileNotFound.With("create form file: %v", err)
	}

	counting := &progressReader{r: f.IO(), total: size, onProgress: onProgress}
	if _, err := io.Copy(part, counting); err != nil {
		return errcode.FileNotFound.With("read upload file: %v", err)
	}
	if err := mw.Close(); err != nil {
		return errcode.FileNotFound.With("close multipart writer: %v", err)
	}

	req := NewRequest(POST, "/v1/games/{game-id}/mods/{mod-id}/files").
		WithPathParam("game-id", c.server.GameID).
		WithPathParam("mod-id", modID).
		WithHeader("Content-Type", mw.FormDataContentType()).
		WithBody(body.Bytes())

	_, err = c.Send(ctx, req)
	return err
}

// uploadMultipartSession drives the create/add-part/complete flow for
// files too large to send in one request, per the external interface's
// multipart-session upload description.
func (c *Client) uploadMultipartSession(ctx context.Context, modID int64, path string, size int64, onProgress UploadProgress) (string, error) {
	nonce := fmt.Sprintf("%d", fnvHash(path))

	uploadID, status, err := c.createMultipartSession(ctx, modID, path, nonce)
	if err != nil {
		return "", err
	}
	if status == UploadSessionCompleted {
		return uploadID, nil
	}
	if status == UploadSessionCancelled {
		return "", errcode.ModNoRetryThisSession.With("multipart upload session %s was cancelled", uploadID)
	}

	f, err := fsio.Open(c.exec, path, fsio.ReadOnly, false)
	if err != nil {
		return "", errcode.FileNotFound.With("open upload file: %v", err)
	}
	defer f.Close()
	reader := f.IO()

	var sent int64
	buf := make([]byte, multipartThreshold)
	for {
		n, rerr := io.ReadFull(reader, buf)
		if n == 0 {
			break
		}
		start := sent
		end := start + int64(n) - 1

		if err := c.addMultipartPart(ctx, modID, uploadID, nonce, buf[:n], start, end, size); err != nil {
			return "", err
		}
		sent += int64(n)
		if onProgress != nil {
			onProgress(sent, size)
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return "", errcode.FileNotFound.With("reading upload file part: %v", rerr)
		}
	}

	if err := c.completeMultipartSession(ctx, modID, uploadID); err != nil {
		return "", err
	}
	return uploadID, nil
}

func (c *Client) createMultipartSession(ctx context.Context, modID int64, path, nonce string) (uploadID string, status UploadSessionStatus, err error) {
	form := fmt.Sprintf("filename=%s&nonce=%s", filepath.Base(path), nonce)
	req := NewRequest(POST, "/v1/games/{game-id}/mods/{mod-id}/multipart/uploads").
		WithPathParam("game-id", c.server.GameID).
		WithPathParam("mod-id", modID).
		WithBody([]byte(form))

	resp, err := c.Send(ctx, req)
	if err != nil {
		return "", "", err
	}

	var session uploadSessionResponse
	if jsonErr := json.Unmarshal(resp.Body.Bytes(), &session); jsonErr != nil {
		return "", "", errcode.ApiInvalidResponse.With("unable to parse upload session response: %v", jsonErr)
	}
	return session.UploadID, session.Status, nil
}

func (c *Client) addMultipartPart(ctx context.Context, modID int64, uploadID, nonce string, chunk []byte, start, end, total int64) error {
	req := NewRequest(PUT, "/v1/games/{game-id}/mods/{mod-id}/multipart/uploads/{upload-id}/parts").
		WithPathParam("game-id", c.server.GameID).
		WithPathParam("mod-id", modID).
		WithQuery("upload_id", uploadID).
		WithHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total)).
		WithHeader("Digest", nonce).
		WithBody(chunk)

	resp, err := c.Send(ctx, req)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusBadRequest {
			// Server already has this part (a resumed upload); proceed.
			return nil
		}
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return errcode.UserNotAuthenticated.With("multipart upload part rejected: %v", err)
		}
		return err
	}
	return nil
}

func (c *Client) completeMultipartSession(ctx context.Context, modID int64, uploadID string) error {
	req := NewRequest(POST, "/v1/games/{game-id}/mods/{mod-id}/multipart/uploads/{upload-id}").
		WithPathParam("game-id", c.server.GameID).
		WithPathParam("mod-id", modID).
		WithQuery("upload_id", uploadID).
		WithHeader("Content-Type", "application/x-www-form-urlencoded")

	_, err := c.Send(ctx, req)
	return err
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// progressReader wraps an io.Reader to report cumulative bytes read.
type progressReader struct {
	r          io.Reader
	read       int64
	total      int64
	onProgress UploadProgress
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		metrics.UploadBytesTotal.Add(float64(n))
		if p.onProgress != nil {
			p.onProgress(p.read, p.total)
		}
	}
	return n, err
}
