package telebox

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/imroc/req/v3"
	"github.com/thewnetwork/telesync/internal/utils"
)

// UploadAPI implements the three-phase upload protocol of the open API:
// prepare (register fingerprint/size), transfer (raw PUT to a signed url),
// finish (link the content into a folder).
type UploadAPI struct {
	client *req.Client
}

func newUploadAPI(client *req.Client) *UploadAPI {
	return &UploadAPI{
		client: client,
	}
}

// PrepareResult carries the outcome of the prepare phase.
type PrepareResult struct {
	SignURL string
	// Exists is set when the server already stores identical content; the
	// transfer and finish phases must then be skipped.
	Exists bool
}

// Result identifies an uploaded file.
type Result struct {
	ItemID string
	// Skipped is set when the server deduplicated the content and no bytes
	// were transferred.
	Skipped bool
}

// Prepare registers a fingerprint/size pair and returns the signed upload
// url, or Exists when the server already holds the content.
func (u *UploadAPI) Prepare(ctx context.Context, fingerprint string, size int64) (*PrepareResult, error) {
	var result uploadPrepareResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fileMd5ofPre10m": fingerprint,
			"fileSize":        strconv.FormatInt(size, 10),
		}).
		SetSuccessResult(&result).
		Get(v1UploadPrepare)

	if err := handleAPIError(resp, err, "upload prepare"); err != nil {
		return nil, err
	}

	switch result.Status {
	case StatusContentExists:
		return &PrepareResult{Exists: true}, nil
	case StatusOK:
		return &PrepareResult{SignURL: result.Data.SignURL}, nil
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUploadPrepare, result.Status)
	}
}

// Finish links the transferred content into folderID under name.
func (u *UploadAPI) Finish(ctx context.Context, fingerprint string, size int64, folderID int64, name string) (string, error) {
	var result uploadFinishResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fileMd5ofPre10m": fingerprint,
			"fileSize":        strconv.FormatInt(size, 10),
			"pid":             strconv.FormatInt(folderID, 10),
			"diyName":         name,
		}).
		SetSuccessResult(&result).
		Get(v1UploadFinish)

	if err := handleAPIError(resp, err, "upload finish"); err != nil {
		return "", err
	}

	if result.Status != StatusOK {
		return "", fmt.Errorf("%w: %q status %d", ErrUploadFinish, name, result.Status)
	}

	return result.Data.ItemID, nil
}

// transfer streams the raw file bytes to a signed url.
func transfer(ctx context.Context, url string, path string) error {
	/*
		not using `req` here:
		- SetBody() reads the whole io.Reader into memory. we want to avoid that.
		- SetFile() doesn't set Content-Length correctly for a plain PUT.
		- signed urls don't take the common token query param anyway.
	*/
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return err
	}
	httpReq.ContentLength = info.Size() // THIS IS IMPORTANT FOR SIGNED URLS
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer failed: %v", resp.Status)
	}

	return nil
}

// UploadFile runs the full prepare/transfer/finish protocol for one local
// file and returns the remote item id. Safe to call concurrently for
// different files.
func (u *UploadAPI) UploadFile(ctx context.Context, path string, folderID int64) (*Result, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	fingerprint, size, err := Fingerprint(path)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", path, err)
	}

	prep, err := u.Prepare(ctx, fingerprint, size)
	if err != nil {
		return nil, err
	}

	if prep.Exists {
		// server-side dedup, nothing to transfer or finalize
		return &Result{Skipped: true}, nil
	}

	if err := transfer(ctx, prep.SignURL, path); err != nil {
		return nil, fmt.Errorf("upload transfer %s: %w", path, err)
	}

	itemID, err := u.Finish(ctx, fingerprint, size, folderID, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	return &Result{ItemID: itemID}, nil
}
