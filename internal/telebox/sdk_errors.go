package telebox

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoBaseURL = errors.New("telebox: base url missing")
	ErrNoToken   = errors.New("telebox: api token missing")

	// folders
	ErrFolderCreate = errors.New("telebox: folder create failed")

	// uploads
	ErrFileNotFound  = errors.New("telebox: file not found")
	ErrUploadPrepare = errors.New("telebox: upload prepare failed")
	ErrUploadFinish  = errors.New("telebox: upload finish failed")
)

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but not a 2xx
	if resp.IsErrorState() {
		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
