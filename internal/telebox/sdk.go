package telebox

import (
	"fmt"
	"runtime"

	"github.com/imroc/req/v3"
	"github.com/thewnetwork/telesync/internal/version"
)

var userAgent = fmt.Sprintf("TeleSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client is the main client for interacting with the Telebox open API.
type Client struct {
	http   *req.Client
	Folder *FolderAPI
	Upload *UploadAPI
}

// New creates a new Telebox API client. The token is appended as a query
// parameter to every call, per the open API contract.
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := req.C().
		SetBaseURL(cfg.BaseURL).
		SetUserAgent(userAgent).
		SetCommonQueryParam("token", cfg.Token).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		http:   httpClient,
		Folder: newFolderAPI(httpClient),
		Upload: newUploadAPI(httpClient),
	}, nil
}
