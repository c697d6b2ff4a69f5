package telebox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/imroc/req/v3"
)

// folderDesc is sent as the fixed description of every created folder.
const folderDesc = "TheWNetwork TeleSync"

// FolderAPI covers folder search, creation and details on the open API.
type FolderAPI struct {
	client *req.Client
}

func newFolderAPI(client *req.Client) *FolderAPI {
	return &FolderAPI{
		client: client,
	}
}

// search issues one listing query. The open API pages results, but this
// client only ever fetches the first page of 50 entries; a folder with more
// children than that will not resolve entries beyond the first page.
func (f *FolderAPI) search(ctx context.Context, name string, parentID int64) ([]Entry, error) {
	var result searchResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"pid":      strconv.FormatInt(parentID, 10),
			"name":     name,
			"pageNo":   strconv.Itoa(searchPageNo),
			"pageSize": strconv.Itoa(searchPageSize),
		}).
		SetSuccessResult(&result).
		Get(v1FileSearch)

	if err := handleAPIError(resp, err, "folder search"); err != nil {
		return nil, err
	}

	return result.Data.List, nil
}

// List returns the first page of entries under parentID.
func (f *FolderAPI) List(ctx context.Context, parentID int64) ([]Entry, error) {
	return f.search(ctx, "", parentID)
}

// Find looks up a subfolder by exact name under parentID. The first listing
// entry that is a folder with a matching parent wins, so duplicate names
// resolve deterministically to the earliest entry.
func (f *FolderAPI) Find(ctx context.Context, name string, parentID int64) (int64, bool, error) {
	entries, err := f.search(ctx, name, parentID)
	if err != nil {
		return 0, false, err
	}

	for i := range entries {
		e := &entries[i]
		if e.Name == name && e.IsDir() && e.Pid == parentID {
			return e.ID, true, nil
		}
	}

	return 0, false, nil
}

// Create makes a new folder under parentID and returns its id.
func (f *FolderAPI) Create(ctx context.Context, name string, parentID int64) (int64, error) {
	var result folderCreateResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"pid":         strconv.FormatInt(parentID, 10),
			"name":        name,
			"isShare":     "0",
			"canInvite":   "1",
			"canShare":    "1",
			"withBodyImg": "0",
			"desc":        folderDesc,
		}).
		SetSuccessResult(&result).
		Get(v1FolderCreate)

	if err := handleAPIError(resp, err, "folder create"); err != nil {
		return 0, err
	}

	// the api signals failure either via a non-success status or a dirId
	// sentinel that is not a valid id
	if result.Status != StatusOK || result.Data.DirID <= 0 {
		return 0, fmt.Errorf("%w: %q under %d (status %d)", ErrFolderCreate, name, parentID, result.Status)
	}

	return result.Data.DirID, nil
}

// Ensure resolves a folder by name under parentID, creating it when absent.
// Calling it again with no remote mutation in between returns the same id
// without a second create.
func (f *FolderAPI) Ensure(ctx context.Context, name string, parentID int64) (int64, error) {
	id, found, err := f.Find(ctx, name, parentID)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	return f.Create(ctx, name, parentID)
}

// Details returns the raw detail payload for a folder.
func (f *FolderAPI) Details(ctx context.Context, dirID int64) (json.RawMessage, error) {
	var result folderDetailsResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("dirId", strconv.FormatInt(dirID, 10)).
		SetSuccessResult(&result).
		Get(v1FolderDetails)

	if err := handleAPIError(resp, err, "folder details"); err != nil {
		return nil, err
	}

	return result.Data, nil
}
