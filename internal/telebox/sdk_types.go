package telebox

import "encoding/json"

const (
	v1FileSearch    = "/api/open/file_search"
	v1FolderCreate  = "/api/open/folder_create"
	v1FolderDetails = "/api/open/folder_details"
	v1UploadPrepare = "/api/open/get_upload_url"
	v1UploadFinish  = "/api/open/folder_upload_file"
)

const (
	// StatusOK is the generic success status of the open API.
	StatusOK = 1
	// StatusContentExists means the server already stores identical content
	// and the transfer/finish phases are skipped entirely.
	StatusContentExists = 600
)

const (
	searchPageNo   = 1
	searchPageSize = 50
)

// EntryTypeDir tags a listing entry as a folder.
const EntryTypeDir = "dir"

// Entry is one item of a folder listing.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Pid  int64  `json:"pid"`
}

func (e *Entry) IsDir() bool {
	return e.Type == EntryTypeDir
}

type searchResponse struct {
	Status int `json:"status"`
	Data   struct {
		List []Entry `json:"list"`
	} `json:"data"`
}

type folderCreateResponse struct {
	Status int `json:"status"`
	Data   struct {
		DirID int64 `json:"dirId"`
	} `json:"data"`
}

type folderDetailsResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type uploadPrepareResponse struct {
	Status int `json:"status"`
	Data   struct {
		SignURL string `json:"signUrl"`
	} `json:"data"`
}

type uploadFinishResponse struct {
	Status int `json:"status"`
	Data   struct {
		ItemID string `json:"itemId"`
	} `json:"data"`
}
