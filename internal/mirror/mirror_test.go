package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thewnetwork/telesync/internal/telebox"
)

type fakeUpload struct {
	name string
	pid  int64
}

// fakeRemote implements just enough of the Telebox open API wire protocol to
// drive a mirror run: search, folder create, upload prepare/transfer/finish.
type fakeRemote struct {
	mu         sync.Mutex
	nextID     int64
	entries    map[int64][]telebox.Entry
	creates    []string
	uploads    []fakeUpload
	ops        []string
	failCreate bool

	srv *httptest.Server
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	f := &fakeRemote{
		nextID:  1000,
		entries: map[int64][]telebox.Entry{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/open/file_search", f.handleSearch)
	mux.HandleFunc("/api/open/folder_create", f.handleCreate)
	mux.HandleFunc("/api/open/get_upload_url", f.handlePrepare)
	mux.HandleFunc("/transfer", f.handleTransfer)
	mux.HandleFunc("/api/open/folder_upload_file", f.handleFinish)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeRemote) client(t *testing.T) *telebox.Client {
	t.Helper()

	client, err := telebox.New(&telebox.Config{BaseURL: f.srv.URL, Token: "test-token"})
	require.NoError(t, err)

	return client
}

func (f *fakeRemote) addFolder(pid, id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[pid] = append(f.entries[pid], telebox.Entry{ID: id, Name: name, Type: telebox.EntryTypeDir, Pid: pid})
}

func reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeRemote) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pid, _ := strconv.ParseInt(q.Get("pid"), 10, 64)
	name := q.Get("name")

	f.mu.Lock()
	list := []telebox.Entry{}
	for _, e := range f.entries[pid] {
		if name == "" || e.Name == name {
			list = append(list, e)
		}
	}
	f.mu.Unlock()

	reply(w, map[string]any{"status": telebox.StatusOK, "data": map[string]any{"list": list}})
}

func (f *fakeRemote) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	pid, _ := strconv.ParseInt(r.URL.Query().Get("pid"), 10, 64)

	f.mu.Lock()
	if f.failCreate {
		f.mu.Unlock()
		reply(w, map[string]any{"status": 0, "data": map[string]any{"dirId": -1}})
		return
	}
	f.nextID++
	id := f.nextID
	f.entries[pid] = append(f.entries[pid], telebox.Entry{ID: id, Name: name, Type: telebox.EntryTypeDir, Pid: pid})
	f.creates = append(f.creates, name)
	f.ops = append(f.ops, "create:"+name)
	f.mu.Unlock()

	reply(w, map[string]any{"status": telebox.StatusOK, "data": map[string]any{"dirId": id}})
}

func (f *fakeRemote) handlePrepare(w http.ResponseWriter, r *http.Request) {
	reply(w, map[string]any{
		"status": telebox.StatusOK,
		"data":   map[string]any{"signUrl": "http://" + r.Host + "/transfer"},
	})
}

func (f *fakeRemote) handleTransfer(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
}

func (f *fakeRemote) handleFinish(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("diyName")
	pid, _ := strconv.ParseInt(q.Get("pid"), 10, 64)

	f.mu.Lock()
	f.uploads = append(f.uploads, fakeUpload{name: name, pid: pid})
	f.ops = append(f.ops, "finish:"+name)
	f.mu.Unlock()

	reply(w, map[string]any{"status": telebox.StatusOK, "data": map[string]any{"itemId": fmt.Sprintf("item-%s", name)}})
}

func (f *fakeRemote) uploadedTo(name string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.uploads {
		if u.name == name {
			return u.pid, true
		}
	}
	return 0, false
}

func (f *fakeRemote) folderID(pid int64, name string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries[pid] {
		if e.Name == name {
			return e.ID, true
		}
	}
	return 0, false
}

func mkTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestRun_MirrorsTree(t *testing.T) {
	remote := newFakeRemote(t)
	target := t.TempDir()
	mkTree(t, target, map[string]string{
		"a/f1": "one",
		"a/f2": "two",
		"b":    "loose",
	})

	m := New(remote.client(t), Options{Workers: 2})
	err := m.Run(context.Background(), Context{Dir: target, FolderName: "", BaseFolderID: 100})
	require.NoError(t, err)

	// one remote folder "a" created under the base
	assert.Equal(t, []string{"a"}, remote.creates)
	aID, ok := remote.folderID(100, "a")
	require.True(t, ok)

	// f1 and f2 land in it, the loose file lands directly under the base
	for _, name := range []string{"f1", "f2"} {
		pid, ok := remote.uploadedTo(name)
		require.True(t, ok, "missing upload %s", name)
		assert.Equal(t, aID, pid)
	}
	pid, ok := remote.uploadedTo("b")
	require.True(t, ok)
	assert.Equal(t, int64(100), pid)
}

func TestRun_FlushesLooseFilesBesideNamedFolder(t *testing.T) {
	remote := newFakeRemote(t)
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"loose.txt":       "beside",
		"photos/album/p1": "pic",
		"photos/album/p2": "pic",
	})

	m := New(remote.client(t), Options{Workers: 2})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "photos", BaseFolderID: 100})
	require.NoError(t, err)

	pid, ok := remote.uploadedTo("loose.txt")
	require.True(t, ok)
	assert.Equal(t, int64(100), pid)

	albumID, ok := remote.folderID(100, "album")
	require.True(t, ok)
	pid, ok = remote.uploadedTo("p1")
	require.True(t, ok)
	assert.Equal(t, albumID, pid)
}

func TestRun_UploadRootSkipsFlush(t *testing.T) {
	remote := newFakeRemote(t)
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"loose.txt":   "beside",
		"upload/a/f1": "one",
	})

	m := New(remote.client(t), Options{Workers: 2})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "upload", BaseFolderID: 100})
	require.NoError(t, err)

	// the loose file beside the sentinel folder is left alone
	_, ok := remote.uploadedTo("loose.txt")
	assert.False(t, ok)

	_, ok = remote.uploadedTo("f1")
	assert.True(t, ok)
}

func TestRun_ReusesExistingRemoteFolder(t *testing.T) {
	remote := newFakeRemote(t)
	remote.addFolder(100, 7, "a")
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"target/a/f1": "one",
	})

	m := New(remote.client(t), Options{Workers: 1})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "target", BaseFolderID: 100})
	require.NoError(t, err)

	assert.Empty(t, remote.creates)
	pid, ok := remote.uploadedTo("f1")
	require.True(t, ok)
	assert.Equal(t, int64(7), pid)
}

func TestRun_DuplicateRemoteNamesFirstWins(t *testing.T) {
	remote := newFakeRemote(t)
	remote.addFolder(100, 7, "a")
	remote.addFolder(100, 9, "a")
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"target/a/f1": "one",
	})

	m := New(remote.client(t), Options{Workers: 1})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "target", BaseFolderID: 100})
	require.NoError(t, err)

	pid, ok := remote.uploadedTo("f1")
	require.True(t, ok)
	assert.Equal(t, int64(7), pid)
}

func TestRun_FolderCreateFailureAborts(t *testing.T) {
	remote := newFakeRemote(t)
	remote.failCreate = true
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"target/a/f1": "one",
	})

	m := New(remote.client(t), Options{Workers: 1})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "target", BaseFolderID: 100})
	require.ErrorIs(t, err, telebox.ErrFolderCreate)

	// no upload was attempted after the failed create
	assert.Empty(t, remote.uploads)
}

func TestRun_RecursesNestedDirectories(t *testing.T) {
	remote := newFakeRemote(t)
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"target/a/f1":        "one",
		"target/a/nested/f2": "two",
	})

	m := New(remote.client(t), Options{Workers: 2})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "target", BaseFolderID: 100})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "nested"}, remote.creates)

	aID, ok := remote.folderID(100, "a")
	require.True(t, ok)
	nestedID, ok := remote.folderID(aID, "nested")
	require.True(t, ok)

	pid, ok := remote.uploadedTo("f1")
	require.True(t, ok)
	assert.Equal(t, aID, pid)
	pid, ok = remote.uploadedTo("f2")
	require.True(t, ok)
	assert.Equal(t, nestedID, pid)
}

func TestRun_BatchDrainsBeforeNextFolder(t *testing.T) {
	remote := newFakeRemote(t)
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"target/a/f1": "one",
		"target/a/f2": "two",
		"target/a/f3": "three",
		"target/b/g1": "four",
	})

	m := New(remote.client(t), Options{Workers: 2})
	err := m.Run(context.Background(), Context{Dir: root, FolderName: "target", BaseFolderID: 100})
	require.NoError(t, err)

	// all of a's uploads must have finished before b's folder is resolved
	pos := map[string]int{}
	for i, op := range remote.ops {
		pos[op] = i
	}
	for _, op := range []string{"finish:f1", "finish:f2", "finish:f3"} {
		require.Contains(t, pos, op)
		assert.Less(t, pos[op], pos["create:b"], "%s completed after create:b", op)
	}
	assert.Less(t, pos["create:b"], pos["finish:g1"])
}

func TestSplitEntries(t *testing.T) {
	dir := t.TempDir()
	mkTree(t, dir, map[string]string{
		"z.txt":    "z",
		"a.txt":    "a",
		"sub/file": "f",
	})

	files, dirs, err := splitEntries(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "z.txt"}, files)
	assert.Equal(t, []string{"sub"}, dirs)
}
