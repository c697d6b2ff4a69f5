package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/thewnetwork/telesync/internal/telebox"
	"golang.org/x/sync/errgroup"
)

// skipFlushFolderName disables the loose-file flush at the top of a level.
const skipFlushFolderName = "upload"

// Context is the immutable state of one step of the recursive traversal.
// BaseFolderID always refers to a remote folder that has been resolved
// before any child of this step is processed.
type Context struct {
	// Dir is the local root directory of this step.
	Dir string
	// FolderName is the subfolder of Dir being mirrored.
	FolderName string
	// BaseFolderID is the already-resolved remote folder backing this step.
	BaseFolderID int64
}

// Options tunes a Mirror.
type Options struct {
	// Workers bounds upload parallelism within one directory batch.
	Workers int
}

// Mirror recursively reproduces a local folder structure on the remote side
// and uploads file contents through a bounded worker pool.
type Mirror struct {
	sdk     *telebox.Client
	workers int
}

func New(sdk *telebox.Client, opts Options) *Mirror {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	return &Mirror{
		sdk:     sdk,
		workers: workers,
	}
}

// uploadTask is one queued file upload within a directory batch.
type uploadTask struct {
	path     string
	folderID int64
	index    int
	total    int
}

// Run mirrors mctx.Dir/mctx.FolderName into the remote folder
// mctx.BaseFolderID, recursing into nested directories. The base folder must
// already exist; it is never created at this level. Any folder-resolution or
// upload failure aborts the whole run.
func (m *Mirror) Run(ctx context.Context, mctx Context) error {
	folderID := mctx.BaseFolderID

	// one listing per level, reused for every subdirectory lookup below
	listing, err := m.sdk.Folder.List(ctx, folderID)
	if err != nil {
		return fmt.Errorf("list remote folder %d: %w", folderID, err)
	}

	slog.Info("mirroring", "dir", mctx.Dir, "folder", mctx.FolderName, "remote_id", folderID)

	// flush loose files sitting beside the named subfolder before descending
	if mctx.FolderName != skipFlushFolderName {
		files, _, err := splitEntries(mctx.Dir)
		if err != nil {
			return err
		}
		if err := m.uploadBatch(ctx, mctx.Dir, files, folderID); err != nil {
			return err
		}
	}

	root := filepath.Join(mctx.Dir, mctx.FolderName)
	_, subdirs, err := splitEntries(root)
	if err != nil {
		return err
	}

	for _, name := range subdirs {
		subID, ok := findDir(listing, name, folderID)
		if !ok {
			subID, err = m.sdk.Folder.Ensure(ctx, name, folderID)
			if err != nil {
				return err
			}
		}

		slog.Info("resolved remote folder", "name", mctx.FolderName+"/"+name, "remote_id", subID)

		subdir := filepath.Join(root, name)
		files, nested, err := splitEntries(subdir)
		if err != nil {
			return err
		}

		if err := m.uploadBatch(ctx, subdir, files, subID); err != nil {
			return err
		}

		if len(nested) > 0 {
			err := m.Run(ctx, Context{
				Dir:          root,
				FolderName:   name,
				BaseFolderID: subID,
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// uploadBatch uploads all files in dir into folderID with bounded
// parallelism. Every task is queued before any worker is waited on, and
// Wait is the barrier that keeps a batch from overlapping the next folder
// resolution. The first failure cancels the rest of the batch.
func (m *Mirror) uploadBatch(ctx context.Context, dir string, files []string, folderID int64) error {
	if len(files) == 0 {
		return nil
	}

	tasks := make(chan uploadTask, len(files))
	for i, name := range files {
		tasks <- uploadTask{
			path:     filepath.Join(dir, name),
			folderID: folderID,
			index:    i,
			total:    len(files),
		}
	}
	close(tasks)

	g, ctx := errgroup.WithContext(ctx)
	for range m.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case task, ok := <-tasks:
					if !ok {
						return nil
					}
					if err := m.uploadOne(ctx, task); err != nil {
						return err
					}
				}
			}
		})
	}

	return g.Wait()
}

func (m *Mirror) uploadOne(ctx context.Context, task uploadTask) error {
	info, err := os.Stat(task.path)
	if err != nil {
		return err
	}

	slog.Info("uploading file",
		"progress", fmt.Sprintf("%d/%d", task.index+1, task.total),
		"path", task.path,
		"size", humanize.Bytes(uint64(info.Size())))

	res, err := m.sdk.Upload.UploadFile(ctx, task.path, task.folderID)
	if err != nil {
		return err
	}

	if res.Skipped {
		slog.Info("upload deduplicated by server", "path", task.path)
	}

	return nil
}

// splitEntries partitions a directory into file names and subdirectory
// names, in listing order. Subdirectory detection is kept separate from
// upload submission on purpose.
func splitEntries(dir string) (files []string, dirs []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}

	return files, dirs, nil
}

// findDir returns the first folder entry with a matching name and parent.
func findDir(listing []telebox.Entry, name string, parentID int64) (int64, bool) {
	for i := range listing {
		e := &listing[i]
		if e.Name == name && e.IsDir() && e.Pid == parentID {
			return e.ID, true
		}
	}

	return 0, false
}
