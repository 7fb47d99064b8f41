// Package docroot resolves request paths against a document root and reads
// the files found there. A Root is immutable once built and may be shared by
// any number of connections.
package docroot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// DefaultIndex is served for targets ending in "/".
const DefaultIndex = "index.html"

var ErrRootNotDir = errors.New("document root is not a directory")

// Root is a document root backed by a billy filesystem.
type Root struct {
	fs    billy.Filesystem
	dir   string
	index string
}

// Resource is a file found under the root.
type Resource struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// New opens dir as a document root. A root naming a regular file is rejected.
func New(dir, index string) (*Root, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("document root %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrRootNotDir, dir)
	}
	return NewFS(osfs.New(dir, osfs.WithBoundOS(), osfs.WithDeduplicatePath(false)), index), nil
}

// NewFS wraps an existing filesystem, e.g. memfs in tests.
func NewFS(bfs billy.Filesystem, index string) *Root {
	if index == "" {
		index = DefaultIndex
	}
	return &Root{fs: bfs, dir: bfs.Root(), index: index}
}

func (r *Root) Dir() string   { return r.dir }
func (r *Root) Index() string { return r.index }

// Resolve maps a request target to a slash-separated path inside the root.
// The query string is dropped, ".." segments never climb above "/" and a
// trailing "/" names the index file.
func (r *Root) Resolve(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	p := path.Clean("/" + target)
	if strings.HasSuffix(target, "/") {
		p = path.Join(p, r.index)
	}
	return p
}

// Stat resolves target and reports its size and modification time.
func (r *Root) Stat(target string) (Resource, error) {
	return r.StatPath(r.Resolve(target))
}

// StatPath is Stat for a path already returned by Resolve.
// Directories are reported as NotFound since they cannot be served.
func (r *Root) StatPath(p string) (Resource, error) {
	fi, err := r.fs.Stat(p)
	if err != nil {
		return Resource{Path: p}, wrap(p, err)
	}
	if fi.IsDir() {
		return Resource{Path: p}, &Error{Kind: NotFound, Path: p, Err: fs.ErrInvalid}
	}
	return Resource{Path: p, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Open resolves and opens target for streaming readers. The caller closes the file.
func (r *Root) Open(target string) (billy.File, Resource, error) {
	res, err := r.Stat(target)
	if err != nil {
		return nil, res, err
	}
	f, err := r.fs.Open(res.Path)
	if err != nil {
		return nil, res, wrap(res.Path, err)
	}
	return f, res, nil
}

// ReadAll reads the whole resource into memory. The read is bounded by the
// size reported by Stat; a file that shrank in between is an IOFailure.
func (r *Root) ReadAll(res Resource) ([]byte, error) {
	f, err := r.fs.Open(res.Path)
	if err != nil {
		return nil, wrap(res.Path, err)
	}
	defer f.Close()

	data := make([]byte, res.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, &Error{Kind: IOFailure, Path: res.Path, Err: err}
	}
	return data, nil
}

// Filesystem returns a read-only view of the root.
func (r *Root) Filesystem() billy.Filesystem {
	return readOnly{r.fs}
}
