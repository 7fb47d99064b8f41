package docroot

import (
	"os"

	"github.com/go-git/go-billy/v5"
)

// readOnly rejects every mutating call of the wrapped filesystem.
type readOnly struct {
	billy.Filesystem
}

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

func (readOnly) Create(string) (billy.File, error) { return nil, billy.ErrReadOnly }

func (ro readOnly) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&writeFlags != 0 {
		return nil, billy.ErrReadOnly
	}
	return ro.Filesystem.OpenFile(name, flag, perm)
}

func (readOnly) Rename(string, string) error                 { return billy.ErrReadOnly }
func (readOnly) Remove(string) error                         { return billy.ErrReadOnly }
func (readOnly) MkdirAll(string, os.FileMode) error          { return billy.ErrReadOnly }
func (readOnly) Symlink(string, string) error                { return billy.ErrReadOnly }
func (readOnly) TempFile(string, string) (billy.File, error) { return nil, billy.ErrReadOnly }

func (ro readOnly) Chroot(p string) (billy.Filesystem, error) {
	sub, err := ro.Filesystem.Chroot(p)
	if err != nil {
		return nil, err
	}
	return readOnly{sub}, nil
}

func (readOnly) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}
