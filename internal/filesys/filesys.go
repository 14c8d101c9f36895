// Package filesys provides the file system surface used by the config cache,
// the tool configuration loader and the variant workspace. Everything goes
// through small interfaces so tests can substitute an in-memory or mocked FS.
package filesys

import (
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// ReadWriteFS is the tiny surface the tool config loader needs.
type ReadWriteFS interface {
	Stat(string) (fs.FileInfo, error)
	MkdirAll(string, os.FileMode) error
	Open(string) (*os.File, error)
	WriteFile(string, []byte, os.FileMode) error
}

// FileOps is what the cache repository needs for reads and AtomicWrite.
type FileOps interface {
	Open(string) (*os.File, error)
	ReadFile(string) ([]byte, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(string, string) (*os.File, error)
	Rename(string, string) error
	Remove(string) error
	Chmod(string, os.FileMode) error
}

// TreeFS adds directory listing and recursive removal for the workspace.
type TreeFS interface {
	FileOps
	Stat(string) (fs.FileInfo, error)
	ReadDir(string) ([]fs.DirEntry, error)
	RemoveAll(string) error
}

// OS returns a file system implementation that delegates to the standard library.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements every interface in this package against the local disk.
type OsFS struct{}

func (OsFS) Stat(p string) (fs.FileInfo, error)     { return os.Stat(p) }
func (OsFS) MkdirAll(p string, m os.FileMode) error { return os.MkdirAll(p, m) }
func (OsFS) Open(p string) (*os.File, error)        { return os.Open(p) }
func (OsFS) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(p)
}
func (OsFS) WriteFile(p string, b []byte, m os.FileMode) error { return os.WriteFile(p, b, m) }
func (OsFS) CreateTemp(dir, pat string) (*os.File, error)      { return os.CreateTemp(dir, pat) }
func (OsFS) Rename(old, newName string) error                  { return os.Rename(old, newName) }
func (OsFS) Remove(p string) error                             { return os.Remove(p) }
func (OsFS) Chmod(p string, m os.FileMode) error               { return os.Chmod(p, m) }
func (OsFS) ReadDir(p string) ([]fs.DirEntry, error)           { return os.ReadDir(p) }
func (OsFS) RemoveAll(p string) error                          { return os.RemoveAll(p) }

var (
	_ ReadWriteFS = OsFS{}
	_ FileOps     = OsFS{}
	_ TreeFS      = OsFS{}
)

// AtomicWrite persists data to dst so that concurrent readers observe either
// the previous document or the new one, never a truncated file:
//
//  1. temp file in the same dir
//  2. fsync(temp) + close
//  3. chmod(temp, perm)  (so rename doesn't carry 0600 default)
//  4. rename(temp, dst)
//  5. fsync(dir)
//
// Failures to clean up the temp file are appended to the returned error.
func AtomicWrite(fsys FileOps, dst string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := fsys.CreateTemp(dir, ".unityconfig-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	err = multierr.Append(err, tmp.Close())
	if err == nil {
		err = fsys.Chmod(name, perm)
	}
	if err == nil {
		err = fsys.Rename(name, dst)
	}
	if err != nil {
		return multierr.Append(err, fsys.Remove(name))
	}
	// Directory fsync is best effort; some platforms refuse it.
	if d, derr := fsys.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// RemoveIfExists deletes p, treating a missing file as success.
func RemoveIfExists(fsys FileOps, p string) error {
	if err := fsys.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
