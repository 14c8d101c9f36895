package repository

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/build1/unityconfig/internal/filesys"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/configerr"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CachePath returns the cache file for a build version. Each version gets
// its own file so an app update never reads a cache written against an
// older schema.
func CachePath(root, version string) string {
	v := unsafeChars.ReplaceAllString(version, "_")
	if v == "" {
		v = "unversioned"
	}
	return filepath.Join(root, "config_cache_"+v+".json")
}

// Cache is the on-disk copy of the last successfully loaded remote config.
// A missing file is the normal state after install or update and is not
// logged above debug.
type Cache[T any] struct {
	fs   filesys.FileOps
	path string
	single
}

var _ Repository[struct{}] = (*Cache[struct{}])(nil)

// NewCache returns a cache rooted at root for the given build version.
func NewCache[T any](fsys filesys.FileOps, root, version string) *Cache[T] {
	return &Cache[T]{fs: fsys, path: CachePath(root, version)}
}

// Path returns the cache file path.
func (c *Cache[T]) Path() string { return c.path }

// Load implements Repository.
func (c *Cache[T]) Load(_ context.Context) (T, error) {
	var zero T
	if err := c.enter("cache"); err != nil {
		return zero, err
	}
	defer c.leave()

	data, err := c.fs.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("cache: miss", "path", c.path)
			return zero, configerr.Newf(configerr.ResourceNotFound, "cache %s not found", c.path)
		}
		return zero, configerr.Wrap(configerr.ResourceNotFound, err, "reading cache "+c.path)
	}
	v, perr := decodeJSON[T](string(data), "cache "+c.path)
	if perr != nil {
		return zero, perr
	}
	return v, nil
}

// Save replaces the cache file with v. Readers see either the previous
// document or the new one.
func (c *Cache[T]) Save(_ context.Context, v T) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return configerr.Wrap(configerr.ParsingError, err, "encoding cache")
	}
	if err := filesys.AtomicWrite(c.fs, c.path, data, 0o644); err != nil {
		return configerr.Wrap(configerr.Unknown, err, "writing cache "+c.path)
	}
	log.Debug("cache: saved", "path", c.path, "bytes", len(data))
	return nil
}

// Clear deletes the cache file.
func (c *Cache[T]) Clear() error {
	return filesys.RemoveIfExists(c.fs, c.path)
}
