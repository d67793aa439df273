package tiffglob

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
)

// fileSystem reads whole files through gocloud blob buckets. Local
// paths open a file:// bucket rooted at the file's directory; paths
// carrying a URL scheme open the bucket named by everything up to the
// last path separator. opts is forwarded verbatim as the bucket URL
// query string.
type fileSystem struct {
	opts string
}

func (fs *fileSystem) split(p string) (string, string, error) {
	if i := strings.Index(p, "://"); i >= 0 {
		j := strings.LastIndex(p, "/")
		if j <= i+2 {
			return "", "", fmt.Errorf("%w: no key in bucket URL %q", ErrInvalidArgument, p)
		}
		return p[:j], path.Base(p), nil
	}

	dir, key := filepath.Split(p)
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	return "file://" + filepath.ToSlash(abs), key, nil
}

// readAll reads the entire content of one file.
func (fs *fileSystem) readAll(ctx context.Context, p string) ([]byte, error) {
	url, key, err := fs.split(p)
	if err != nil {
		return nil, err
	}
	if fs.opts != "" {
		url += "?" + fs.opts
	}

	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", url, err)
	}
	defer bucket.Close()

	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}
