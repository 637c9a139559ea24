package transport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

// Dir serves fragments from a filesystem, typically a local checkout.
type Dir struct {
	fsys fs.FS
}

// NewDir serves files below root.
func NewDir(root string) *Dir {
	return &Dir{fsys: os.DirFS(root)}
}

// NewFS serves files from an arbitrary fs.FS.
func NewFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

func (d *Dir) Get(ctx context.Context, p string, _ bool, _ map[string]string) Request {
	return start(ctx, p, func(ctx context.Context) (string, Meta, error) {
		name, ok := fsPath(p)
		if !ok {
			return "", Meta{}, notFound(p)
		}
		if err := ctx.Err(); err != nil {
			return "", Meta{}, canceled(p, err)
		}
		data, err := fs.ReadFile(d.fsys, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", Meta{}, notFound(p)
			}
			return "", Meta{}, lderrors.WrapError(err, lderrors.CategoryNetwork, "failed to read file").
				WithContext("path", name).Build()
		}
		meta := Meta{Status: 200}
		if info, err := fs.Stat(d.fsys, name); err == nil {
			meta.UpdatedAt = info.ModTime()
			meta.LastModified = info.ModTime().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
		}
		return string(data), meta, nil
	})
}

// fsPath turns "/guide/intro.md?x=1" into "guide/intro.md". Paths escaping the
// root are rejected.
func fsPath(p string) (string, bool) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "", false
	}
	return p, fs.ValidPath(p)
}
