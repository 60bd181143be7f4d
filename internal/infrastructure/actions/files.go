package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/deskgate/internal/domain"
)

const userFilePermissions = 0o644

// fileActions operates on paths the validator has already canonicalized and
// confined to the configured roots.
type fileActions struct{}

func chat(_ context.Context, action domain.Action) (string, error) {
	return requireString(action, "message")
}

type fileEntry struct {
	path    string
	name    string
	size    int64
	modTime time.Time
}

func (f fileEntry) line() string {
	return fmt.Sprintf("%s\t%s\t%s", f.path, humanize.IBytes(uint64(f.size)), f.modTime.Format(time.RFC3339))
}

func (a *fileActions) listFiles(ctx context.Context, action domain.Action) (string, error) {
	dir, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	if err := requireDir(dir); err != nil {
		return "", err
	}
	limit := action.IntArg("limit", domain.DefaultListLimit)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}
	var files []fileEntry
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{path: entry.Name(), name: entry.Name(), size: info.Size(), modTime: info.ModTime()})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d file(s)", dir, len(files))
	for i, f := range files {
		if i == limit {
			fmt.Fprintf(&b, "\n... %d more", len(files)-limit)
			break
		}
		b.WriteString("\n" + f.line())
	}
	return b.String(), nil
}

func (a *fileActions) findFile(ctx context.Context, action domain.Action) (string, error) {
	dir, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	pattern, err := requireString(action, "pattern")
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(pattern, `/\`) || strings.Contains(pattern, "..") {
		return "", fmt.Errorf("find_file: pattern %q must match file names, not paths", pattern)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("find_file: bad pattern %q: %w", pattern, err)
	}
	if err := requireDir(dir); err != nil {
		return "", err
	}

	var found []fileEntry
	visit := func(path string, entry fs.DirEntry) {
		if !entry.Type().IsRegular() {
			return
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			return
		}
		info, err := entry.Info()
		if err != nil {
			return
		}
		found = append(found, fileEntry{path: path, name: entry.Name(), size: info.Size(), modTime: info.ModTime()})
	}

	if action.BoolArg("recursive", false) {
		err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return err
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			visit(path, entry)
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(dir)
		for _, entry := range entries {
			visit(filepath.Join(dir, entry.Name()), entry)
		}
	}
	if err != nil {
		return "", fmt.Errorf("find_file: %w", err)
	}

	if len(found) == 0 {
		return fmt.Sprintf("No files matching %q found in %s", pattern, dir), nil
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].modTime.After(found[j].modTime) })

	if action.BoolArg("latest", false) {
		return fmt.Sprintf("Found latest file: %s\n%s", found[0].name, found[0].line()), nil
	}
	limit := action.IntArg("limit", domain.DefaultListLimit)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s) matching %q", len(found), pattern)
	for i, f := range found {
		if i == limit {
			fmt.Fprintf(&b, "\n... %d more", len(found)-limit)
			break
		}
		b.WriteString("\n" + f.line())
	}
	return b.String(), nil
}

func (a *fileActions) createFile(_ context.Context, action domain.Action) (string, error) {
	path, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	content, _ := action.StringArg("content")
	if _, err := os.Lstat(path); err == nil && !action.BoolArg("overwrite", false) {
		return "", fmt.Errorf("file already exists: %s (set overwrite to replace it)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return "", fmt.Errorf("create_file: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), userFilePermissions); err != nil {
		return "", fmt.Errorf("create_file: %w", err)
	}
	return fmt.Sprintf("Created file: %s (%s)", path, humanize.IBytes(uint64(len(content)))), nil
}

func (a *fileActions) copyFile(_ context.Context, action domain.Action) (string, error) {
	src, dst, err := a.transferPaths(action)
	if err != nil {
		return "", err
	}
	if err := copyRegular(src, dst); err != nil {
		return "", fmt.Errorf("copy_file: %w", err)
	}
	return fmt.Sprintf("Copied %s to %s", filepath.Base(src), dst), nil
}

func (a *fileActions) moveFile(_ context.Context, action domain.Action) (string, error) {
	src, dst, err := a.transferPaths(action)
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		// Rename cannot cross volumes; fall back to copy and remove.
		if copyErr := copyRegular(src, dst); copyErr != nil {
			return "", fmt.Errorf("move_file: %w", err)
		}
		if rmErr := os.Remove(src); rmErr != nil {
			return "", fmt.Errorf("move_file: copied but could not remove source: %w", rmErr)
		}
	}
	return fmt.Sprintf("Moved %s to %s", filepath.Base(src), dst), nil
}

func (a *fileActions) deleteFile(_ context.Context, action domain.Action) (string, error) {
	path, err := requireString(action, "path")
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("delete_file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("delete_file: %s is not a regular file", path)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("delete_file: %w", err)
	}
	return fmt.Sprintf("Deleted file: %s", path), nil
}

// transferPaths resolves source and destination for copy and move. A
// destination that is an existing directory receives the source file name.
func (a *fileActions) transferPaths(action domain.Action) (string, string, error) {
	src, err := requireString(action, "source")
	if err != nil {
		return "", "", err
	}
	dst, err := requireString(action, "destination")
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", "", fmt.Errorf("%s: source: %w", action.Name, err)
	}
	if !info.Mode().IsRegular() {
		return "", "", fmt.Errorf("%s: source %s is not a regular file", action.Name, src)
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if _, err := os.Lstat(dst); err == nil && !action.BoolArg("overwrite", false) {
		return "", "", fmt.Errorf("destination already exists: %s (set overwrite to replace it)", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirectoryPermissions); err != nil {
		return "", "", fmt.Errorf("%s: %w", action.Name, err)
	}
	return src, dst, nil
}

func copyRegular(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}
