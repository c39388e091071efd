package catalog

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// copyAll copies a file, or a folder tree, to dst.
func copyAll(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.CopyFS(dst, os.DirFS(src))
	}
	return copyFile(src, dst, info.Mode().Perm())
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// move renames src to dst, copying across filesystems when a rename is
// not possible.
func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	if errors.Is(renameErr, os.ErrNotExist) || errors.Is(renameErr, os.ErrPermission) {
		return renameErr
	}
	if err := copyAll(src, dst); err != nil {
		os.RemoveAll(dst)
		return errors.Join(renameErr, err)
	}
	return os.RemoveAll(src)
}

// Put moves path into the trash and returns its new location. Name clashes
// get a time suffix. The freedesktop layout also records the original path
// so file managers can restore it.
func (t *Trash) Put(path string, now time.Time) (string, error) {
	filesDir := t.Dir
	if t.Freedesktop {
		filesDir = filepath.Join(t.Dir, "files")
	}
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return "", err
	}

	name := trashName(filesDir, filepath.Base(path), now)
	dst := filepath.Join(filesDir, name)

	if t.Freedesktop {
		infoDir := filepath.Join(t.Dir, "info")
		if err := os.MkdirAll(infoDir, 0700); err != nil {
			return "", err
		}
		info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
			(&url.URL{Path: path}).EscapedPath(), now.Format("2006-01-02T15:04:05"))
		infoPath := filepath.Join(infoDir, name+".trashinfo")
		if err := os.WriteFile(infoPath, []byte(info), 0600); err != nil {
			return "", err
		}
		if err := move(path, dst); err != nil {
			os.Remove(infoPath)
			return "", err
		}
		return dst, nil
	}

	if err := move(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func trashName(dir, base string, now time.Time) string {
	if _, err := os.Lstat(filepath.Join(dir, base)); errors.Is(err, os.ErrNotExist) {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s %s%s", stem, now.Format("15.04.05"), ext)
		if i > 0 {
			name = fmt.Sprintf("%s %s-%d%s", stem, now.Format("15.04.05"), i, ext)
		}
		if _, err := os.Lstat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
	}
}
