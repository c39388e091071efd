package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"friday/pkg/api"
)

const (
	maxReadBytes     = 100 * 1024
	maxSearchResults = 100
)

// Trash is where delete_path moves files.
type Trash struct {
	Dir string
	// Freedesktop selects the files/ and info/ layout used on Linux.
	Freedesktop bool
}

// Files implements the file capabilities. Paths accept a leading "~".
type Files struct {
	Home string
	// Trash is nil when the platform has no trash; only permanent
	// deletion is possible then.
	Trash *Trash
}

// DefaultFiles uses the user's home and the platform trash.
func DefaultFiles() *Files {
	home, _ := os.UserHomeDir()
	return &Files{Home: home, Trash: platformTrash(home)}
}

func platformTrash(home string) *Trash {
	switch runtime.GOOS {
	case "darwin":
		return &Trash{Dir: filepath.Join(home, ".Trash")}
	case "linux":
		return &Trash{Dir: filepath.Join(home, ".local", "share", "Trash"), Freedesktop: true}
	}
	return nil
}

func (f *Files) capabilities() []api.Capability {
	return []api.Capability{
		{
			Name:        "create_file",
			Description: "Create a text file. Refuses to replace an existing file unless overwrite is true.",
			Params: []api.Param{
				stringParam("file_path", "Path of the file to create"),
				{Name: "content", Type: api.ParamString, Default: "", Description: "Text to write"},
				{Name: "overwrite", Type: api.ParamBoolean, Default: false, Description: "Replace an existing file"},
			},
			Effect:  api.EffectLocalMutation,
			Handler: f.createFile,
		},
		{
			Name:        "create_folder",
			Description: "Create a folder and any missing parents.",
			Params:      []api.Param{stringParam("folder_path", "Path of the folder to create")},
			Effect:      api.EffectLocalMutation,
			Handler:     f.createFolder,
		},
		{
			Name:        "copy_path",
			Description: "Copy a file or folder. Copying into an existing folder keeps the name.",
			Params:      []api.Param{stringParam("source", "Path to copy"), stringParam("destination", "Target path")},
			Effect:      api.EffectLocalMutation,
			Handler:     f.copyPath,
		},
		{
			Name:        "move_path",
			Description: "Move or rename a file or folder.",
			Params:      []api.Param{stringParam("source", "Path to move"), stringParam("destination", "Target path")},
			Effect:      api.EffectLocalMutation,
			Handler:     f.movePath,
		},
		{
			Name:        "delete_path",
			Description: "Move a file or folder to the trash, or delete it permanently.",
			Params: []api.Param{
				stringParam("path", "Path to delete"),
				{Name: "permanent", Type: api.ParamBoolean, Default: false, Description: "Delete instead of moving to the trash"},
			},
			Effect:  api.EffectLocalMutation,
			Handler: f.deletePath,
		},
		{
			Name:        "read_file",
			Description: "Read a text file.",
			Params:      []api.Param{stringParam("file_path", "Path of the file to read")},
			Effect:      api.EffectRead,
			Handler:     f.readFile,
		},
		{
			Name:        "list_folder",
			Description: "List the contents of a folder.",
			Params:      []api.Param{stringParam("folder_path", "Folder to list")},
			Effect:      api.EffectRead,
			Handler:     f.listFolder,
		},
		{
			Name:        "search_files",
			Description: "Find files whose name matches a pattern (glob like *.pdf, or plain text) under a folder.",
			Params: []api.Param{
				stringParam("folder_path", "Folder to search"),
				stringParam("pattern", "Glob pattern or part of the name"),
			},
			Effect:  api.EffectRead,
			Handler: f.searchFiles,
		},
	}
}

// Resolve expands "~" and makes p absolute.
func (f *Files) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", api.Errorf(api.KindInvalidArgument, "path is empty")
	}
	if p == "~" {
		p = f.Home
	} else if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		p = filepath.Join(f.Home, p[2:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", api.Wrap(api.KindInvalidArgument, err, "invalid path %q", p)
	}
	return abs, nil
}

func (f *Files) createFile(_ context.Context, args api.Args) (api.Result, error) {
	path, err := f.Resolve(args.String("file_path"))
	if err != nil {
		return api.Result{}, err
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return api.Result{}, api.Errorf(api.KindInvalidArgument, "%s is a folder", path)
		}
		if !args.Bool("overwrite") {
			return api.Result{}, api.Errorf(api.KindInvalidArgument, "%s already exists; pass overwrite=true to replace it", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return api.Result{}, fmt.Errorf("failed to create parent folder: %w", err)
	}
	content := args.String("content")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return api.Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return withEffect(api.Textf("Created %s (%d bytes)", path, len(content)), nil)
}

func (f *Files) createFolder(_ context.Context, args api.Args) (api.Result, error) {
	path, err := f.Resolve(args.String("folder_path"))
	if err != nil {
		return api.Result{}, err
	}
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return api.Result{}, api.Errorf(api.KindInvalidArgument, "%s exists and is a file", path)
		}
		return api.Textf("Folder %s already exists", path), nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return api.Result{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return withEffect(api.Textf("Created folder %s", path), nil)
}

// target resolves source and destination; an existing destination folder
// receives the source under its own name.
func (f *Files) target(args api.Args) (src, dst string, err error) {
	if src, err = f.Resolve(args.String("source")); err != nil {
		return "", "", err
	}
	if dst, err = f.Resolve(args.String("destination")); err != nil {
		return "", "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", "", fmt.Errorf("source %s: %w", src, err)
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if src == dst {
		return "", "", api.Errorf(api.KindInvalidArgument, "source and destination are the same")
	}
	if strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return "", "", api.Errorf(api.KindInvalidArgument, "cannot copy or move %s into itself", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", "", api.Errorf(api.KindInvalidArgument, "%s already exists", dst)
	}
	return src, dst, nil
}

func (f *Files) copyPath(_ context.Context, args api.Args) (api.Result, error) {
	src, dst, err := f.target(args)
	if err != nil {
		return api.Result{}, err
	}
	if err := copyAll(src, dst); err != nil {
		return api.Result{}, fmt.Errorf("copy failed: %w", err)
	}
	return withEffect(api.Textf("Copied %s to %s", src, dst), nil)
}

func (f *Files) movePath(_ context.Context, args api.Args) (api.Result, error) {
	src, dst, err := f.target(args)
	if err != nil {
		return api.Result{}, err
	}
	if err := move(src, dst); err != nil {
		return api.Result{}, fmt.Errorf("move failed: %w", err)
	}
	return withEffect(api.Textf("Moved %s to %s", src, dst), nil)
}

func (f *Files) deletePath(_ context.Context, args api.Args) (api.Result, error) {
	path, err := f.Resolve(args.String("path"))
	if err != nil {
		return api.Result{}, err
	}
	if path == filepath.Dir(path) || path == filepath.Clean(f.Home) {
		return api.Result{}, api.Errorf(api.KindInvalidArgument, "refusing to delete %s", path)
	}
	if _, err := os.Lstat(path); err != nil {
		return api.Result{}, fmt.Errorf("cannot delete %s: %w", path, err)
	}

	if args.Bool("permanent") {
		if err := os.RemoveAll(path); err != nil {
			return api.Result{}, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		return withEffect(api.Textf("Permanently deleted %s", path), nil)
	}

	if f.Trash == nil {
		return api.Result{}, api.Errorf(api.KindInvalidArgument,
			"there is no trash on %s; pass permanent=true to delete %s", runtime.GOOS, path)
	}
	dst, err := f.Trash.Put(path, time.Now())
	if err != nil {
		return api.Result{}, fmt.Errorf("failed to move %s to the trash: %w", path, err)
	}
	return withEffect(api.Textf("Moved %s to the trash (%s)", path, dst), nil)
}

func (f *Files) readFile(_ context.Context, args api.Args) (api.Result, error) {
	path, err := f.Resolve(args.String("file_path"))
	if err != nil {
		return api.Result{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return api.Result{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return api.Result{}, api.Errorf(api.KindInvalidArgument, "%s is a folder; use list_folder", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return api.Result{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer file.Close()

	buf := make([]byte, maxReadBytes)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return api.Result{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	data := buf[:n]
	if bytes.IndexByte(data, 0) >= 0 {
		return api.Textf("%s is a binary file (%s, %d bytes)", path, http.DetectContentType(data), info.Size()), nil
	}
	if len(data) == 0 {
		return api.Textf("%s is empty", path), nil
	}
	text := string(data)
	if info.Size() > int64(n) {
		text += fmt.Sprintf("\n[truncated: showing %d of %d bytes]", n, info.Size())
	}
	return api.Result{Text: text}, nil
}

func (f *Files) listFolder(_ context.Context, args api.Args) (api.Result, error) {
	path, err := f.Resolve(args.String("folder_path"))
	if err != nil {
		return api.Result{}, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return api.Result{}, fmt.Errorf("cannot list %s: %w", path, err)
	}
	if len(entries) == 0 {
		return api.Textf("%s is empty", path), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d items in %s:", len(entries), path)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			fmt.Fprintf(&sb, "\n%s/", name)
			continue
		}
		if info, err := e.Info(); err == nil {
			fmt.Fprintf(&sb, "\n%s (%s)", name, humanSize(info.Size()))
		} else {
			fmt.Fprintf(&sb, "\n%s", name)
		}
	}
	return api.Result{Text: sb.String()}, nil
}

var errSearchLimit = errors.New("search limit reached")

func (f *Files) searchFiles(ctx context.Context, args api.Args) (api.Result, error) {
	root, err := f.Resolve(args.String("folder_path"))
	if err != nil {
		return api.Result{}, err
	}
	pattern := strings.ToLower(args.String("pattern"))
	glob := strings.ContainsAny(pattern, "*?[")
	if glob {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return api.Result{}, api.Errorf(api.KindInvalidArgument, "invalid pattern %q", pattern)
		}
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() && path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if path == root {
			return nil
		}
		name := strings.ToLower(d.Name())
		ok := strings.Contains(name, pattern)
		if glob {
			ok, _ = filepath.Match(pattern, name)
		}
		if ok {
			matches = append(matches, path)
			if len(matches) >= maxSearchResults {
				return errSearchLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSearchLimit) {
		return api.Result{}, fmt.Errorf("search in %s failed: %w", root, err)
	}

	if len(matches) == 0 {
		return api.Textf("No files matching %q under %s", args.String("pattern"), root), nil
	}
	sort.Strings(matches)
	text := fmt.Sprintf("Found %d matches for %q under %s:\n%s", len(matches), args.String("pattern"), root, strings.Join(matches, "\n"))
	if errors.Is(err, errSearchLimit) {
		text += fmt.Sprintf("\n[stopped after %d matches]", maxSearchResults)
	}
	return api.Result{Text: text}, nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
