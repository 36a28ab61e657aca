package reports

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sma-almacen/sma/internal/shared"
)

var listedExtensions = map[string]bool{".xlsx": true, ".csv": true, ".pdf": true}

// Store keeps generated files under a single root directory. Every name it
// is given is resolved and must stay inside that root.
type Store struct {
	root string
}

// NewStore creates dir when missing and resolves it to an absolute,
// symlink-free path.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("reports: directory required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("reports: create dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the resolved reports directory.
func (s *Store) Root() string {
	return s.root
}

// Create writes a new file atomically: content goes to a temporary file that
// is renamed into place only when write succeeds.
func (s *Store) Create(name string, write func(io.Writer) error) (GeneratedFile, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return GeneratedFile{}, fmt.Errorf("reports: invalid file name %q", name)
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return GeneratedFile{}, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return GeneratedFile{}, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return GeneratedFile{}, err
	}
	target := filepath.Join(s.root, name)
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return GeneratedFile{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return GeneratedFile{}, err
	}
	return fileInfo(info), nil
}

// Resolve returns the absolute path of name when it is a regular file inside
// the root. Anything else, including traversal attempts, is ErrNotFound.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", shared.ErrNotFound
	}
	candidate := filepath.Join(s.root, filepath.FromSlash(name))
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", shared.ErrNotFound
	}
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", shared.ErrNotFound
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", shared.ErrNotFound
	}
	return resolved, nil
}

// Open opens a confined file for reading.
func (s *Store) Open(name string) (*os.File, GeneratedFile, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, GeneratedFile{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, GeneratedFile{}, shared.ErrNotFound
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, GeneratedFile{}, err
	}
	return f, fileInfo(info), nil
}

// List returns generated files, newest first.
func (s *Store) List() ([]GeneratedFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	files := make([]GeneratedFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !listedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, fileInfo(info))
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// Prune deletes generated files last modified before cutoff.
func (s *Store) Prune(cutoff time.Time) ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, f.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, f.Name)
	}
	return removed, nil
}

func fileInfo(info fs.FileInfo) GeneratedFile {
	ext := strings.TrimPrefix(filepath.Ext(info.Name()), ".")
	return GeneratedFile{
		Name:    info.Name(),
		Format:  strings.ToUpper(ext),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
