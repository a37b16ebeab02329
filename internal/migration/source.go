package migration

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Source lists and reads migration scripts.
type Source interface {
	// List returns the names of the entries in the script directory.
	List() ([]string, error)
	// Read returns the content of the named entry.
	Read(name string) (string, error)
	// Locate returns a human readable location of the named entry.
	Locate(name string) string
}

// FSSource is a Source over an fs.FS, such as os.DirFS or an embed.FS.
type FSSource struct {
	fsys fs.FS
	root string
	base string // physical directory, when known
}

// NewFSSource returns a Source reading the directory root of fsys.
func NewFSSource(fsys fs.FS, root string) *FSSource {
	if root == "" {
		root = "."
	}
	return &FSSource{fsys: fsys, root: root}
}

// NewDirSource returns a Source reading scripts from a directory on disk.
func NewDirSource(dir string) *FSSource {
	return &FSSource{fsys: os.DirFS(dir), root: ".", base: dir}
}

// Dir returns the physical directory of the source, or "" for virtual file systems.
func (s *FSSource) Dir() string {
	return s.base
}

// List implements Source. Subdirectories are not listed.
func (s *FSSource) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Read implements Source.
func (s *FSSource) Read(name string) (string, error) {
	data, err := fs.ReadFile(s.fsys, path.Join(s.root, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Locate implements Source.
func (s *FSSource) Locate(name string) string {
	if s.base != "" {
		return filepath.Join(s.base, name)
	}
	return path.Join(s.root, name)
}
