package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/fclairamb/docmap/internal/apperrors"
)

// Collection file names inside the mapping directory.
const (
	CategoriesFile = "categories.yaml"
	FoldersFile    = "folders.yaml"
	ArticlesFile   = "articles.yaml"
	CountersFile   = "counters.yaml"
)

const (
	dirPerm  = 0750
	filePerm = 0640
)

// Load reads the four collections from dir. Loading is all-or-nothing: a
// missing or corrupt collection returns an error wrapping
// apperrors.ErrStoreLoad and no store.
func Load(dir string) (*Store, error) {
	s := New()

	targets := []struct {
		file string
		dest any
	}{
		{CategoriesFile, s.Categories},
		{FoldersFile, s.Folders},
		{ArticlesFile, s.Articles},
		{CountersFile, &s.Counters},
	}

	for _, target := range targets {
		if err := readCollection(filepath.Join(dir, target.file), target.dest); err != nil {
			return nil, err
		}
	}

	s.alignCounters()

	return s, nil
}

func readCollection(path string, dest any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the configured mapping dir
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", apperrors.ErrStoreLoad, filepath.Base(path), err)
	}

	// An empty collection file is an empty table.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %w", apperrors.ErrStoreLoad, filepath.Base(path), err)
	}
	return nil
}

// alignCounters moves counters lagging behind stored identifiers forward, so
// the next allocation cannot reuse an id written by an older tool.
func (s *Store) alignCounters() {
	for _, kind := range Kinds {
		if ids := s.IDs(kind); len(ids) > 0 {
			s.Observe(kind, ids[len(ids)-1])
		}
	}
}

// Save writes the four collections into dir, each one atomically.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}

	sources := []struct {
		file string
		src  any
	}{
		{CategoriesFile, s.Categories},
		{FoldersFile, s.Folders},
		{ArticlesFile, s.Articles},
		{CountersFile, &s.Counters},
	}

	for _, source := range sources {
		if err := writeCollection(filepath.Join(dir, source.file), source.src); err != nil {
			return err
		}
	}
	return nil
}

func writeCollection(path string, src any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2) //nolint:mnd // yaml indentation
	if err := enc.Encode(src); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(path, filePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Init creates empty collections in dir. Existing collections are left untouched.
func Init(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}

	empty := New()
	for file, src := range map[string]any{
		CategoriesFile: empty.Categories,
		FoldersFile:    empty.Folders,
		ArticlesFile:   empty.Articles,
		CountersFile:   &empty.Counters,
	} {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", file, err)
		}
		if err := writeCollection(path, src); err != nil {
			return err
		}
	}
	return nil
}
