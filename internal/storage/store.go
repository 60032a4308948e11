// Package storage keeps uploaded files, profile avatars, on local disk.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found")

// Store is a namespaced directory tree.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) namespaceDir(namespace string) string {
	return filepath.Join(s.baseDir, namespace)
}

func (s *Store) filePath(namespace, path string) (string, error) {
	if path == "" || strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid path: %q", path)
	}
	nsDir := s.namespaceDir(namespace)
	fullPath := filepath.Join(nsDir, path)
	if !strings.HasPrefix(fullPath, nsDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}
	return fullPath, nil
}

func (s *Store) Put(namespace, path string, content []byte) error {
	fullPath, err := s.filePath(namespace, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return os.WriteFile(fullPath, content, 0644)
}

func (s *Store) Get(namespace, path string) ([]byte, error) {
	fullPath, err := s.filePath(namespace, path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (s *Store) Delete(namespace, path string) error {
	fullPath, err := s.filePath(namespace, path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// List returns namespace-relative paths starting with prefix.
func (s *Store) List(namespace, prefix string) ([]string, error) {
	nsDir := s.namespaceDir(namespace)
	if _, err := os.Stat(nsDir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(nsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(nsDir, path)
		if err != nil {
			return err
		}
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files, err
}
