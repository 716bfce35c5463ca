// Package blob loads and saves raw byte blobs such as SPI flash dumps and
// amiibo dumps.
package blob

import (
	"os"
	"path/filepath"
)

type Store interface {
	Load(path string) ([]byte, error)
	Save(path string, data []byte) error
}

// FileStore reads and writes blobs on the local file system.
type FileStore struct{}

func NewFileStore() *FileStore {
	return &FileStore{}
}

func (FileStore) Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (FileStore) Save(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); nil != err {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
