package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o750
	filePerm = 0o644
)

// Blob is a flat key/blob store backed by a single directory. Writes are
// atomic whole-file replacements: a crash mid-write leaves either the old
// or the new content, never a corrupt mix.
type Blob struct {
	dir string
}

// NewBlob creates a blob store rooted at dir, creating the directory if
// needed.
func NewBlob(dir string) (*Blob, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("cannot create blob directory %s: %w", dir, err)
	}
	return &Blob{dir: dir}, nil
}

// Dir returns the backing directory.
func (b *Blob) Dir() string {
	return b.dir
}

// Path returns the full path of a named blob.
func (b *Blob) Path(name string) string {
	return filepath.Join(b.dir, name)
}

// Exists reports whether the named blob is present.
func (b *Blob) Exists(name string) bool {
	info, err := os.Stat(b.Path(name))
	return err == nil && !info.IsDir()
}

// Read returns the contents of the named blob.
func (b *Blob) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(name))
	if err != nil {
		return nil, fmt.Errorf("cannot read blob %s: %w", name, err)
	}
	return data, nil
}

// Write replaces the named blob with data. The write goes to a temp file
// in the same directory which is fsync'd and renamed over the target.
func (b *Blob) Write(name string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file for blob %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write blob %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot sync blob %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot close blob %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot chmod blob %s: %w", name, err)
	}
	if err := os.Rename(tmpName, b.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot replace blob %s: %w", name, err)
	}
	return nil
}

// Delete removes the named blob. Deleting an absent blob is not an error.
func (b *Blob) Delete(name string) error {
	err := os.Remove(b.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete blob %s: %w", name, err)
	}
	return nil
}

// ReadJSON reads the named blob and unmarshals it into v.
func (b *Blob) ReadJSON(name string, v any) error {
	data, err := b.Read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot parse blob %s: %w", name, err)
	}
	return nil
}

// WriteJSON marshals v and atomically writes it as the named blob.
func (b *Blob) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal blob %s: %w", name, err)
	}
	return b.Write(name, data)
}
