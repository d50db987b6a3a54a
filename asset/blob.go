package asset

import (
	"bytes"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/djdv/go-rescache"
)

type (
	// Blob is a cached file.
	Blob struct {
		name     string
		data     []byte
		handles  int
		pinned   bool
		released bool
	}
	// Transform converts raw file contents when a blob is loaded.
	Transform func([]byte) ([]byte, error)
	// BlobLoader creates blobs from files in a file system.
	// Constructed by [NewBlobLoader].
	BlobLoader struct {
		fsys       fs.FS
		transforms map[string]Transform
	}
)

// RawTransform is the name of the identity transform.
// Unqualified descriptors also load raw contents.
const RawTransform = "raw"

// NewBlobLoader creates a loader reading from fsys,
// with the [RawTransform] and "upper" transforms registered.
func NewBlobLoader(fsys fs.FS) *BlobLoader {
	return &BlobLoader{
		fsys: fsys,
		transforms: map[string]Transform{
			RawTransform: func(data []byte) ([]byte, error) { return data, nil },
			"upper":      func(data []byte) ([]byte, error) { return bytes.ToUpper(data), nil },
		},
	}
}

// Register adds or replaces a named transform.
func (bl *BlobLoader) Register(name string, transform Transform) {
	bl.transforms[name] = transform
}

// Transforms returns the registered transform names, sorted.
func (bl *BlobLoader) Transforms() []string {
	return slices.Sorted(maps.Keys(bl.transforms))
}

// Descriptor describes the file at name loaded through transform.
func (bl *BlobLoader) Descriptor(name, transform string) (*rescache.Descriptor[*Blob], error) {
	return rescache.NewDescriptor(name, transform, rescache.Factory[*Blob](bl))
}

// CreateItem implements [rescache.Factory].
func (bl *BlobLoader) CreateItem(d *rescache.Descriptor[*Blob]) (*Blob, error) {
	transformName := d.Qualifier()
	if transformName == "" {
		transformName = RawTransform
	}
	transform, ok := bl.transforms[transformName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, transformName)
	}
	raw, err := fs.ReadFile(bl.fsys, d.Name())
	if err != nil {
		return nil, err
	}
	data, err := transform(raw)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", transformName, err)
	}
	return &Blob{
		name: d.QualifiedName(),
		data: data,
	}, nil
}

// Name returns the qualified name the blob was loaded for.
func (b *Blob) Name() string { return b.name }

// Bytes returns the blob's contents, or nil once it has been evicted.
func (b *Blob) Bytes() []byte { return b.data }

// Size returns the length of the blob's contents.
func (b *Blob) Size() int { return len(b.data) }

// Handles returns the number of outstanding handles, as seen by the blob.
func (b *Blob) Handles() int { return b.handles }

// Released reports whether the blob granted eviction and dropped its contents.
func (b *Blob) Released() bool { return b.released }

// Pin makes the blob veto eviction.
// Pinning has no effect once the blob has been asked to leave.
func (b *Blob) Pin() { b.pinned = true }

func (b *Blob) AddedToCache()        {}
func (b *Blob) RefCountIncremented() { b.handles++ }
func (b *Blob) RefCountDecremented() { b.handles-- }

// EvictionRequested drops the blob's contents unless it is pinned.
func (b *Blob) EvictionRequested() bool {
	if b.pinned {
		return false
	}
	b.data = nil
	b.released = true
	return true
}
