package asset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/djdv/go-rescache"
)

type (
	// Bundle is a composite of blobs named by a manifest file.
	// It holds a handle on every part until it is evicted.
	Bundle struct {
		name       string
		parts      []part
		releaseErr error
		released   bool
	}
	part struct {
		descriptor *rescache.Descriptor[*Blob]
		blob       *Blob
	}
	// BundleLoader creates bundles whose parts come from a blob cache.
	// Constructed by [NewBundleLoader].
	BundleLoader struct {
		fsys  fs.FS
		blobs *rescache.Cache[*Blob]
		parts *BlobLoader
	}
)

// NewBundleLoader creates a loader that reads manifests from fsys
// and acquires their parts from blobs, created by parts.
func NewBundleLoader(fsys fs.FS, blobs *rescache.Cache[*Blob], parts *BlobLoader) *BundleLoader {
	return &BundleLoader{
		fsys:  fsys,
		blobs: blobs,
		parts: parts,
	}
}

// Descriptor describes the bundle whose manifest is at name.
// Every part is loaded through transform.
func (bl *BundleLoader) Descriptor(name, transform string) (*rescache.Descriptor[*Bundle], error) {
	return rescache.NewDescriptor(name, transform, rescache.Factory[*Bundle](bl))
}

// CreateItem implements [rescache.Factory].
// If any part cannot be acquired, the parts acquired so far are released.
func (bl *BundleLoader) CreateItem(d *rescache.Descriptor[*Bundle]) (*Bundle, error) {
	manifest, err := fs.ReadFile(bl.fsys, d.Name())
	if err != nil {
		return nil, err
	}
	names, err := parseManifest(manifest)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyManifest, d.Name())
	}
	bundle := &Bundle{
		name:  d.QualifiedName(),
		parts: make([]part, 0, len(names)),
	}
	for _, name := range names {
		blob, descriptor, err := bl.acquire(name, d.Qualifier())
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("part %q: %w", name, err),
				bundle.releaseParts(),
			)
		}
		bundle.parts = append(bundle.parts, part{
			descriptor: descriptor,
			blob:       blob,
		})
	}
	return bundle, nil
}

func (bl *BundleLoader) acquire(name, transform string) (*Blob, *rescache.Descriptor[*Blob], error) {
	descriptor, err := bl.parts.Descriptor(name, transform)
	if err != nil {
		return nil, nil, err
	}
	blob, err := descriptor.GetHandle(bl.blobs)
	if err != nil {
		return nil, nil, err
	}
	return blob, descriptor, nil
}

// parseManifest returns the non-empty lines of manifest.
// Lines starting with "//" are comments.
func parseManifest(manifest []byte) ([]string, error) {
	var (
		names   []string
		scanner = bufio.NewScanner(bytes.NewReader(manifest))
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func (b *Bundle) releaseParts() error {
	var errs []error
	for _, p := range b.parts {
		errs = append(errs, p.descriptor.ReleaseHandle(p.blob))
	}
	b.parts = nil
	return errors.Join(errs...)
}

// Name returns the qualified name the bundle was loaded for.
func (b *Bundle) Name() string { return b.name }

// Parts returns the bundle's blobs in manifest order.
func (b *Bundle) Parts() []*Blob {
	blobs := make([]*Blob, len(b.parts))
	for i, p := range b.parts {
		blobs[i] = p.blob
	}
	return blobs
}

// Size returns the combined size of the bundle's parts.
func (b *Bundle) Size() (size int) {
	for _, p := range b.parts {
		size += p.blob.Size()
	}
	return size
}

// Released reports whether the bundle was evicted.
func (b *Bundle) Released() bool { return b.released }

// Err returns the error from releasing the bundle's parts, if any.
func (b *Bundle) Err() error { return b.releaseErr }

func (*Bundle) AddedToCache()        {}
func (*Bundle) RefCountIncremented() {}
func (*Bundle) RefCountDecremented() {}

// EvictionRequested releases the bundle's part handles.
func (b *Bundle) EvictionRequested() bool {
	b.releaseErr = b.releaseParts()
	b.released = true
	return true
}
