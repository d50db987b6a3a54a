// Package asset provides concrete resource types for [rescache] caches.
//
// A [Blob] is the contents of one file, optionally run through a named
// [Transform] (the descriptor's qualifier), standing in for decoded
// textures, meshes, and sounds.
// A [Bundle] is a composite: its manifest names blobs, and creating
// the bundle acquires a handle on each of them from a blob cache.
// Those handles are released when the bundle is evicted.
package asset
