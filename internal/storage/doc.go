// Package storage provides the content-addressed blob store backing the
// chunk-transfer subsystem's assembled shard files.
//
// # Overview
//
// The only durable state a swarmweave worker keeps on disk is the set of
// shard files under shards_dir/<info-hash>, each identified by its
// info-hash rather than by filesystem metadata. A BlobStore exposes the
// minimal operations the downloader and seeder need: write a fully
// assembled file atomically, read it back, check whether it is already
// present, and list what is on disk so LIST_FILES has something to answer
// with.
//
// # Atomicity
//
// DiskBlobStore.Put writes to a temporary path in the store's directory and
// renames into place, so a reader never observes a partially written file —
// shard files on disk are write-once, read-only-after.
//
// # Implementations
//
// MemoryBlobStore keeps blobs in a map and is used by tests. DiskBlobStore
// persists to a directory with the rename-into-place discipline above; it
// is the implementation cmd/worker opens.
package storage
