package transfer

import (
	"fmt"

	"github.com/dreamware/swarmweave/internal/storage"
)

// Seeder answers the read side of the chunk-transfer protocol: LIST_FILES,
// REQUEST_METADATA, and REQUEST_PIECE, all served directly out of a
// BlobStore. It never accepts writes — assembly happens only through a
// Session on the downloading end.
type Seeder struct {
	store storage.BlobStore
}

// NewSeeder wraps a BlobStore for serving.
func NewSeeder(store storage.BlobStore) *Seeder {
	return &Seeder{store: store}
}

// ListFiles returns every blob the store currently holds.
func (s *Seeder) ListFiles() []FileInfo {
	infos := s.store.List()
	out := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, FileInfo{InfoHash: info.InfoHash, Filename: info.Filename, Size: info.Size})
	}
	return out
}

// Metadata answers REQUEST_METADATA for infoHash, recomputing piece hashes
// from the stored bytes rather than trusting any cached descriptor.
func (s *Seeder) Metadata(infoHash string) (Metadata, error) {
	data, err := s.store.Get(infoHash)
	if err != nil {
		return Metadata{}, fmt.Errorf("transfer: seeder metadata: %w", err)
	}
	filename := infoHash
	for _, info := range s.store.List() {
		if info.InfoHash == infoHash {
			filename = info.Filename
			break
		}
	}
	return BuildMetadata(infoHash, filename, data), nil
}

// Piece answers REQUEST_PIECE for infoHash at index.
func (s *Seeder) Piece(infoHash string, index int) (PieceData, error) {
	data, err := s.store.Get(infoHash)
	if err != nil {
		return PieceData{}, fmt.Errorf("transfer: seeder piece: %w", err)
	}
	start, end := PieceBounds(index, int64(len(data)))
	if start >= int64(len(data)) || start < 0 || end < start {
		return PieceData{}, fmt.Errorf("transfer: seeder piece: index %d out of range for %d-byte blob", index, len(data))
	}
	return PieceData{InfoHash: infoHash, Index: index, Bytes: data[start:end]}, nil
}

// Has reports whether the seeder already holds infoHash, letting a worker
// skip downloading a shard it was told to load but already has on disk.
func (s *Seeder) Has(infoHash string) bool {
	return s.store.Has(infoHash)
}
