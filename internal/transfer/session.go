package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/swarmweave/internal/storage"
)

// PieceFetcher is the downloader's view of a remote seeder: request the
// metadata descriptor once, then request pieces by index as many times as
// needed.
type PieceFetcher interface {
	RequestMetadata(ctx context.Context, infoHash string) (Metadata, error)
	RequestPiece(ctx context.Context, infoHash string, index int) (PieceData, error)
}

// NoMetadata means the seeder could not produce a metadata descriptor for
// the requested info-hash (it does not have the shard, or is unreachable).
type NoMetadata struct {
	InfoHash string
	Cause    error
}

func (e *NoMetadata) Error() string {
	return fmt.Sprintf("transfer: no metadata for %s: %v", e.InfoHash, e.Cause)
}

func (e *NoMetadata) Unwrap() error { return e.Cause }

// NoSeeder means discovery produced no peer willing to serve this shard.
type NoSeeder struct {
	ShardID int
}

func (e *NoSeeder) Error() string {
	return fmt.Sprintf("transfer: no seeder available for shard %d", e.ShardID)
}

// CorruptPiece means a piece failed hash verification on every retry
// attempt, either on receipt or again at assembly.
type CorruptPiece struct {
	InfoHash string
	Index    int
	cause    error
}

func (e *CorruptPiece) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transfer: piece %d of %s failed verification: %v", e.Index, e.InfoHash, e.cause)
	}
	return fmt.Sprintf("transfer: piece %d of %s failed verification", e.Index, e.InfoHash)
}

func (e *CorruptPiece) Unwrap() error { return e.cause }

// SizeMismatch means the reassembled file length does not match the
// metadata's declared file size.
type SizeMismatch struct {
	InfoHash string
	Want     int64
	Got      int64
}

func (e *SizeMismatch) Error() string {
	return fmt.Sprintf("transfer: %s assembled to %d bytes, want %d", e.InfoHash, e.Got, e.Want)
}

// WriteFailed wraps a BlobStore.Put failure during assembly.
type WriteFailed struct {
	InfoHash string
	Cause    error
}

func (e *WriteFailed) Error() string {
	return fmt.Sprintf("transfer: write %s: %v", e.InfoHash, e.Cause)
}

func (e *WriteFailed) Unwrap() error { return e.Cause }

// DefaultMaxConcurrentPieces bounds how many REQUEST_PIECE calls a Session
// has in flight at once.
const DefaultMaxConcurrentPieces = 8

// DefaultMaxPieceRetries bounds how many times a single piece is
// re-requested after a hash mismatch before the session gives up on it.
const DefaultMaxPieceRetries = 3

// Session drives one download end-to-end: fetch metadata, fan out piece
// requests with bounded concurrency, verify each piece against its expected
// hash and re-request on mismatch, then re-verify every piece a second time
// at assembly before writing the file through a BlobStore.
type Session struct {
	InfoHash    string
	Filename    string
	Fetcher     PieceFetcher
	Store       storage.BlobStore
	Concurrency int
	MaxRetries  int
}

// NewSession constructs a Session with default concurrency and retry
// budgets.
func NewSession(infoHash, filename string, fetcher PieceFetcher, store storage.BlobStore) *Session {
	return &Session{
		InfoHash:    infoHash,
		Filename:    filename,
		Fetcher:     fetcher,
		Store:       store,
		Concurrency: DefaultMaxConcurrentPieces,
		MaxRetries:  DefaultMaxPieceRetries,
	}
}

// Run executes the full download, returning a typed error from this package
// on failure and nil once the file is durably written to Store.
func (s *Session) Run(ctx context.Context) error {
	metadata, err := s.Fetcher.RequestMetadata(ctx, s.InfoHash)
	if err != nil {
		return &NoMetadata{InfoHash: s.InfoHash, Cause: err}
	}

	pieces := make([][]byte, len(metadata.Pieces))
	var mu sync.Mutex

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrentPieces
	}
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxPieceRetries
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range metadata.Pieces {
		index := i
		wantHash := metadata.Pieces[index]
		g.Go(func() error {
			var last error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				piece, err := s.Fetcher.RequestPiece(gctx, s.InfoHash, index)
				if err != nil {
					last = err
					continue
				}
				if PieceHash(piece.Bytes) != wantHash {
					last = fmt.Errorf("hash mismatch on attempt %d", attempt+1)
					continue
				}
				mu.Lock()
				pieces[index] = piece.Bytes
				mu.Unlock()
				return nil
			}
			return &CorruptPiece{InfoHash: s.InfoHash, Index: index, cause: last}
		})
	}

	if err := g.Wait(); err != nil {
		var corrupt *CorruptPiece
		if errors.As(err, &corrupt) {
			return corrupt
		}
		return err
	}

	assembled := make([]byte, 0, metadata.FileSize)
	for i, piece := range pieces {
		if PieceHash(piece) != metadata.Pieces[i] {
			return &CorruptPiece{InfoHash: s.InfoHash, Index: i}
		}
		assembled = append(assembled, piece...)
	}

	if int64(len(assembled)) != metadata.FileSize {
		return &SizeMismatch{InfoHash: s.InfoHash, Want: metadata.FileSize, Got: int64(len(assembled))}
	}

	if err := s.Store.Put(s.InfoHash, s.Filename, assembled); err != nil {
		return &WriteFailed{InfoHash: s.InfoHash, Cause: err}
	}
	return nil
}
