package transfer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	mh "github.com/multiformats/go-multihash"
)

// PieceSize is the fixed piece size every transfer uses.
const PieceSize = 64 * 1024

// FileInfo is one entry of a LIST_FILES response.
type FileInfo struct {
	InfoHash string `json:"info_hash"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Metadata is the REQUEST_METADATA response: info-hash, filename, size,
// piece size, and the ordered list of expected per-piece SHA-256 hashes
//.
type Metadata struct {
	InfoHash  string   `json:"info_hash"`
	Filename  string   `json:"filename"`
	FileSize  int64    `json:"file_size"`
	PieceSize int      `json:"piece_size"`
	Pieces    []string `json:"pieces"` // hex SHA-256 per piece
}

// PieceData is one REQUEST_PIECE response.
type PieceData struct {
	InfoHash string `json:"info_hash"`
	Index    int    `json:"index"`
	Bytes    []byte `json:"bytes"`
}

// InfoHash computes the content address of a shard file: a multihash
// wrapping SHA-256(filename || little-endian u64 size).
func InfoHash(filename string, size int64) (string, error) {
	h := sha256.New()
	h.Write([]byte(filename))
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])
	digest := h.Sum(nil)

	mhDigest, err := mh.Encode(digest, mh.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("transfer: encode multihash: %w", err)
	}
	return hex.EncodeToString(mhDigest), nil
}

// PieceHash returns the hex SHA-256 digest of one piece, the format every
// entry of Metadata.Pieces and every piece-verification check uses.
func PieceHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NumPieces returns how many PieceSize-sized pieces a file of size bytes
// splits into (the last piece may be shorter).
func NumPieces(size int64) int {
	if size <= 0 {
		return 0
	}
	n := size / PieceSize
	if size%PieceSize != 0 {
		n++
	}
	return int(n)
}

// PieceBounds returns the [start, end) byte range of piece index within a
// file of the given total size.
func PieceBounds(index int, totalSize int64) (start, end int64) {
	start = int64(index) * PieceSize
	end = start + PieceSize
	if end > totalSize {
		end = totalSize
	}
	return start, end
}

// BuildMetadata computes the full Metadata descriptor for an in-memory
// file, splitting it into pieces and hashing each one.
func BuildMetadata(infoHash, filename string, data []byte) Metadata {
	n := NumPieces(int64(len(data)))
	pieces := make([]string, n)
	for i := 0; i < n; i++ {
		start, end := PieceBounds(i, int64(len(data)))
		pieces[i] = PieceHash(data[start:end])
	}
	return Metadata{
		InfoHash:  infoHash,
		Filename:  filename,
		FileSize:  int64(len(data)),
		PieceSize: PieceSize,
		Pieces:    pieces,
	}
}
