package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/transfer"
)

// RemoteFetcher implements transfer.PieceFetcher by issuing
// REQUEST_METADATA/REQUEST_PIECE commands to a remote seeder over a
// protocol.Sender, letting a downloading worker's Session drive a transfer
// against a peer it has never loaded code for directly.
type RemoteFetcher struct {
	sender protocol.Sender
	addr   string
	from   string
}

// NewRemoteFetcher targets a seeder reachable at addr, identifying outbound
// commands as coming from `from` (the downloading worker's own peer id).
func NewRemoteFetcher(sender protocol.Sender, addr, from string) *RemoteFetcher {
	return &RemoteFetcher{sender: sender, addr: addr, from: from}
}

func (f *RemoteFetcher) send(ctx context.Context, command string, params map[string]interface{}) (protocol.ResponseEnvelope, error) {
	cmd := protocol.CommandEnvelope{
		Command:   command,
		RequestID: uuid.NewString(),
		From:      f.from,
		Timestamp: time.Now(),
		Params:    params,
	}
	resp, err := f.sender.Send(ctx, f.addr, cmd)
	if err != nil {
		return protocol.ResponseEnvelope{}, err
	}
	if resp.Status != protocol.StatusSuccess {
		return protocol.ResponseEnvelope{}, fmt.Errorf("worker: %s failed: %s", command, resp.Error)
	}
	return resp, nil
}

// RequestMetadata implements transfer.PieceFetcher.
func (f *RemoteFetcher) RequestMetadata(ctx context.Context, infoHash string) (transfer.Metadata, error) {
	resp, err := f.send(ctx, protocol.CmdRequestMetadata, map[string]interface{}{"info_hash": infoHash})
	if err != nil {
		return transfer.Metadata{}, err
	}

	metadata := transfer.Metadata{
		InfoHash: asString(resp.Result["info_hash"]),
		Filename: asString(resp.Result["filename"]),
		FileSize: int64(asFloat(resp.Result["file_size"])),
	}
	if ps, ok := resp.Result["piece_size"]; ok {
		metadata.PieceSize = int(asFloat(ps))
	}
	if raw, ok := resp.Result["pieces"].([]interface{}); ok {
		metadata.Pieces = make([]string, len(raw))
		for i, p := range raw {
			metadata.Pieces[i] = asString(p)
		}
	}
	return metadata, nil
}

// RequestPiece implements transfer.PieceFetcher.
func (f *RemoteFetcher) RequestPiece(ctx context.Context, infoHash string, index int) (transfer.PieceData, error) {
	resp, err := f.send(ctx, protocol.CmdRequestPiece, map[string]interface{}{"info_hash": infoHash, "index": index})
	if err != nil {
		return transfer.PieceData{}, err
	}

	raw := asString(resp.Result["bytes"])
	bytes, decErr := base64.StdEncoding.DecodeString(raw)
	if decErr != nil {
		return transfer.PieceData{}, fmt.Errorf("worker: decode piece bytes: %w", decErr)
	}
	return transfer.PieceData{
		InfoHash: asString(resp.Result["info_hash"]),
		Index:    int(asFloat(resp.Result["index"])),
		Bytes:    bytes,
	}, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
