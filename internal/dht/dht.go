// Package dht defines the minimal distributed-hash-table abstraction the
// rest of swarmweave depends on — put_record/get_record/bootstrap plus
// XOR-distance routing depth — and ships an in-memory
// implementation for tests and single-process deployments.
//
// The real substrate (authenticated multiplexed sessions, Kademlia routing
// table maintenance, NAT traversal) is an external collaborator; the
// production wiring point is the Store interface below, backed in a real
// deployment by a libp2p Kademlia DHT host.
package dht

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dreamware/swarmweave/internal/cluster"
)

// Record is a raw DHT record: an opaque value published under key, plus the
// time it was published. Readers tolerate reorder via the timestamp field —
// latest PutRecord for the same key wins.
type Record struct {
	Key         string
	Value       []byte
	PublishedAt time.Time
}

// Store is the external DHT collaborator interface: put/get a record,
// bootstrap into the network, and report routing depth to a peer.
type Store interface {
	PutRecord(ctx context.Context, key string, value []byte) error
	GetRecord(ctx context.Context, key string) (Record, bool, error)
	// GetRecords returns the latest record of each publisher under every
	// key that starts with keyPrefix — the Discovery Index needs all
	// replicas of a shard, not just one.
	GetRecords(ctx context.Context, keyPrefix string) ([]Record, error)
	Bootstrap(ctx context.Context, addrs []string) error
	RoutingDepth(p peer.ID) int
}

// keyID hashes a peer/key string down to a 160-bit identifier the way
// Kademlia buckets peers, following the truncated-SHA-256 scheme in
// _examples/orbas1-Synnergy/synnergy-network/core/kademlia.go.
func keyID(s string) [20]byte {
	sum := sha256.Sum256([]byte(s))
	var id [20]byte
	copy(id[:], sum[:20])
	return id
}

func xorDistance(a, b [20]byte) *big.Int {
	var xored [20]byte
	for i := range a {
		xored[i] = a[i] ^ b[i]
	}
	return new(big.Int).SetBytes(xored[:])
}

// MemStore is an in-memory Store keyed on the exact DHT key string, with a
// self ID used to derive routing depth by XOR distance. One MemStore
// instance models one node's local view; peers in the same test process
// typically share a MemStore to model a converged DHT.
//
// Records are segregated per publisher within a key, not just per key: the
// DHT key format (cluster.Config.RecordKey) is peer-agnostic, so two peers
// announcing the same shard-id both publish under the same key string, and
// both must survive as distinct replicas for the Discovery Index to see.
type MemStore struct {
	mu       sync.RWMutex
	selfID   [20]byte
	records  map[string]map[peer.ID]Record // key -> latest record per publisher
	knownIDs map[peer.ID][20]byte
}

// NewMemStore creates a MemStore bound to self's local identity.
func NewMemStore(self peer.ID) *MemStore {
	return &MemStore{
		selfID:   keyID(string(self)),
		records:  make(map[string]map[peer.ID]Record),
		knownIDs: make(map[peer.ID][20]byte),
	}
}

// PutRecord publishes value under key, recording the wall-clock publish
// time used for freshness checks downstream. The publishing peer is read
// back out of value (a JSON-encoded cluster.ShardAnnouncement in every
// production caller) so records from different publishers never collide;
// a value that doesn't decode to one falls back to a shared anonymous
// bucket, matching the old single-publisher-per-key behavior.
func (m *MemStore) PutRecord(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[key] == nil {
		m.records[key] = make(map[peer.ID]Record)
	}
	m.records[key][publisherOf(value)] = Record{Key: key, Value: value, PublishedAt: time.Now()}
	return nil
}

// publisherOf extracts the announcing peer from an announcement value.
func publisherOf(value []byte) peer.ID {
	var ann cluster.ShardAnnouncement
	if err := json.Unmarshal(value, &ann); err != nil || ann.PeerID == "" {
		return ""
	}
	return ann.PeerID
}

// GetRecord returns the most recently published record under key across
// every publisher, if any.
func (m *MemStore) GetRecord(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byPublisher := m.records[key]
	if len(byPublisher) == 0 {
		return Record{}, false, nil
	}
	return latestOf(byPublisher), true, nil
}

// GetRecords returns the latest record per publisher for every key sharing
// keyPrefix — used to enumerate all replica announcements under a shard's
// key prefix, one entry per announcing peer.
func (m *MemStore) GetRecords(_ context.Context, keyPrefix string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0)
	for k, byPublisher := range m.records {
		if len(k) < len(keyPrefix) || k[:len(keyPrefix)] != keyPrefix {
			continue
		}
		for _, rec := range byPublisher {
			out = append(out, rec)
		}
	}
	return out, nil
}

func latestOf(byPublisher map[peer.ID]Record) Record {
	var best Record
	first := true
	for _, r := range byPublisher {
		if first || r.PublishedAt.After(best.PublishedAt) {
			best, first = r, false
		}
	}
	return best
}

// Bootstrap accepts seed peer addresses. MemStore has no network to dial,
// so it ignores them and always returns nil.
func (m *MemStore) Bootstrap(_ context.Context, _ []string) error {
	return nil
}

// RoutingDepth returns a monotonically-ordered distance rank to p: smaller
// means closer, matching Kademlia bucket semantics.
func (m *MemStore) RoutingDepth(p peer.ID) int {
	m.mu.Lock()
	id, ok := m.knownIDs[p]
	if !ok {
		id = keyID(string(p))
		m.knownIDs[p] = id
	}
	m.mu.Unlock()

	dist := xorDistance(m.selfID, id)
	return dist.BitLen()
}

// AllKnownRecords returns every record currently stored, latest per
// (key, publisher) pair — used by tests to assert on DHT state directly.
func (m *MemStore) AllKnownRecords() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, byPublisher := range m.records {
		for _, rec := range byPublisher {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
