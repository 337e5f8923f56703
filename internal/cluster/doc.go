// Package cluster defines the static configuration and canonical data model
// shared by every participant in a swarmweave cluster: the contiguous layer
// partition a shard owns, the DHT record value a worker publishes to
// advertise a shard replica, and the capability block used to score
// replicas against each other.
//
// # Overview
//
// A cluster is identified by name and fixes two numbers for its lifetime:
// the expected shard count N and the total transformer layer count L. Every
// worker and coordinator that joins computes the same contiguous partition
// from (N, L), so shard identity never needs to be negotiated — it falls
// out of arithmetic on two numbers every participant already has.
//
// # Layer partitioning
//
//	L = 32, N = 4
//	shard 0: layers [0, 8)    has_embeddings
//	shard 1: layers [8, 16)
//	shard 2: layers [16, 24)
//	shard 3: layers [24, 32)  has_output (last shard extends to L)
//
// # Announcements
//
// A ShardAnnouncement is the DHT record value published under key
// "/cluster/<name>/shard/<id>". It carries enough information for a
// discovering coordinator to both locate (multiaddr) and rank (Capabilities)
// a replica without a round trip to the replica itself.
package cluster
