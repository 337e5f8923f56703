// Package transfer implements the chunk-transfer subsystem: content
// addressed seeding and fetching of shard files by 64 KiB pieces with
// per-piece SHA-256 verification.
//
// A Seeder enumerates the shard files a worker has on disk and answers
// LIST_FILES/REQUEST_METADATA/REQUEST_PIECE. A Session drives the
// downloader side of one in-flight transfer: request metadata, fan out
// piece requests, verify and re-request on mismatch, and assemble the
// final file only once every piece has passed verification twice — once on
// receipt, once again at assembly time.
package transfer
