package storage

import "context"

// CacheStore is the on-disk cache collaborator named in spec §1/§6
// (`--cacheDir`): an optimization the core compiler is specified only to
// consult through an interface, never required by §4.6's in-memory Import
// Cache semantics. It mirrors the teacher's Store interface split
// (CodeGraphStore/VectorStore), narrowed to the one capability WireState's
// CLI driver actually needs: a read-through check keyed by the input-file
// argument as given on the command line (together with the generator
// settings) and the root file's content hash, short-circuiting a full
// recompile when nothing has changed since the last run.
type CacheStore interface {
	// Get returns the cached generator output for key if present and contentHash
	// matches what was stored, else ok is false.
	Get(ctx context.Context, key, contentHash string) (blob []byte, ok bool, err error)

	// Put stores blob under key, tagged with contentHash.
	Put(ctx context.Context, key, contentHash string, blob []byte) error

	Close() error
}
