package rules

// StoreStats reports lightweight store metrics and metadata.
// Values are read from the store in a cheap, read-only transaction.
type StoreStats struct {
	Version     uint64 // number of committed batches (0 if unknown)
	UpdatedUnix int64  // last batch unix time (0 if unknown)
	Rules       uint64 // number of registered rules
}

// EngineStats exposes engine-level counters and underlying store stats.
type EngineStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Anchored  int // rules pinned to a host (bloom-eligible)
	Floating  int // rules that may match any host
	Hosts     int // distinct pinned hosts in the host index
	Store     StoreStats
}
