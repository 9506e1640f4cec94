package index

import "time"

// MetadataVersion is the current metadata format version. Bumped whenever
// the artifact contract changes; loaders refuse other versions.
const MetadataVersion = 1

// EntryRef maps one vector position back to its chunk. Entry i describes
// vector i; the two artifacts are only valid as a pair.
type EntryRef struct {
	ChunkID int64  `json:"chunk_id"`
	VideoID string `json:"video_id"`
}

// Metadata is the JSON sidecar published next to the binary index. It
// records the provider identity the vectors came from and a content hash
// of the index file so a mismatched pair is detected at load time.
type Metadata struct {
	Version     int        `json:"version"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Dimension   int        `json:"dimension"`
	Count       int        `json:"count"`
	IndexSHA256 string     `json:"index_sha256"`
	BuiltAt     time.Time  `json:"built_at"`
	Entries     []EntryRef `json:"entries"`
}
