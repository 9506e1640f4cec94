package domain

import "time"

// Chunk is one fixed-size slice of a video transcript.
// Chunk IDs are allocated by the database and stay stable and monotonic;
// the vector index metadata refers back to them, so regeneration for a
// video must replace all of its chunks in one transaction.
type Chunk struct {
	ChunkID  int64  `gorm:"primaryKey;autoIncrement" json:"chunk_id"`
	VideoID  string `gorm:"type:text;not null;index:idx_chunks_video" json:"video_id"`
	Position int    `gorm:"not null" json:"position"`
	Content  string `gorm:"type:text;not null" json:"content"`
}

func (Chunk) TableName() string {
	return "chunks"
}

// ChunkEmbedding caches the embedding vector computed for a chunk by a
// specific provider/model pair. The indexer reuses cache hits so a rebuild
// only calls the provider for chunks it has never embedded. Vectors are
// stored as little-endian float32 blobs.
type ChunkEmbedding struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ChunkID   int64     `gorm:"not null;uniqueIndex:idx_chunk_embeddings_identity" json:"chunk_id"`
	Provider  string    `gorm:"type:text;not null;uniqueIndex:idx_chunk_embeddings_identity" json:"provider"`
	Model     string    `gorm:"type:text;not null;uniqueIndex:idx_chunk_embeddings_identity" json:"model"`
	Dimension int       `gorm:"not null" json:"dimension"`
	Vector    []byte    `gorm:"type:blob;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
