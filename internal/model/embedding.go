package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// EmbeddingKind distinguishes image vectors from text vectors in the cache.
type EmbeddingKind string

const (
	KindImage EmbeddingKind = "image"
	KindText  EmbeddingKind = "text"

	// KindImageText labels a model call that embedded both in one request.
	KindImageText EmbeddingKind = "image+text"
)

// EmbeddingKey identifies a cached vector: the same content embedded by the
// same model always yields the same vector, so this triple is a stable key.
type EmbeddingKey struct {
	Model       string        `db:"model"`
	Kind        EmbeddingKind `db:"kind"`
	ContentHash string        `db:"content_hash"`
}

// NewEmbeddingKey hashes content with SHA-256.
func NewEmbeddingKey(modelName string, kind EmbeddingKind, content []byte) EmbeddingKey {
	sum := sha256.Sum256(content)
	return EmbeddingKey{
		Model:       modelName,
		Kind:        kind,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// String renders the key as "model:kind:hash", the form used for redis keys.
func (k EmbeddingKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Model, k.Kind, k.ContentHash)
}

// Embedding is a persisted vector row.
type Embedding struct {
	EmbeddingKey
	Dims      int       `db:"dims"`
	Vector    []byte    `db:"vector"`
	CreatedAt time.Time `db:"created_at"`
}

// EncodeVector packs a float32 vector as little-endian bytes.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector payload length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// ModelCall tracks each call to an embedding backend.
type ModelCall struct {
	ID           int64         `db:"id" json:"id"`
	Provider     string        `db:"provider" json:"provider"`
	Model        string        `db:"model" json:"model"`
	Kind         EmbeddingKind `db:"kind" json:"kind"`
	Inputs       int           `db:"inputs" json:"inputs"`
	Success      bool          `db:"success" json:"success"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	DurationMs   *int64        `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}
