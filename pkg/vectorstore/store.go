// Package vectorstore persists research summaries together with their
// embedding vectors and serves similarity lookups over them.
package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Record is one persisted summary with its embedding.
type Record struct {
	ID        string
	URL       string
	Title     string
	Text      string
	Score     float64
	Embedding []float32
}

// SearchHit is a stored record returned from a similarity search.
type SearchHit struct {
	ID    string
	URL   string
	Title string
	Text  string
	Score float64
}

// Store persists summary records and answers similarity queries. A non-empty
// ids slice restricts Search to those records, so one run's lookup cannot
// return rows persisted by another.
type Store interface {
	StoreBatch(ctx context.Context, records []Record) error
	Search(ctx context.Context, queryVec []float32, topK int, ids []string) ([]SearchHit, error)
}

// EncodeVector serializes a vector as packed little-endian float32 bytes.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes packed little-endian float32 bytes.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding data length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}

// CosineSimilarity returns the cosine similarity of a and b clamped to
// [0, 1]. Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
