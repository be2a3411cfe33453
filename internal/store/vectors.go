package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds the embedding for one indexed activity description.
type VectorRecord struct {
	DocID      string
	Text       string
	Metadata   map[string]string
	Embedding  []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for a document.
func (db *DB) SaveVector(docID, text string, metadata map[string]string, embedding []float64, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	var meta []byte
	if len(metadata) > 0 {
		var err error
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal vector metadata: %w", err)
		}
	}

	_, err := db.Exec(`
		INSERT INTO activity_vectors (doc_id, text, metadata, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			model = excluded.model,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`, docID, text, meta, blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the embedding record for a document, or nil if not found.
func (db *DB) GetVector(docID string) (*VectorRecord, error) {
	row := db.QueryRow(`
		SELECT doc_id, text, metadata, embedding, model, dimensions, created_at
		FROM activity_vectors WHERE doc_id = ?
	`, docID)

	v, err := scanVector(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	return v, nil
}

// AllVectors returns all stored vector records.
func (db *DB) AllVectors() ([]VectorRecord, error) {
	rows, err := db.Query(`
		SELECT doc_id, text, metadata, embedding, model, dimensions, created_at
		FROM activity_vectors
	`)
	if err != nil {
		return nil, fmt.Errorf("all vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		v, err := scanVector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		records = append(records, *v)
	}
	return records, rows.Err()
}

// DeleteVector removes the embedding for a document.
func (db *DB) DeleteVector(docID string) error {
	_, err := db.Exec("DELETE FROM activity_vectors WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}

// CountVectors returns the number of indexed documents.
func (db *DB) CountVectors() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM activity_vectors").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return count, nil
}

func scanVector(row rowScanner) (*VectorRecord, error) {
	var v VectorRecord
	var meta sql.NullString
	var blob []byte
	err := row.Scan(&v.DocID, &v.Text, &meta, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Embedding = decodeEmbedding(blob)
	if meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &v.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal vector metadata: %w", err)
		}
	}
	return &v, nil
}
