// Package snapshot encodes and decodes immutable batch snapshot artifacts.
//
// A snapshot is the write-once materialization of one extraction: the
// normalized header plus every source row as untouched text. The on-disk
// format is a small binary envelope:
//
//   - 8 bytes: magic "QSNAP001"
//   - 4 bytes: manifest length (uint32, little-endian)
//   - manifest JSON
//   - snappy-compressed JSON row data
//
// The manifest carries a murmur3 checksum of the uncompressed row data so a
// truncated or corrupted snapshot is detected before any row reaches the
// raw store.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/quakeflow/quakeflow/pkg/types"
)

var magic = [8]byte{'Q', 'S', 'N', 'A', 'P', '0', '0', '1'}

// Manifest describes a snapshot without decoding its rows.
type Manifest struct {
	BatchID   types.BatchID `json:"batch_id"`
	Columns   []string      `json:"columns"`
	RowCount  int           `json:"row_count"`
	Checksum  uint64        `json:"checksum"`
	CreatedAt time.Time     `json:"created_at"`
}

// Snapshot is one extraction's data: normalized columns and textual rows.
type Snapshot struct {
	Manifest Manifest
	Rows     [][]string
}

// New builds a snapshot for a batch from normalized columns and raw rows.
func New(batchID types.BatchID, columns []string, rows [][]string) *Snapshot {
	return &Snapshot{
		Manifest: Manifest{
			BatchID:   batchID,
			Columns:   columns,
			RowCount:  len(rows),
			CreatedAt: time.Now().UTC(),
		},
		Rows: rows,
	}
}

// WriteFile encodes the snapshot to a local file.
func (s *Snapshot) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := s.encode(f); err != nil {
		return err
	}
	return f.Close()
}

func (s *Snapshot) encode(w io.Writer) error {
	rowData, err := json.Marshal(s.Rows)
	if err != nil {
		return fmt.Errorf("snapshot: failed to marshal rows: %w", err)
	}

	s.Manifest.RowCount = len(s.Rows)
	s.Manifest.Checksum = murmur3.Sum64(rowData)

	manifestData, err := json.Marshal(s.Manifest)
	if err != nil {
		return fmt.Errorf("snapshot: failed to marshal manifest: %w", err)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("snapshot: failed to write magic: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(manifestData)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: failed to write manifest length: %w", err)
	}
	if _, err := w.Write(manifestData); err != nil {
		return fmt.Errorf("snapshot: failed to write manifest: %w", err)
	}

	if _, err := w.Write(snappy.Encode(nil, rowData)); err != nil {
		return fmt.Errorf("snapshot: failed to write row data: %w", err)
	}

	return nil
}

// ReadFile decodes a snapshot from a local file, verifying the manifest
// checksum and row count against the decoded rows.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to read %s: %w", path, err)
	}
	return decode(data)
}

func decode(data []byte) (*Snapshot, error) {
	if len(data) < len(magic)+4 {
		return nil, fmt.Errorf("snapshot: file too short (%d bytes)", len(data))
	}
	for i, b := range magic {
		if data[i] != b {
			return nil, fmt.Errorf("snapshot: bad magic")
		}
	}

	offset := len(magic)
	manifestLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data) < offset+manifestLen {
		return nil, fmt.Errorf("snapshot: truncated manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data[offset:offset+manifestLen], &manifest); err != nil {
		return nil, fmt.Errorf("snapshot: failed to unmarshal manifest: %w", err)
	}
	offset += manifestLen

	rowData, err := snappy.Decode(nil, data[offset:])
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to decompress rows: %w", err)
	}

	if got := murmur3.Sum64(rowData); got != manifest.Checksum {
		return nil, fmt.Errorf("snapshot: checksum mismatch: manifest %d, content %d", manifest.Checksum, got)
	}

	var rows [][]string
	if err := json.Unmarshal(rowData, &rows); err != nil {
		return nil, fmt.Errorf("snapshot: failed to unmarshal rows: %w", err)
	}

	if len(rows) != manifest.RowCount {
		return nil, fmt.Errorf("snapshot: row count mismatch: manifest %d, content %d", manifest.RowCount, len(rows))
	}

	return &Snapshot{Manifest: manifest, Rows: rows}, nil
}
