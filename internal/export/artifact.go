// Package export materializes the analytics store as a compressed columnar
// artifact for external consumers.
//
// Artifact layout:
//
//   - 8 bytes: magic "QCOL0001"
//   - 4 bytes: header length (uint32, little-endian)
//   - header JSON: column names, row count, creation time
//   - per column: 4-byte block length, then a snappy-compressed JSON array
//     holding that column's values for every row
//
// Consumers read whole columns without touching the rest of the file. The
// artifact is a point-in-time copy: stale as soon as the next batch is
// transformed, and never authoritative over the analytics store.
package export

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang/snappy"

	"github.com/quakeflow/quakeflow/pkg/types"
)

var artifactMagic = [8]byte{'Q', 'C', 'O', 'L', '0', '0', '0', '1'}

// artifactColumns is the fixed column order of the export artifact.
var artifactColumns = []string{
	"earthquake_datetime",
	"magnitude",
	"latitude",
	"longitude",
	"depth_km",
	"location_reference",
	"status",
	"year",
	"month",
	"day_of_week",
	"hour_of_day",
	"magnitude_category",
	"depth_category",
	"region",
	"is_significant",
	"batch_id",
}

// ArtifactHeader describes an artifact without decoding its column blocks.
type ArtifactHeader struct {
	Columns   []string  `json:"columns"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// columnValues extracts one named column from the event rows.
func columnValues(events []types.Event, column string) []interface{} {
	vals := make([]interface{}, len(events))
	for i, ev := range events {
		switch column {
		case "earthquake_datetime":
			if ev.EventTime != nil {
				vals[i] = ev.EventTime.Unix()
			}
		case "magnitude":
			vals[i] = deref(ev.Magnitude)
		case "latitude":
			vals[i] = deref(ev.Latitude)
		case "longitude":
			vals[i] = deref(ev.Longitude)
		case "depth_km":
			vals[i] = deref(ev.DepthKm)
		case "location_reference":
			vals[i] = ev.LocationRef
		case "status":
			vals[i] = ev.Status
		case "year":
			vals[i] = ev.Year
		case "month":
			vals[i] = ev.Month
		case "day_of_week":
			vals[i] = ev.DayOfWeek
		case "hour_of_day":
			vals[i] = ev.HourOfDay
		case "magnitude_category":
			vals[i] = string(ev.MagnitudeCategory)
		case "depth_category":
			vals[i] = string(ev.DepthCategory)
		case "region":
			vals[i] = ev.Region
		case "is_significant":
			vals[i] = ev.IsSignificant
		case "batch_id":
			vals[i] = ev.BatchID.String()
		}
	}
	return vals
}

func deref(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// WriteArtifact encodes the events as a columnar artifact file.
func WriteArtifact(path string, events []types.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: failed to create artifact %s: %w", path, err)
	}
	defer f.Close()

	header := ArtifactHeader{
		Columns:   artifactColumns,
		RowCount:  len(events),
		CreatedAt: time.Now().UTC(),
	}
	headerData, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("export: failed to marshal header: %w", err)
	}

	if _, err := f.Write(artifactMagic[:]); err != nil {
		return fmt.Errorf("export: failed to write magic: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(headerData)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("export: failed to write header length: %w", err)
	}
	if _, err := f.Write(headerData); err != nil {
		return fmt.Errorf("export: failed to write header: %w", err)
	}

	for _, column := range artifactColumns {
		colData, err := json.Marshal(columnValues(events, column))
		if err != nil {
			return fmt.Errorf("export: failed to marshal column %s: %w", column, err)
		}
		block := snappy.Encode(nil, colData)

		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(block)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("export: failed to write block length: %w", err)
		}
		if _, err := f.Write(block); err != nil {
			return fmt.Errorf("export: failed to write column %s: %w", column, err)
		}
	}

	return f.Close()
}

// ReadArtifact decodes an artifact file back into its header and per-column
// value arrays, keyed by column name.
func ReadArtifact(path string) (*ArtifactHeader, map[string][]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("export: failed to read artifact %s: %w", path, err)
	}

	if len(data) < len(artifactMagic)+4 {
		return nil, nil, fmt.Errorf("export: artifact too short (%d bytes)", len(data))
	}
	for i, b := range artifactMagic {
		if data[i] != b {
			return nil, nil, fmt.Errorf("export: bad artifact magic")
		}
	}

	offset := len(artifactMagic)
	headerLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data) < offset+headerLen {
		return nil, nil, fmt.Errorf("export: truncated artifact header")
	}
	var header ArtifactHeader
	if err := json.Unmarshal(data[offset:offset+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("export: failed to unmarshal header: %w", err)
	}
	offset += headerLen

	columns := make(map[string][]interface{}, len(header.Columns))
	for _, column := range header.Columns {
		if len(data) < offset+4 {
			return nil, nil, fmt.Errorf("export: truncated block length for column %s", column)
		}
		blockLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		if len(data) < offset+blockLen {
			return nil, nil, fmt.Errorf("export: truncated block for column %s", column)
		}
		colData, err := snappy.Decode(nil, data[offset:offset+blockLen])
		if err != nil {
			return nil, nil, fmt.Errorf("export: failed to decompress column %s: %w", column, err)
		}
		offset += blockLen

		var vals []interface{}
		if err := json.Unmarshal(colData, &vals); err != nil {
			return nil, nil, fmt.Errorf("export: failed to unmarshal column %s: %w", column, err)
		}
		if len(vals) != header.RowCount {
			return nil, nil, fmt.Errorf("export: column %s holds %d values, header says %d rows",
				column, len(vals), header.RowCount)
		}
		columns[column] = vals
	}

	return &header, columns, nil
}
