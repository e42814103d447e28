package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 1_000

type parquetEvent struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	Height     int64  `parquet:"name=height, type=INT64"`
	Module     string `parquet:"name=module, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every event matching filter to a Parquet file at
// path and returns the number of rows written. filter.Limit is ignored;
// rows are paged through in commit order.
func (ix *Indexer) ExportParquet(ctx context.Context, path string, filter EventFilter) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetEvent), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	page := filter
	page.Limit = exportPageSize
	for {
		records, err := ix.Events(ctx, page)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return written, err
		}
		for _, record := range records {
			attrs, err := json.Marshal(record.Attributes)
			if err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: encode attributes: %w", err)
			}
			row := &parquetEvent{
				ID:         int64(record.ID),
				Height:     int64(record.Height),
				Module:     record.Module,
				Type:       record.Type,
				Attributes: string(attrs),
				CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: parquet write: %w", err)
			}
			written++
		}
		if len(records) < exportPageSize {
			break
		}
		page.AfterID = records[len(records)-1].ID
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return written, nil
}
