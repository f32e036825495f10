package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/types"
)

// ExportStorage is the object-store surface the report service needs.
type ExportStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// ReportService renders attendance records to CSV and uploads the file to
// object storage.
type ReportService struct {
	records AttendanceRepository
	storage ExportStorage
	logger  *slog.Logger
}

func NewReportService(records AttendanceRepository, storage ExportStorage, logger *slog.Logger) *ReportService {
	return &ReportService{records: records, storage: storage, logger: logger}
}

// Export describes an uploaded CSV report.
type Export struct {
	Key     string `json:"key"`
	Bucket  string `json:"bucket"`
	Records int    `json:"records"`
}

// ExportCSV writes the filtered records as a CSV object and returns its
// storage key. An empty result set still produces a header-only file.
func (s *ReportService) ExportCSV(ctx context.Context, filter types.AttendanceFilter) (Export, error) {
	if s.storage == nil {
		return Export{}, apperr.Validation("export storage is not configured")
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return Export{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "actorType", "actorId", "action", "visitType", "hostEmployeeId", "recordedAt"}
	if err := w.Write(header); err != nil {
		return Export{}, fmt.Errorf("writing csv header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.ID,
			string(record.ActorType),
			record.ActorID,
			string(record.Action),
			string(record.VisitType),
			record.HostEmployeeID,
			record.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return Export{}, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Export{}, fmt.Errorf("flushing csv: %w", err)
	}

	key := fmt.Sprintf("exports/attendance-%s-%s.csv", time.Now().UTC().Format("20060102-150405"), uuid.NewString())
	if err := s.storage.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv"); err != nil {
		return Export{}, fmt.Errorf("uploading export: %w", err)
	}

	s.logger.Info("attendance export uploaded", "key", key, "records", len(records))
	return Export{Key: key, Bucket: s.storage.Bucket(), Records: len(records)}, nil
}
