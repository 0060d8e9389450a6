package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/territory-assign/internal/config"
	"github.com/aristath/territory-assign/internal/modules/assignment"
)

// BackupMetadata accompanies an archived report, mirroring the teacher's
// backup-metadata.json sidecar but scoped to one build's report instead
// of a set of database files.
type BackupMetadata struct {
	BuildID     string    `json:"buildId"`
	Timestamp   time.Time `json:"timestamp"`
	Accounts    int       `json:"totalAccounts"`
	Assigned    int       `json:"assignedAccounts"`
	Conflicts   int       `json:"conflicts"`
	HasOwnWarns bool      `json:"hasWarnings"`
}

// BackupInfo describes one archived report as recovered from object
// listing, analogous to the teacher's ListBackups output.
type BackupInfo struct {
	BuildID   string
	Key       string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

// Service archives generate() reports to an S3-compatible bucket. A nil
// *Service (no bucket configured) makes every method a no-op so callers
// never need to branch on whether backup is enabled.
type Service struct {
	client Client
	log    zerolog.Logger
}

// New builds a backup Service from configuration. Returns a nil Service,
// nil error when no bucket is configured.
func New(ctx context.Context, cfg config.BackupConfig, log zerolog.Logger) (*Service, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building s3 client: %w", err)
	}
	if client == nil {
		return nil, nil
	}
	return &Service{client: client, log: log.With().Str("component", "reliability").Logger()}, nil
}

// NewWithClient builds a Service around an already-constructed Client,
// letting callers (tests, or wiring against an alternative object store)
// bypass config-driven S3Client construction.
func NewWithClient(client Client, log zerolog.Logger) *Service {
	return &Service{client: client, log: log.With().Str("component", "reliability").Logger()}
}

// Enabled reports whether backup is configured. A nil receiver (the zero
// value returned by New when no bucket is set) is always disabled.
func (s *Service) Enabled() bool { return s != nil }

// Archive gzips report as JSON and uploads it under
// "<buildID>/<timestamp>.json.gz", alongside a metadata sidecar object.
// Errors are returned for the caller to log; the §4.8 execute() path
// never fails a run because archiving failed.
func (s *Service) Archive(ctx context.Context, buildID string, report assignment.Report, archivedAt time.Time) error {
	if !s.Enabled() {
		return nil
	}

	reportBody, err := gzipJSON(report)
	if err != nil {
		return fmt.Errorf("compressing report: %w", err)
	}

	stamp := archivedAt.UTC().Format("20060102-150405")
	reportKey := fmt.Sprintf("%s/%s.json.gz", buildID, stamp)
	if err := s.client.Upload(ctx, reportKey, reportBody, int64(reportBody.Len())); err != nil {
		return fmt.Errorf("uploading report: %w", err)
	}

	meta := BackupMetadata{
		BuildID:     buildID,
		Timestamp:   archivedAt,
		Accounts:    report.TotalAccounts,
		Assigned:    report.AssignedAccounts,
		Conflicts:   len(report.Conflicts),
		HasOwnWarns: len(report.Warnings) > 0,
	}
	metaBody, err := gzipJSON(meta)
	if err != nil {
		return fmt.Errorf("compressing metadata: %w", err)
	}
	metaKey := fmt.Sprintf("%s/%s-metadata.json.gz", buildID, stamp)
	if err := s.client.Upload(ctx, metaKey, metaBody, int64(metaBody.Len())); err != nil {
		return fmt.Errorf("uploading metadata: %w", err)
	}

	if len(report.Conflicts) > 0 {
		conflictBody, err := gzipJSON(report.Conflicts)
		if err != nil {
			return fmt.Errorf("compressing conflict log: %w", err)
		}
		conflictKey := fmt.Sprintf("%s/%s-conflicts.json.gz", buildID, stamp)
		if err := s.client.Upload(ctx, conflictKey, conflictBody, int64(conflictBody.Len())); err != nil {
			return fmt.Errorf("uploading conflict log: %w", err)
		}
	}

	s.log.Info().Str("build_id", buildID).Str("key", reportKey).Msg("archived report")
	return nil
}

// ListBackups lists archived reports for one build, newest first.
func (s *Service) ListBackups(ctx context.Context, buildID string) ([]BackupInfo, error) {
	if !s.Enabled() {
		return nil, nil
	}

	objects, err := s.client.List(ctx, buildID+"/")
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json.gz") || strings.HasSuffix(obj.Key, "-metadata.json.gz") || strings.HasSuffix(obj.Key, "-conflicts.json.gz") {
			continue
		}
		ts, ok := objectTimestamp(obj.Key)
		if !ok {
			continue
		}
		backups = append(backups, BackupInfo{
			BuildID:   buildID,
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateOldBackups deletes a build's archived reports older than
// retentionDays, always keeping at least the 3 most recent regardless of
// age. retentionDays of 0 keeps everything.
func (s *Service) RotateOldBackups(ctx context.Context, buildID string, retentionDays int) error {
	if !s.Enabled() || retentionDays == 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx, buildID)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var deleted int
	for i, backup := range backups {
		if i < minBackupsToKeep || !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.client.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().Str("build_id", buildID).Int("deleted", deleted).Msg("rotated old backups")
	return nil
}

func gzipJSON(v interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
