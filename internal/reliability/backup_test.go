package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/territory-assign/internal/modules/assignment"
)

type fakeObject struct {
	body []byte
}

type fakeClient struct {
	objects map[string]fakeObject
	deleted []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]fakeObject{}}
}

func (f *fakeClient) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = fakeObject{body: b}
	return nil
}

func (f *fakeClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for key, obj := range f.objects {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		out = append(out, ObjectInfo{Key: key, Size: int64(len(obj.body))})
	}
	return out, nil
}

func (f *fakeClient) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	return &Service{client: client, log: zerolog.Nop()}, client
}

func TestNilService_IsDisabledAndSafe(t *testing.T) {
	var s *Service
	assert.False(t, s.Enabled())
	require.NoError(t, s.Archive(context.Background(), "build1", assignment.Report{}, time.Now()))

	backups, err := s.ListBackups(context.Background(), "build1")
	require.NoError(t, err)
	assert.Nil(t, backups)
}

func TestArchive_UploadsReportMetadataAndConflicts(t *testing.T) {
	svc, client := newTestService(t)

	report := assignment.Report{
		TotalAccounts:    10,
		AssignedAccounts: 9,
		Conflicts: []assignment.Conflict{
			{AccountID: "acc1", Severity: "high", Reason: "overload"},
		},
		Warnings: []string{"low sample size"},
	}
	at := time.Date(2026, 1, 8, 14, 30, 22, 0, time.UTC)

	require.NoError(t, svc.Archive(context.Background(), "build1", report, at))

	assert.Contains(t, client.objects, "build1/20260108-143022.json.gz")
	assert.Contains(t, client.objects, "build1/20260108-143022-metadata.json.gz")
	assert.Contains(t, client.objects, "build1/20260108-143022-conflicts.json.gz")

	reportBody := client.objects["build1/20260108-143022.json.gz"].body
	gz, err := gzip.NewReader(bytes.NewReader(reportBody))
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "acc1")
}

func TestArchive_SkipsConflictObjectWhenNoneExist(t *testing.T) {
	svc, client := newTestService(t)

	require.NoError(t, svc.Archive(context.Background(), "build1", assignment.Report{}, time.Now()))

	for key := range client.objects {
		assert.NotContains(t, key, "-conflicts.json.gz")
	}
}

func TestListBackups_SortsNewestFirstAndExcludesSidecars(t *testing.T) {
	svc, _ := newTestService(t)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Archive(context.Background(), "build1", assignment.Report{}, older))
	require.NoError(t, svc.Archive(context.Background(), "build1", assignment.Report{}, newer))

	backups, err := svc.ListBackups(context.Background(), "build1")
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
}

func TestRotateOldBackups_KeepsMinimumThreeRegardlessOfAge(t *testing.T) {
	svc, client := newTestService(t)

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.Archive(context.Background(), "build1", assignment.Report{}, base.AddDate(0, 0, i)))
	}

	require.NoError(t, svc.RotateOldBackups(context.Background(), "build1", 1))

	backups, err := svc.ListBackups(context.Background(), "build1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(backups), 3)
	assert.NotEmpty(t, client.deleted)
}

func TestRotateOldBackups_ZeroRetentionKeepsEverything(t *testing.T) {
	svc, client := newTestService(t)

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Archive(context.Background(), "build1", assignment.Report{}, base.AddDate(0, 0, i)))
	}

	require.NoError(t, svc.RotateOldBackups(context.Background(), "build1", 0))
	assert.Empty(t, client.deleted)
}
