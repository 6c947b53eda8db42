// internal/workers/processors_test.go
package workers_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/logger"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
	"github.com/ammerola/resell-stock/internal/workers"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

func testJob() workers.Job {
	return workers.Job{JobID: "job-1", Owner: helpers.TestUser}
}

func TestCatalogProcessor_ProcessImport(t *testing.T) {
	rows := []ports.CatalogRow{{EAN: "3700000000017", Name: "Speaker", Qty: 2}, {Name: "Cable", Qty: 1}}

	tests := []struct {
		name        string
		setup       func(*mocks.MockCatalogService, *mocks.MockObjectStorage)
		wantErr     bool
		wantNoRetry bool
	}{
		{
			name: "imports_and_deletes_upload",
			setup: func(catalog *mocks.MockCatalogService, store *mocks.MockObjectStorage) {
				store.EXPECT().Download(gomock.Any(), "uploads/user-test/a.csv").Return([]byte("ean;nom\n"), nil)
				catalog.EXPECT().Parse("catalog.csv", gomock.Any()).
					DoAndReturn(func(_ string, r io.Reader) (*ports.CatalogPreview, error) {
						b, err := io.ReadAll(r)
						require.NoError(t, err)
						assert.Equal(t, "ean;nom\n", string(b))
						return &ports.CatalogPreview{Rows: rows}, nil
					})
				catalog.EXPECT().Confirm(gomock.Any(), rows, domain.BucketWarehouse).
					DoAndReturn(func(ctx context.Context, _ []ports.CatalogRow, _ domain.Bucket) (int, error) {
						assert.Equal(t, helpers.TestUser, tenant.Owner(ctx))
						return 2, nil
					})
				store.EXPECT().Delete(gomock.Any(), "uploads/user-test/a.csv").Return(nil)
			},
		},
		{
			name: "unparseable_file_is_not_retried",
			setup: func(catalog *mocks.MockCatalogService, store *mocks.MockObjectStorage) {
				store.EXPECT().Download(gomock.Any(), gomock.Any()).Return([]byte("x"), nil)
				catalog.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(nil, domain.Invalid("file", "unsupported file type"))
				store.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantErr:     true,
			wantNoRetry: true,
		},
		{
			name: "partial_insert_is_not_retried",
			setup: func(catalog *mocks.MockCatalogService, store *mocks.MockObjectStorage) {
				store.EXPECT().Download(gomock.Any(), gomock.Any()).Return([]byte("x"), nil)
				catalog.EXPECT().Parse(gomock.Any(), gomock.Any()).Return(&ports.CatalogPreview{Rows: rows}, nil)
				catalog.EXPECT().Confirm(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, errors.New("connection reset"))
				store.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantErr:     true,
			wantNoRetry: true,
		},
		{
			name: "download_failure_is_retried",
			setup: func(_ *mocks.MockCatalogService, store *mocks.MockObjectStorage) {
				store.EXPECT().Download(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			catalog := mocks.NewMockCatalogService(ctrl)
			store := mocks.NewMockObjectStorage(ctrl)
			tt.setup(catalog, store)

			processor := workers.NewCatalogProcessor(catalog, store, helpers.TestLogger())
			task, err := workers.NewCatalogImportTask(workers.CatalogImportPayload{
				Job:      testJob(),
				Key:      "uploads/user-test/a.csv",
				Filename: "catalog.csv",
				Bucket:   domain.BucketWarehouse,
			})
			require.NoError(t, err)

			err = processor.ProcessImport(context.Background(), task)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantNoRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestProcessors_RejectMalformedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := helpers.TestLogger()
	task := asynq.NewTask(workers.TypeBackupRestore, []byte("{"))

	err := workers.NewBackupProcessor(mocks.NewMockBackupService(ctrl), logger).RestoreBackup(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = workers.NewCatalogProcessor(mocks.NewMockCatalogService(ctrl), mocks.NewMockObjectStorage(ctrl), logger).
		ProcessImport(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestBackupProcessor(t *testing.T) {
	ctrl := gomock.NewController(t)
	backups := mocks.NewMockBackupService(ctrl)
	processor := workers.NewBackupProcessor(backups, helpers.TestLogger())

	t.Run("create_archives_for_the_job_tenant", func(t *testing.T) {
		backups.EXPECT().Archive(gomock.Any()).DoAndReturn(func(ctx context.Context) (string, error) {
			id, ok := tenant.Filter(ctx)
			assert.True(t, ok)
			assert.Equal(t, helpers.TestUser, id)
			return "backups/user-test/20250101T000000Z.json", nil
		})

		task, err := workers.NewBackupCreateTask(testJob())
		require.NoError(t, err)
		require.NoError(t, processor.CreateBackup(context.Background(), task))
	})

	t.Run("invalid_archive_is_not_retried", func(t *testing.T) {
		backups.EXPECT().RestoreArchive(gomock.Any(), "backups/old.json").
			Return(nil, domain.ErrInvalidBackup)

		task, err := workers.NewBackupRestoreTask(workers.BackupPayload{Job: testJob(), Key: "backups/old.json"})
		require.NoError(t, err)
		err = processor.RestoreBackup(context.Background(), task)
		assert.ErrorIs(t, err, domain.ErrInvalidBackup)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("restore_reports_counts", func(t *testing.T) {
		backups.EXPECT().RestoreArchive(gomock.Any(), "backups/user-test/a.json").
			Return(&ports.RestoreReport{Suppliers: 1, Purchases: 2, Items: 3, Invoices: 4}, nil)

		task, err := workers.NewBackupRestoreTask(workers.BackupPayload{Job: testJob(), Key: "backups/user-test/a.json"})
		require.NoError(t, err)
		assert.NoError(t, processor.RestoreBackup(context.Background(), task))
	})
}

func TestJobContext(t *testing.T) {
	var job logger.Job
	h := workers.JobContext(asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		var ok bool
		job, ok = logger.JobFrom(ctx)
		require.True(t, ok)
		return nil
	}))

	task, err := workers.NewDigestTask(helpers.TestUser)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	assert.Equal(t, workers.TypeAlertsDigest, job.Type)
	assert.Zero(t, job.Retry)
}
