// internal/workers/digest_processor_test.go
package workers_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/workers"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

type sentMail struct {
	to            []string
	subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type DigestProcessorSuite struct {
	suite.Suite
	redis     *helpers.TestRedis
	stock     *mocks.MockStockService
	sender    *fakeSender
	processor *workers.DigestProcessor
}

func TestDigestProcessorSuite(t *testing.T) {
	suite.Run(t, new(DigestProcessorSuite))
}

func (s *DigestProcessorSuite) SetupTest() {
	s.redis = helpers.SetupTestRedis(s.T())
	s.stock = mocks.NewMockStockService(gomock.NewController(s.T()))
	s.sender = &fakeSender{}

	logger := helpers.TestLogger()
	mail := config.MailConfig{Recipients: []string{"ops@shop.test"}, Throttle: time.Hour}
	s.processor = workers.NewDigestProcessor(s.stock, redis_a.NewCache(s.redis.Client, logger), s.sender, mail, logger)
}

func (s *DigestProcessorSuite) task() *asynq.Task {
	task, err := workers.NewDigestTask(helpers.TestUser)
	s.Require().NoError(err)
	return task
}

func lowReport() *ports.AlertReport {
	out := helpers.CreateTestItem(func(i *domain.Item) { i.Name = "Speaker"; i.LowStockThreshold = 2 })
	out.SetBuckets(0, 0, 0)
	low := helpers.CreateTestItem(func(i *domain.Item) { i.Name = "Cable"; i.LowStockThreshold = 5 })
	return &ports.AlertReport{
		Critical:     1,
		Low:          1,
		Unconfigured: 3,
		Alerts: []ports.StockAlert{
			{Item: *out, Level: ports.AlertCritical},
			{Item: *low, Level: ports.AlertLow},
		},
	}
}

func (s *DigestProcessorSuite) TestNoAlertsSendsNothing() {
	s.stock.EXPECT().Alerts(gomock.Any()).Return(&ports.AlertReport{Alerts: []ports.StockAlert{}}, nil)

	s.Require().NoError(s.processor.ProcessDigest(context.Background(), s.task()))
	s.Empty(s.sender.sent)
	s.False(s.redis.Server.Exists("digest:" + helpers.TestUser))
}

func (s *DigestProcessorSuite) TestSendsOncePerWindow() {
	s.stock.EXPECT().Alerts(gomock.Any()).Return(lowReport(), nil).Times(3)

	s.Require().NoError(s.processor.ProcessDigest(context.Background(), s.task()))
	s.Require().NoError(s.processor.ProcessDigest(context.Background(), s.task()))
	s.Require().Len(s.sender.sent, 1)

	mail := s.sender.sent[0]
	s.Equal([]string{"ops@shop.test"}, mail.to)
	s.Equal("Stock alerts: 1 out of stock, 1 low", mail.subject)
	s.Contains(mail.body, "OUT  Speaker (3700000000017): 0 in stock, threshold 2")
	s.Contains(mail.body, "LOW  Cable (3700000000017): 5 in stock, threshold 5")
	s.Contains(mail.body, "3 items have no threshold.")

	s.redis.Server.FastForward(time.Hour + time.Second)
	s.Require().NoError(s.processor.ProcessDigest(context.Background(), s.task()))
	s.Len(s.sender.sent, 2)
}

func (s *DigestProcessorSuite) TestSendFailureFreesTheSlot() {
	s.stock.EXPECT().Alerts(gomock.Any()).Return(lowReport(), nil).Times(2)
	s.sender.err = errors.New("connection refused")

	s.Error(s.processor.ProcessDigest(context.Background(), s.task()))
	s.False(s.redis.Server.Exists("digest:" + helpers.TestUser))

	s.sender.err = nil
	s.Require().NoError(s.processor.ProcessDigest(context.Background(), s.task()))
	s.Len(s.sender.sent, 1)
}

func TestCleanupProcessor_CleanupUploads(t *testing.T) {
	ctx := context.Background()
	logger := helpers.TestLogger()
	store, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)

	now := time.Now()
	stale := workers.UploadKey("uploads", helpers.TestUser, "old.csv", now.Add(-2*time.Hour))
	fresh := workers.UploadKey("uploads", helpers.TestUser, "new.pdf", now)
	for _, key := range []string{stale, fresh, "uploads/manual.txt", "backups/user-test/20200101T000000Z.json"} {
		_, err := store.Upload(ctx, key, bytes.NewReader([]byte("x")), "text/plain")
		require.NoError(t, err)
	}

	processor := workers.NewCleanupProcessor(store, "uploads", time.Hour, logger)
	require.NoError(t, processor.CleanupUploads(ctx, workers.NewCleanupTask()))

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, keys, stale)
	assert.Contains(t, keys, fresh)
	assert.Contains(t, keys, "uploads/manual.txt")
	assert.Contains(t, keys, "backups/user-test/20200101T000000Z.json")
}

func TestUploadKey(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Regexp(t, `^uploads/user-1/20250304T050607Z-[0-9a-f-]{36}\.xlsx$`, workers.UploadKey("uploads", "user-1", "Cat.XLSX", at))
	assert.Regexp(t, `^uploads/all/`, workers.UploadKey("uploads", "", "a.csv", at))
}

type recordingRegistrar struct {
	specs []string
	types []string
}

func (r *recordingRegistrar) Register(spec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	r.specs = append(r.specs, spec)
	r.types = append(r.types, task.Type())
	return "entry", nil
}

func TestRegisterPeriodicTasks(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	cfg.Asynq.CleanupCron = "@hourly"
	cfg.Asynq.DigestCron = "0 8 * * *"
	cfg.Mail = config.MailConfig{SMTPHost: "smtp.test", From: "stock@shop.test", Recipients: []string{"ops@shop.test"}, Tenants: []string{"user-1", "user-2"}}

	r := &recordingRegistrar{}
	n, err := workers.RegisterPeriodicTasks(r, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{workers.TypeCleanupUploads, workers.TypeAlertsDigest, workers.TypeAlertsDigest}, r.types)
	assert.Equal(t, []string{"@hourly", "0 8 * * *", "0 8 * * *"}, r.specs)

	// without SMTP only the cleanup runs
	cfg.Mail.SMTPHost = ""
	r = &recordingRegistrar{}
	n, err = workers.RegisterPeriodicTasks(r, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
