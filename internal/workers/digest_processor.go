// internal/workers/digest_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/config"
)

// MailSender delivers a plain-text message.
type MailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPSender sends mail through the configured SMTP relay.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, to []string, subject, body string) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.cfg.From, strings.Join(to, ", "), subject, strings.ReplaceAll(body, "\n", "\r\n"))

	addr := net.JoinHostPort(s.cfg.SMTPHost, s.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// DigestProcessor mails the low-stock alerts of a tenant, at most once per
// throttle window.
type DigestProcessor struct {
	stock      ports.StockService
	cache      ports.CacheRepository
	sender     MailSender
	recipients []string
	throttle   time.Duration
	logger     *slog.Logger
}

func NewDigestProcessor(
	stock ports.StockService,
	cache ports.CacheRepository,
	sender MailSender,
	mail config.MailConfig,
	logger *slog.Logger,
) *DigestProcessor {
	return &DigestProcessor{
		stock:      stock,
		cache:      cache,
		sender:     sender,
		recipients: mail.Recipients,
		throttle:   mail.Throttle,
		logger:     logger.With(slog.String("processor", "digest")),
	}
}

// ProcessDigest sends the digest when the tenant has critical or low items.
func (p *DigestProcessor) ProcessDigest(ctx context.Context, t *asynq.Task) error {
	var payload DigestPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	ctx = payload.Context(ctx)

	report, err := p.stock.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute alerts: %w", err)
	}
	if len(report.Alerts) == 0 {
		p.logger.DebugContext(ctx, "no alerts, digest skipped")
		return nil
	}

	key := redis_a.BuildKey(redis_a.PrefixDigest, payload.Owner)
	if p.throttle > 0 {
		ok, err := p.cache.SetNX(ctx, key, time.Now().UTC(), p.throttle)
		if err != nil {
			return fmt.Errorf("failed to take digest slot: %w", err)
		}
		if !ok {
			p.logger.InfoContext(ctx, "digest throttled", slog.String("owner", payload.Owner))
			return nil
		}
	}

	subject, body := FormatDigest(payload.Owner, report)
	if err := p.sender.Send(ctx, p.recipients, subject, body); err != nil {
		// free the slot so the retry can send
		if p.throttle > 0 {
			_ = p.cache.Delete(ctx, key)
		}
		return err
	}

	p.logger.InfoContext(ctx, "digest sent",
		slog.String("owner", payload.Owner),
		slog.Int("critical", report.Critical),
		slog.Int("low", report.Low))
	return nil
}

// FormatDigest renders the digest subject and body.
func FormatDigest(owner string, report *ports.AlertReport) (string, string) {
	subject := fmt.Sprintf("Stock alerts: %d out of stock, %d low", report.Critical, report.Low)

	var b strings.Builder
	fmt.Fprintf(&b, "Low-stock digest for %s\n\n", owner)
	for _, a := range report.Alerts {
		label := "LOW"
		if a.Level == ports.AlertCritical {
			label = "OUT"
		}
		fmt.Fprintf(&b, "%-4s %s (%s): %d in stock, threshold %d\n",
			label, a.Item.Name, a.Item.EAN, a.Item.Qty, a.Item.LowStockThreshold)
	}
	if report.Unconfigured > 0 {
		fmt.Fprintf(&b, "\n%d items have no threshold.\n", report.Unconfigured)
	}
	return subject, b.String()
}
