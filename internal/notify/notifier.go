// internal/notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"policy-monitor/internal/common/config"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/mail"
	"policy-monitor/internal/common/metrics"
	"policy-monitor/internal/document"
	"policy-monitor/internal/models"
)

const (
	summaryFileName = "Application_Summary.pdf"
	deliverTimeout  = 30 * time.Second
)

// Downloader reads stored documents back for mailing.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Notifier sends the head-office email for a completed document step.
// Delivery happens off the request path; a failed send is parked on a
// Redis list and retried by the background worker instead of bubbling
// back to the client.
type Notifier struct {
	mailer  mail.Mailer
	redis   *redis.Client
	store   Downloader
	summary document.SummaryGenerator
	cfg     config.NotificationConfig
	logger  logger.Logger
}

func NewNotifier(
	mailer mail.Mailer,
	rdb *redis.Client,
	store Downloader,
	summary document.SummaryGenerator,
	cfg config.NotificationConfig,
	log logger.Logger,
) *Notifier {
	return &Notifier{
		mailer:  mailer,
		redis:   rdb,
		store:   store,
		summary: summary,
		cfg:     cfg,
		logger:  log,
	}
}

// queuedNotification is the retry-queue payload. The submission snapshot
// travels with it so a drain does not need a database round trip.
type queuedNotification struct {
	Submission *models.Submission `json:"submission"`
	Attempts   int                `json:"attempts"`
}

// Dispatch fires the notification asynchronously. The caller's request
// has already been persisted; nothing here can undo it.
func (n *Notifier) Dispatch(sub *models.Submission) {
	if !n.cfg.Enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := n.deliver(ctx, sub); err != nil {
			n.logger.WithError(err).Warn("notification failed, queueing for retry", map[string]interface{}{
				"serial": sub.SerialNumber,
			})
			// Fresh context: the delivery one may already be expired.
			qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer qcancel()
			n.enqueue(qctx, &queuedNotification{Submission: sub, Attempts: 1})
		}
	}()
}

func (n *Notifier) deliver(ctx context.Context, sub *models.Submission) error {
	msg, err := n.buildMessage(ctx, sub)
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return err
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	n.logger.Info("notification sent", map[string]interface{}{
		"serial": sub.SerialNumber,
		"to":     n.cfg.ToEmail,
	})
	return nil
}

// buildMessage renders the summary, pulls every stored attachment back
// from object storage, and assembles the outgoing email. An attachment
// that cannot be downloaded is skipped with a log line, matching the
// send-what-we-have policy.
func (n *Notifier) buildMessage(ctx context.Context, sub *models.Submission) (*mail.Message, error) {
	summary, err := n.summary.Render(sub)
	if err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	attachments := []mail.Attachment{{
		Filename:    summaryFileName,
		ContentType: "application/pdf",
		Content:     summary,
	}}

	for _, a := range sub.Attachments {
		content, err := n.store.Download(ctx, a.FilePath)
		if err != nil {
			n.logger.WithError(err).Warn("attachment download failed, skipping", map[string]interface{}{
				"serial": sub.SerialNumber,
				"file":   a.FileName,
			})
			continue
		}
		attachments = append(attachments, mail.Attachment{
			Filename:    a.FileName,
			ContentType: a.MimeType,
			Content:     content,
		})
	}

	return &mail.Message{
		From:        n.cfg.FromEmail,
		To:          n.cfg.ToEmail,
		Subject:     fmt.Sprintf("Submission: %s - %s", sub.SerialNumber, sub.ClientName),
		Body:        "Please find attached the application documents.",
		Attachments: attachments,
	}, nil
}

func (n *Notifier) enqueue(ctx context.Context, item *queuedNotification) {
	payload, err := json.Marshal(item)
	if err != nil {
		n.logger.WithError(err).Error("cannot marshal retry payload", nil)
		return
	}
	if err := n.redis.RPush(ctx, n.cfg.Retry.Queue, payload).Err(); err != nil {
		n.logger.WithError(err).Error("cannot enqueue notification retry", map[string]interface{}{
			"queue": n.cfg.Retry.Queue,
		})
		return
	}
	metrics.NotificationsSent.WithLabelValues("queued").Inc()
}

// RunRetryWorker drains the retry queue until the context ends. One item
// per tick keeps the single SMTP connection from being fought over.
func (n *Notifier) RunRetryWorker(ctx context.Context) {
	interval := time.Duration(n.cfg.Retry.Interval) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.drainOne(ctx)
		}
	}
}

func (n *Notifier) drainOne(ctx context.Context) {
	payload, err := n.redis.LPop(ctx, n.cfg.Retry.Queue).Bytes()
	if err == redis.Nil {
		return
	}
	if err != nil {
		n.logger.WithError(err).Error("retry queue read failed", nil)
		return
	}

	var item queuedNotification
	if err := json.Unmarshal(payload, &item); err != nil {
		n.logger.WithError(err).Error("dropping malformed retry payload", nil)
		return
	}

	if err := n.deliver(ctx, item.Submission); err == nil {
		return
	}

	item.Attempts++
	if item.Attempts >= n.cfg.Retry.MaxAttempts {
		metrics.NotificationsSent.WithLabelValues("dropped").Inc()
		n.logger.Error("notification dropped after max attempts", map[string]interface{}{
			"serial":   item.Submission.SerialNumber,
			"attempts": item.Attempts,
		})
		return
	}
	n.enqueue(ctx, &item)
}
