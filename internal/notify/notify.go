// Package notify sends operator-facing alerts. Today its only trigger is
// the Failover Monitor's worker-lost eviction (§9, encouraged FM step).
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Sender delivers a single alert. LogSender is used in ENV=local,
// ResendSender in staging/production — same split the teacher's email
// package draws for its magic-link flow.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs alerts instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("alert email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends alerts via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// WorkerLost renders and sends the alert emitted when the Failover Monitor
// evicts a worker past its heartbeat TTL.
func WorkerLost(ctx context.Context, sender Sender, to, domain, workerID string, requeuedJobs int) error {
	subject := fmt.Sprintf("[hydra] worker %s lost in domain %s", workerID, domain)
	body := fmt.Sprintf(
		"Worker %s in domain %s missed its heartbeat TTL and was marked offline.\n%d job(s) were requeued.",
		workerID, domain, requeuedJobs,
	)
	return sender.Send(ctx, to, subject, body)
}
