// Package worker delivers login codes taken off the queue and purges
// expired codes on a schedule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"expenzoo/internal/amqp"
)

// Mailer delivers a login code to an address.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error
}

// OTPPurger deletes codes that expired before the given instant.
type OTPPurger interface {
	PurgeExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
}

type OTPWorker struct {
	mailer Mailer
	purger OTPPurger
	now    func() time.Time
}

func NewOTPWorker(mailer Mailer, purger OTPPurger) *OTPWorker {
	return &OTPWorker{mailer: mailer, purger: purger, now: time.Now}
}

// HandleDelivery sends the code in msg. Codes that already expired are
// dropped without an error so they are not requeued.
func (w *OTPWorker) HandleDelivery(ctx context.Context, msg *amqp.OTPDeliveryMessage) error {
	if !msg.ExpiresAt.IsZero() && !w.now().Before(msg.ExpiresAt) {
		slog.WarnContext(ctx, "Dropping expired OTP delivery", "email", msg.Email, "expires_at", msg.ExpiresAt)
		return nil
	}
	if err := w.mailer.SendOTP(ctx, msg.Email, msg.Code, msg.ExpiresAt); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// Purge removes expired codes and returns how many were deleted.
func (w *OTPWorker) Purge(ctx context.Context) (int64, error) {
	n, err := w.purger.PurgeExpiredOTPs(ctx, w.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired otps: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged expired OTPs", "count", n)
	}
	return n, nil
}

// RunPurgeSchedule runs Purge on the cron spec until ctx is done.
func (w *OTPWorker) RunPurgeSchedule(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.Purge(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled purge failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parse purge schedule %q: %w", spec, err)
	}

	c.Start()
	slog.InfoContext(ctx, "OTP purge scheduled", "schedule", spec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
