// Package notify alerts human reviewers when an application lands in the
// conditional band.
package notify

import (
	"context"
	"fmt"
	"strings"

	"loan-assistant/internal/common/aws"
	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/models"
)

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	Publish(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

// Mailer is satisfied by aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

type Config struct {
	Enabled   bool
	TopicARN  string
	FromEmail string
	ToEmail   string
}

func LoadConfig(cfg config.NotificationConfig) *Config {
	c := &Config{
		Enabled:  cfg.Enabled,
		TopicARN: cfg.SNS.TopicARN,
	}
	if cfg.SES.Enabled {
		c.FromEmail = cfg.SES.FromEmail
		c.ToEmail = cfg.SES.ToEmail
	}
	return c
}

// Reviewer queues conditional decisions for manual review. A nil or
// disabled Reviewer does nothing.
type Reviewer struct {
	config    *Config
	publisher Publisher
	mailer    Mailer
	logger    logger.Logger
}

// NewReviewer wires the notifier. mailer may be nil.
func NewReviewer(cfg *Config, publisher Publisher, mailer Mailer, log logger.Logger) *Reviewer {
	return &Reviewer{
		config:    cfg,
		publisher: publisher,
		mailer:    mailer,
		logger:    logger.Component(log, "notify"),
	}
}

// FromConfig builds SNS and SES clients from the default AWS credential chain.
// It returns a disabled Reviewer when notifications are off.
func FromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Reviewer, error) {
	c := LoadConfig(cfg)
	if !c.Enabled {
		return NewReviewer(c, nil, nil, log), nil
	}

	awsCfg, err := aws.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var mailer Mailer
	if c.ToEmail != "" {
		mailer = aws.NewSESClient(awsCfg)
	}
	return NewReviewer(c, aws.NewSNSClient(awsCfg), mailer, log), nil
}

func (r *Reviewer) Enabled() bool {
	return r != nil && r.config != nil && r.config.Enabled && r.publisher != nil
}

// NotifyConditional publishes the decision to the review topic and, when
// configured, emails the reviewer inbox. The topic is the primary channel:
// an email failure is logged and does not fail the call.
func (r *Reviewer) NotifyConditional(ctx context.Context, sessionID string, d models.Decision) error {
	if !r.Enabled() {
		return nil
	}

	subject := "Loan application needs review"
	body := reviewBody(sessionID, d)
	attrs := map[string]string{
		"sessionId": sessionID,
		"status":    string(d.Status),
	}

	msgID, err := r.publisher.Publish(ctx, r.config.TopicARN, subject, body, attrs)
	if err != nil {
		metrics.ReviewNotifications.WithLabelValues("sns", "failed").Inc()
		r.logger.Error("review publish failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return errors.NewNotificationSendFailedError("sns", err)
	}
	metrics.ReviewNotifications.WithLabelValues("sns", "sent").Inc()
	r.logger.Info("review queued", map[string]interface{}{
		"sessionId": sessionID,
		"messageId": msgID,
	})

	if r.mailer != nil && r.config.ToEmail != "" {
		if _, err := r.mailer.SendText(ctx, r.config.FromEmail, r.config.ToEmail, subject, body); err != nil {
			metrics.ReviewNotifications.WithLabelValues("ses", "failed").Inc()
			r.logger.Warn("review email failed", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			return nil
		}
		metrics.ReviewNotifications.WithLabelValues("ses", "sent").Inc()
	}
	return nil
}

// reviewBody carries the decision only. Applicant values stay out of the
// notification.
func reviewBody(sessionID string, d models.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s was routed to manual review.\n\n", sessionID)
	b.WriteString(d.Summary())
	b.WriteString("\n")
	return b.String()
}
