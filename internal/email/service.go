package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/pushmint/notify-api/internal/config"
	"github.com/pushmint/notify-api/internal/model"
)

// Service sends operational alert mail.
type Service interface {
	SendDispatchFailureAlert(ctx context.Context, req *model.NotificationRequest, reason string) error
}

type service struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewService returns nil when SMTP is not configured; callers treat a nil
// mailer as alerting disabled.
func NewService(cfg config.SMTPConfig) Service {
	if cfg.Host == "" || cfg.AlertsTo == "" {
		return nil
	}
	return &service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		to:     cfg.AlertsTo,
	}
}

func (s *service) SendDispatchFailureAlert(_ context.Context, req *model.NotificationRequest, reason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", fmt.Sprintf("notification dispatch failed: %s", req.ID))
	m.SetBody("text/plain", fmt.Sprintf(
		"Notification request %s (%q) failed to dispatch.\n\nTarget: %s\nReason: %s\n",
		req.ID, req.Title, req.TargetType, reason,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert mail: %w", err)
	}
	return nil
}
