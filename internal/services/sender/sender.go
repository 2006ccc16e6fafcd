// Package sender формирует письма-уведомления и отправляет их через SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/smtp"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

type Transport interface {
	Connect() (smtp.Client, error)
	Sender() string
}

type Service struct {
	transport Transport
	siteURL   string
	log       *slog.Logger
}

// New создает Service. siteURL подставляется в ссылки писем.
func New(transport Transport, siteURL string, log *slog.Logger) *Service {
	return &Service{transport: transport, siteURL: strings.TrimRight(siteURL, "/"), log: log}
}

// Handlers сопоставляет ключи маршрутизации с обработчиками сообщений.
func (s *Service) Handlers() map[string]func([]byte) error {
	return map[string]func([]byte) error{
		rabbitmq.RoutingTrialEnding:           s.SendTrialEnding,
		rabbitmq.RoutingSubscriptionEnding:    s.SendSubscriptionEnding,
		rabbitmq.RoutingSubscriptionActivated: s.SendSubscriptionActivated,
	}
}

// SendTrialEnding уведомляет, что пробный период заканчивается сегодня.
func (s *Service) SendTrialEnding(body []byte) error {
	const op = "sender.SendTrialEnding"
	var n models.TrialNotice
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	text := fmt.Sprintf("Hello, %s!\n\n"+
		"Your free trial of Motivation Hub ends today at %s.\n"+
		"Choose a plan to keep receiving your daily motivation: %s/packages\n",
		n.Username, n.ExpiresAt.Format("15:04 MST"), s.siteURL)
	return s.sendEmail(op, n.Email, "Your free trial ends today", text)
}

// SendSubscriptionEnding уведомляет, что подписка заканчивается завтра.
func (s *Service) SendSubscriptionEnding(body []byte) error {
	const op = "sender.SendSubscriptionEnding"
	var n models.SubscriptionNotice
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	text := fmt.Sprintf("Hello, %s!\n\n"+
		"Your %s subscription ends on %s.\n"+
		"Renew it for %s to keep your goals and messages going: %s/packages\n",
		n.Username, n.PackageName, n.EndDate.Format("2006-01-02"), n.Price.StringFixed(2), s.siteURL)
	return s.sendEmail(op, n.Email, "Your subscription ends tomorrow", text)
}

// SendSubscriptionActivated подтверждает оплату и активацию подписки.
func (s *Service) SendSubscriptionActivated(body []byte) error {
	const op = "sender.SendSubscriptionActivated"
	var n models.SubscriptionNotice
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	text := fmt.Sprintf("Hello, %s!\n\n"+
		"Thank you for your payment of %s. Your %s subscription is active until %s.\n"+
		"Open your dashboard: %s/dashboard\n",
		n.Username, n.Price.StringFixed(2), n.PackageName, n.EndDate.Format("2006-01-02"), s.siteURL)
	return s.sendEmail(op, n.Email, "Your subscription is active", text)
}

func (s *Service) sendEmail(op, to, subject, bodyText string) error {
	log := s.log.With(slog.String("op", op), slog.String("to", to))
	if to == "" {
		return fmt.Errorf("%s: %w", op, models.NewValidationError("email", "recipient is empty"))
	}
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(from); err != nil {
		log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Rcpt(to); err != nil {
		log.Error("failed to set RCPT TO", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("failed to get data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		_ = wc.Close()
		log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		log.Error("failed to close data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		log.Error("failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email sent successfully", slog.String("subject", subject))
	return nil
}
