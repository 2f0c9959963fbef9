package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joho/godotenv"

	"github.com/saharansameer/wavytv-backend/config"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
	"github.com/saharansameer/wavytv-backend/pkg/mailer"
)

// Consumes EmailJob messages from the notification queue and delivers them
// through Mailgun. Malformed messages and failed deliveries are rejected
// without requeue; notifications are best-effort.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq dial failed")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq channel failed")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		logger.WithError(err).Fatal("queue declare failed")
	}

	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.WithError(err).Fatal("consume failed")
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	logger.Infof("email worker consuming from %q", cfg.RabbitMQEmailQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				return
			}
			var job mailer.EmailJob
			if err := json.Unmarshal(d.Body, &job); err != nil || job.To == "" {
				logger.WithError(err).Warn("dropping malformed email job")
				_ = d.Reject(false)
				continue
			}
			subject := job.Subject
			if subject == "" {
				subject = mailer.SubjectFor(job.Kind)
			}
			if !cfg.MailSendEnabled {
				logger.WithField("to", job.To).Info("mail sending disabled; dropping job")
				_ = d.Ack(false)
				continue
			}
			if err := mg.Send(ctx, job.To, subject, job.Text, job.HTML); err != nil {
				logger.WithError(err).WithField("to", job.To).Error("mailgun send failed")
				_ = d.Reject(false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
