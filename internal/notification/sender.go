package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Ssanntii/Stock-Final-UTN/internal/config"
	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Sender interface {
	SendPurchaseConfirmation(ctx context.Context, to, fullName string, receipt *domain.OrderReceipt) error
}

type smtpSender struct {
	from     string
	password string
	host     string
	port     string
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPSender(cfg config.SMTP, logger *zap.Logger) Sender {
	return &smtpSender{
		from:     cfg.From,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   logger,
		tracer:   otel.Tracer("notification/smtp"),
	}
}

func (s *smtpSender) SendPurchaseConfirmation(ctx context.Context, to, fullName string, receipt *domain.OrderReceipt) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendPurchaseConfirmation")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", to),
		attribute.String("order_number", receipt.OrderNumber),
	)

	subject := fmt.Sprintf("Subject: Purchase confirmation - %s\n", receipt.OrderNumber)
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	body := renderPurchaseBody(fullName, receipt)

	msg := []byte(subject + mime + body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	logging.Info(
		ctx,
		s.logger,
		"Sending purchase confirmation email",
		zap.String("to", to),
		zap.String("order_number", receipt.OrderNumber),
	)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		span.RecordError(err)
		logging.Error(
			ctx,
			s.logger,
			"Error sending purchase confirmation email",
			zap.String("to", to),
			zap.String("order_number", receipt.OrderNumber),
			zap.Error(err),
		)

		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}

func renderPurchaseBody(fullName string, receipt *domain.OrderReceipt) string {
	var rows strings.Builder
	for _, item := range receipt.Items {
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%d</td><td>$%s</td><td>$%s</td></tr>",
			item.Name, item.Quantity, item.UnitPrice.StringFixed(2), item.Subtotal.StringFixed(2),
		))
	}

	return fmt.Sprintf(`
		<h1>Thank you for your purchase, %s!</h1>
		<p>Order <strong>%s</strong> — %s</p>
		<table border="1" cellpadding="6">
			<tr><th>Product</th><th>Quantity</th><th>Unit price</th><th>Subtotal</th></tr>
			%s
		</table>
		<h2>Total: $%s</h2>
	`, fullName, receipt.OrderNumber, receipt.Date, rows.String(), receipt.Total.StringFixed(2))
}
