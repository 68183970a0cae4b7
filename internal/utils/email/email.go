package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/notify"
)

// Sender handles sending plan notifications via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	to     []string
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender. Recipients come from NOTIFY_TO.
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	var to []string
	for _, addr := range strings.Split(cfg.NotifyTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &Sender{
		cfg:    cfg,
		logger: logger,
		to:     to,
		send:   (*email.Email).Send,
	}
}

// Enabled reports whether SMTP delivery is configured.
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != "" && len(s.to) > 0
}

// Notify sends one plan event as a plain-text email.
func (s *Sender) Notify(_ context.Context, ev notify.Event) error {
	if !s.Enabled() {
		return nil
	}
	e := s.compose(ev)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send %s notification for plan %s: %v", ev.Type, ev.PlanID, err)
		return fmt.Errorf("failed to send %s notification: %w", ev.Type, err)
	}

	s.logger.Infof("Email sent to %s: %s", strings.Join(e.To, ","), e.Subject)
	return nil
}

func (s *Sender) compose(ev notify.Event) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = s.to

	body := fmt.Sprintf("Lot %s, building %s\n\n", ev.LotID, ev.BuildingID)
	switch ev.Type {
	case notify.PlanRequested:
		e.Subject = "Payment Plan Requested"
		body += fmt.Sprintf(
			"A payment plan (%s) was requested on %s.\n"+
				"A decision is due within 28 days of the request.\n",
			ev.PlanID, ev.OccurredOn,
		)
	case notify.PlanApproved:
		e.Subject = "Payment Plan Approved"
		body += fmt.Sprintf("Payment plan %s was approved on %s and is now active.\n", ev.PlanID, ev.OccurredOn)
	case notify.PlanRejected:
		e.Subject = "Payment Plan Rejected"
		body += fmt.Sprintf("Payment plan %s was rejected on %s.\nReason: %s\n", ev.PlanID, ev.OccurredOn, ev.Reason)
	case notify.InstallmentOverdue:
		e.Subject = "Installment Overdue"
		body += fmt.Sprintf(
			"Installment %d of payment plan %s is overdue as of %s.\n"+
				"Please make the payment as soon as possible to keep the plan in good standing.\n",
			ev.InstallmentNumber, ev.PlanID, ev.OccurredOn,
		)
	case notify.PlanDefaulted:
		e.Subject = "Payment Plan Defaulted"
		body += fmt.Sprintf(
			"Payment plan %s defaulted on %s after missed installments.\n"+
				"Recovery action may now proceed.\n",
			ev.PlanID, ev.OccurredOn,
		)
	default:
		e.Subject = fmt.Sprintf("Payment Plan Notification: %s", ev.Type)
		body += fmt.Sprintf("Payment plan %s: %s\n", ev.PlanID, ev.Type)
	}
	body += "\nBest regards,\nLevy Administration"
	e.Text = []byte(body)
	return e
}
