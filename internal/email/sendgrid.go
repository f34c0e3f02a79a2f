package email

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

var _ Service = (*sendgridService)(nil)

// NewSendgridService builds the production mail backend.
func NewSendgridService(cfg config.EmailConfig, clubName string) Service {
	return &sendgridService{
		key:        cfg.SendgridKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: "[" + clubName + "] ",
	}
}

func (svc *sendgridService) SendMessages(messages ...*Message) error {
	var firstErr error
	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		if err := svc.send(msg); err != nil {
			logger.Error("sendgrid send failed",
				logger.String("subject", msg.Subject), logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (svc *sendgridService) send(msg *Message) error {
	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)

	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.API(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
