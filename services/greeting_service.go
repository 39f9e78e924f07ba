// services/greeting_service.go
package services

import (
	"context"
	"strings"
	"time"

	"roombooking-backend/models"
	"roombooking-backend/utils"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

const greetingTemplate = "Happy birthday, [ClientName]! Wishing you a great year from all of us."

// MessageSender delivers a text message and returns the provider message id.
type MessageSender interface {
	Send(to, body string) (string, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

func (t *TwilioSender) Send(to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// GreetingService texts clients on their birthday and keeps a log of every attempt.
type GreetingService struct {
	db      *gorm.DB
	logger  *logrus.Logger
	reports *ReportService
	sender  MessageSender
	now     utils.Clock
}

func NewGreetingService(db *gorm.DB, logger *logrus.Logger, reports *ReportService, sender MessageSender, clock utils.Clock) *GreetingService {
	return &GreetingService{db: db, logger: logger, reports: reports, sender: sender, now: clock}
}

// SendDailyGreetings greets today's birthday clients that have a phone and
// were not already greeted today. It returns how many messages went out.
func (s *GreetingService) SendDailyGreetings(ctx context.Context) (int, error) {
	s.logger.Info("Starting daily birthday greetings")

	clients, err := s.reports.BirthdaysToday(ctx)
	if err != nil {
		return 0, err
	}

	today := utils.BeginningOfDay(s.now())
	sent := 0
	for _, client := range clients {
		if strings.TrimSpace(client.Phone) == "" {
			continue
		}
		var already int64
		if err := s.db.WithContext(ctx).Model(&models.GreetingLog{}).
			Where("client_id = ? AND status = ? AND sent_at >= ?", client.ID, "sent", today).
			Count(&already).Error; err != nil {
			return sent, err
		}
		if already > 0 {
			continue
		}

		if s.greet(ctx, client) {
			sent++
		}
	}

	s.logger.WithField("sent", sent).Info("Daily birthday greetings completed")
	return sent, nil
}

func (s *GreetingService) greet(ctx context.Context, client models.Client) bool {
	message := strings.ReplaceAll(greetingTemplate, "[ClientName]", client.Name)
	fields := logrus.Fields{"client_id": client.ID, "phone": client.Phone}

	sid, err := s.sender.Send(client.Phone, message)
	entry := models.GreetingLog{
		ClientID: client.ID,
		Message:  message,
		Status:   "sent",
		SentAt:   s.now(),
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Failed to send birthday greeting")
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	} else {
		s.logger.WithFields(fields).WithField("sid", sid).Info("Birthday greeting sent")
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Failed to log birthday greeting")
	}
	return entry.Status == "sent"
}

// greetingWindow bounds a single run so a slow provider cannot stall the scheduler.
const greetingWindow = 10 * time.Minute
