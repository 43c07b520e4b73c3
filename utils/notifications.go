package utils

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrChannelNotConfigured = errors.New("notification channel is not configured")

type PushNotification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data"`
	Sound    string            `json:"sound,omitempty"`
	Critical bool              `json:"critical,omitempty"`
}

type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"isHtml"`
}

type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type PushSender interface {
	SendPush(ctx context.Context, deviceToken string, notification PushNotification) (*NotificationResult, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, sms SMSMessage) (*NotificationResult, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, email EmailMessage) (*NotificationResult, error)
}

// NotificationSenders bundles the channels used to reach guardians. A nil
// field means the channel is not configured.
type NotificationSenders struct {
	Push  PushSender
	SMS   SMSSender
	Email EmailSender
}

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) SendPush(ctx context.Context, deviceToken string, notification PushNotification) (*NotificationResult, error) {
	if s == nil || s.client == nil {
		return nil, ErrChannelNotConfigured
	}

	sound := notification.Sound
	if sound == "" {
		sound = "default"
	}
	priority := "normal"
	if notification.Critical {
		priority = "high"
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				Sound: sound,
				Icon:  "ic_notification",
				Color: "#E11D48",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Body,
					},
					Sound: sound,
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		return &NotificationResult{Success: false, Error: err.Error()}, err
	}
	return &NotificationResult{Success: true, MessageID: response}, nil
}

// TwilioSender delivers SMS through the Twilio REST API.
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

func (s *TwilioSender) SendSMS(_ context.Context, sms SMSMessage) (*NotificationResult, error) {
	if s == nil || s.client == nil || s.from == "" {
		return nil, ErrChannelNotConfigured
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(sms.To)
	params.SetFrom(s.from)
	params.SetBody(TruncateString(sms.Message, 1600))

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return &NotificationResult{Success: false, Error: err.Error()}, err
	}

	result := &NotificationResult{Success: true}
	if resp != nil && resp.Sid != nil {
		result.MessageID = *resp.Sid
	}
	return result, nil
}

// GuardianPush builds the push payload for an alert about userName.
func GuardianPush(userName, eventType, title, body string, critical bool) PushNotification {
	sound := "default"
	if critical {
		sound = "emergency"
	}
	return PushNotification{
		Title: fmt.Sprintf("%s: %s", userName, title),
		Body:  body,
		Data: map[string]string{
			"type":     "guardian_alert",
			"event":    eventType,
			"userName": userName,
		},
		Sound:    sound,
		Critical: critical,
	}
}

// GuardianSMS renders the same alert as a single SMS line.
func GuardianSMS(to, userName, title, body string) SMSMessage {
	text := fmt.Sprintf("Her-Way alert for %s: %s", userName, title)
	if body != "" {
		text += ". " + body
	}
	return SMSMessage{To: to, Message: text}
}
