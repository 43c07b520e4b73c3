package config

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"herway/utils"
)

// InitNotificationSenders sets up the guardian delivery channels. Channels
// without credentials are left nil and skipped at delivery time.
func InitNotificationSenders(ctx context.Context, cfg *Config) utils.NotificationSenders {
	var senders utils.NotificationSenders

	if cfg.FirebaseCredentials != "" {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredentials))
		if err != nil {
			logrus.Errorf("Failed to initialize Firebase: %v", err)
		} else if client, err := app.Messaging(ctx); err != nil {
			logrus.Errorf("Failed to get FCM client: %v", err)
		} else {
			senders.Push = utils.NewFCMSender(client)
		}
	}

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioPhoneNumber != "" {
		senders.SMS = utils.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	}

	if cfg.SMTPHost != "" {
		senders.Email = utils.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPFromName)
	}

	logrus.WithFields(logrus.Fields{
		"push":  senders.Push != nil,
		"sms":   senders.SMS != nil,
		"email": senders.Email != nil,
	}).Info("Guardian notification channels initialized")

	return senders
}
