package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"herway/metrics"
	"herway/models"
	"herway/safety"
	"herway/utils"
)

type GuardianStore interface {
	Create(ctx context.Context, guardian *models.Guardian) error
	ListByUser(ctx context.Context, userID string) ([]models.Guardian, error)
	ListProtectedBy(ctx context.Context, guardianUserID string) ([]models.Guardian, error)
	IsGuardianOf(ctx context.Context, guardianUserID, userID string) (bool, error)
	Delete(ctx context.Context, userID, guardianID string) error
}

// AlertQueue accepts alerts for asynchronous delivery.
type AlertQueue interface {
	Enqueue(alert *models.GuardianAlert) error
}

// GuardianNotifier turns guardian-facing safety events into one queued
// alert per guardian.
type GuardianNotifier struct {
	guardians GuardianStore
	queue     AlertQueue
}

func NewGuardianNotifier(guardians GuardianStore, queue AlertQueue) *GuardianNotifier {
	return &GuardianNotifier{guardians: guardians, queue: queue}
}

func (gn *GuardianNotifier) Alert(ctx context.Context, user User, event safety.Event) {
	if !event.GuardianFacing() {
		return
	}

	guardians, err := gn.guardians.ListByUser(ctx, user.ID)
	if err != nil {
		logrus.WithField("user", user.ID).Errorf("Failed to load guardians for alert: %v", err)
		return
	}
	if len(guardians) == 0 {
		logrus.WithField("user", user.ID).Debugf("No guardians to alert for %s", event.Type)
		return
	}

	data := map[string]string{
		"userId": user.ID,
		"source": string(event.Source),
	}
	if user.Name != "" {
		data["userName"] = user.Name
	}
	if id, ok := event.Data["sessionId"].(string); ok {
		data["sessionId"] = id
	}

	for _, g := range guardians {
		alert := &models.GuardianAlert{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			Guardian:   g,
			Title:      event.Title,
			Body:       event.Description,
			EventType:  string(event.Type),
			Data:       data,
			EnqueuedAt: time.Now(),
		}
		if err := gn.queue.Enqueue(alert); err != nil {
			metrics.GuardianQueueDropsTotal.Inc()
			logrus.WithFields(logrus.Fields{
				"user":     user.ID,
				"guardian": g.ID.Hex(),
			}).Errorf("Failed to queue guardian alert: %v", err)
		}
	}
}

// GuardianDelivery sends one alert over every channel the guardian opted into.
type GuardianDelivery struct {
	senders utils.NotificationSenders
}

func NewGuardianDelivery(senders utils.NotificationSenders) *GuardianDelivery {
	return &GuardianDelivery{senders: senders}
}

// Deliver fans out to SMS, push and email concurrently. It fails only when
// every attempted channel failed.
func (gd *GuardianDelivery) Deliver(ctx context.Context, alert *models.GuardianAlert) error {
	userName := alert.Data["userName"]
	if userName == "" {
		userName = "your contact"
	}
	critical := alert.EventType != string(safety.EventSOSEnded)
	g := alert.Guardian

	type attempt struct {
		channel string
		send    func(ctx context.Context) error
	}
	var attempts []attempt

	if g.Channels.SMS && g.Phone != "" && gd.senders.SMS != nil {
		attempts = append(attempts, attempt{"sms", func(ctx context.Context) error {
			_, err := gd.senders.SMS.SendSMS(ctx, utils.GuardianSMS(g.Phone, userName, alert.Title, alert.Body))
			return err
		}})
	}
	if g.Channels.Push && g.PushToken != "" && gd.senders.Push != nil {
		attempts = append(attempts, attempt{"push", func(ctx context.Context) error {
			push := utils.GuardianPush(userName, alert.EventType, alert.Title, alert.Body, critical)
			for k, v := range alert.Data {
				push.Data[k] = v
			}
			_, err := gd.senders.Push.SendPush(ctx, g.PushToken, push)
			return err
		}})
	}
	if g.Channels.Email && g.Email != "" && gd.senders.Email != nil {
		attempts = append(attempts, attempt{"email", func(ctx context.Context) error {
			_, err := gd.senders.Email.SendEmail(ctx, utils.EmailMessage{
				To:      g.Email,
				Subject: fmt.Sprintf("Her-Way: %s (%s)", alert.Title, userName),
				Body:    guardianEmailBody(userName, alert),
			})
			return err
		}})
	}

	if len(attempts) == 0 {
		logrus.WithField("guardian", g.ID.Hex()).Debug("Guardian has no reachable channel")
		return nil
	}

	errs := make([]error, len(attempts))
	group, gctx := errgroup.WithContext(ctx)
	for i, a := range attempts {
		i, a := i, a
		group.Go(func() error {
			err := a.send(gctx)
			metrics.IncGuardianAlert(a.channel, err == nil)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", a.channel, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(attempts) {
		return errors.Join(errs...)
	}
	if failed > 0 {
		logrus.WithField("alert", alert.ID).Warnf("Guardian alert partially delivered: %v", errors.Join(errs...))
	}
	return nil
}

func guardianEmailBody(userName string, alert *models.GuardianAlert) string {
	body := fmt.Sprintf("%s\n\n", alert.Title)
	if alert.Body != "" {
		body += alert.Body + "\n\n"
	}
	body += fmt.Sprintf("This alert concerns %s and was raised at %s.\n",
		userName, alert.EnqueuedAt.Format(time.RFC1123))
	if id := alert.Data["sessionId"]; id != "" {
		body += fmt.Sprintf("SOS session: %s\n", id)
	}
	return body
}
