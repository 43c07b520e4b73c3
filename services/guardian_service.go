package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"herway/models"
	"herway/repositories"
	"herway/safety"
	"herway/utils"
)

// OnMyWayMessage is the guardian quick reply.
const OnMyWayMessage = "I'm on my way!"

type GuardianService struct {
	guardians GuardianStore
	safety    *SafetyService
	status    StatusStore
	validator *utils.ValidationService
}

func NewGuardianService(guardians GuardianStore, safetyService *SafetyService, status StatusStore) *GuardianService {
	return &GuardianService{
		guardians: guardians,
		safety:    safetyService,
		status:    status,
		validator: utils.NewValidationService(),
	}
}

// =================== GUARDIAN CRUD ===================

func (gs *GuardianService) ListGuardians(ctx context.Context, userID string) ([]models.Guardian, error) {
	guardians, err := gs.guardians.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.NewDatabaseError("list guardians", err)
	}
	return guardians, nil
}

func (gs *GuardianService) AddGuardian(ctx context.Context, userID string, req models.CreateGuardianRequest) (*models.Guardian, error) {
	if err := gs.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Phone == "" && req.Email == "" && req.PushToken == "" && req.GuardianUserID == "" {
		return nil, utils.NewBadRequestError("A guardian needs a phone number, email, push token or account")
	}
	if req.GuardianUserID == userID {
		return nil, utils.NewBadRequestError("You cannot be your own guardian")
	}

	channels := models.GuardianChannels{
		SMS:   req.Phone != "",
		Push:  req.PushToken != "",
		Email: req.Email != "",
	}
	if req.Channels != nil {
		channels = *req.Channels
	}

	guardian := &models.Guardian{
		UserID:         userID,
		GuardianUserID: req.GuardianUserID,
		Name:           strings.TrimSpace(req.Name),
		Relation:       req.Relation,
		Phone:          req.Phone,
		Email:          strings.ToLower(req.Email),
		PushToken:      req.PushToken,
		Channels:       channels,
	}
	if err := gs.guardians.Create(ctx, guardian); err != nil {
		return nil, utils.NewDatabaseError("create guardian", err)
	}

	logrus.WithFields(logrus.Fields{"user": userID, "guardian": guardian.ID.Hex()}).Info("Guardian added")
	return guardian, nil
}

func (gs *GuardianService) RemoveGuardian(ctx context.Context, userID, guardianID string) error {
	err := gs.guardians.Delete(ctx, userID, guardianID)
	switch {
	case errors.Is(err, repositories.ErrInvalidID):
		return utils.NewBadRequestError("Invalid guardian ID")
	case errors.Is(err, repositories.ErrGuardianNotFound):
		return utils.NewNotFoundError("Guardian")
	case err != nil:
		return utils.NewDatabaseError("delete guardian", err)
	}
	return nil
}

// =================== GUARDIAN DASHBOARD ===================

// ProtectedUsers lists the users the caller guards together with their live status.
func (gs *GuardianService) ProtectedUsers(ctx context.Context, guardianUserID string) ([]models.ProtectedUserStatus, error) {
	entries, err := gs.guardians.ListProtectedBy(ctx, guardianUserID)
	if err != nil {
		return nil, utils.NewDatabaseError("list protected users", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}

	cached := map[string]*models.SafetyStatus{}
	if gs.status != nil {
		if cached, err = gs.status.GetStatuses(ctx, ids); err != nil {
			logrus.Warnf("Failed to read cached statuses: %v", err)
			cached = map[string]*models.SafetyStatus{}
		}
	}

	result := make([]models.ProtectedUserStatus, 0, len(entries))
	for _, e := range entries {
		row := models.ProtectedUserStatus{UserID: e.UserID, Relation: e.Relation, Status: cached[e.UserID]}
		if live, err := gs.safety.LiveStatus(ctx, e.UserID); err == nil && live != nil {
			row.Status = live
		}
		if row.Status != nil {
			row.Name = row.Status.UserName
		}
		if gs.status != nil {
			row.Online, _ = gs.status.IsOnline(ctx, e.UserID)
		}
		result = append(result, row)
	}
	return result, nil
}

// CanWatch reports whether watcherID may follow userID's live events.
func (gs *GuardianService) CanWatch(ctx context.Context, watcherID, userID string) (bool, error) {
	if watcherID == userID {
		return true, nil
	}
	return gs.guardians.IsGuardianOf(ctx, watcherID, userID)
}

// PostGuardianMessage lets a guardian write into the protected user's SOS chat.
func (gs *GuardianService) PostGuardianMessage(ctx context.Context, guardian User, req models.GuardianMessageRequest) (safety.ChatMessage, error) {
	if req.QuickAction == "on_my_way" {
		req.Text = OnMyWayMessage
	}
	if err := gs.validator.Validate(req); err != nil {
		return safety.ChatMessage{}, err
	}

	ok, err := gs.CanWatch(ctx, guardian.ID, req.UserID)
	if err != nil {
		return safety.ChatMessage{}, utils.NewDatabaseError("check guardian", err)
	}
	if !ok {
		return safety.ChatMessage{}, utils.NewForbiddenError("You are not a guardian of this user")
	}

	author := req.Author
	if author == "" {
		author = guardian.Name
	}
	if author == "" {
		author = "Guardian"
	}
	return gs.safety.AppendGuardianMessage(ctx, req.UserID, author+" (Guardian)", req.Text)
}
