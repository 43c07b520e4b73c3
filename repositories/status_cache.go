package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"herway/models"
)

const (
	statusKeyPrefix = "herway:status:"
	routeKeyPrefix  = "herway:route:"
	onlineKey       = "herway:online"
)

// StatusCache keeps each user's live safety status in redis so guardians can
// read it without touching the in-memory dashboards. It also caches planned
// routes and tracks which users have an open socket.
type StatusCache struct {
	client    *redis.Client
	statusTTL time.Duration
	routeTTL  time.Duration
}

func NewStatusCache(client *redis.Client, statusTTL, routeTTL time.Duration) *StatusCache {
	return &StatusCache{
		client:    client,
		statusTTL: statusTTL,
		routeTTL:  routeTTL,
	}
}

func statusKey(userID string) string { return statusKeyPrefix + userID }

func (sc *StatusCache) PutStatus(ctx context.Context, status *models.SafetyStatus) error {
	if status.UpdatedAt == 0 {
		status.UpdatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return sc.client.Set(ctx, statusKey(status.UserID), data, sc.statusTTL).Err()
}

// GetStatus returns nil without error when nothing is cached for the user.
func (sc *StatusCache) GetStatus(ctx context.Context, userID string) (*models.SafetyStatus, error) {
	data, err := sc.client.Get(ctx, statusKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var status models.SafetyStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status for %s: %w", userID, err)
	}
	return &status, nil
}

// GetStatuses fetches several users in one round trip. Missing users are absent from the map.
func (sc *StatusCache) GetStatuses(ctx context.Context, userIDs []string) (map[string]*models.SafetyStatus, error) {
	result := make(map[string]*models.SafetyStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = statusKey(id)
	}

	values, err := sc.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var status models.SafetyStatus
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			logrus.Warnf("Skipping corrupt status for %s: %v", userIDs[i], err)
			continue
		}
		result[userIDs[i]] = &status
	}
	return result, nil
}

func (sc *StatusCache) DeleteStatus(ctx context.Context, userID string) error {
	return sc.client.Del(ctx, statusKey(userID)).Err()
}

func (sc *StatusCache) SetOnline(ctx context.Context, userID string, online bool) error {
	if online {
		return sc.client.SAdd(ctx, onlineKey, userID).Err()
	}
	return sc.client.SRem(ctx, onlineKey, userID).Err()
}

func (sc *StatusCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	return sc.client.SIsMember(ctx, onlineKey, userID).Result()
}

// GetRoute loads a cached route response. A miss returns nil, nil.
func (sc *StatusCache) GetRoute(ctx context.Context, key string) (*models.PlanRouteResponse, error) {
	data, err := sc.client.Get(ctx, routeKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var route models.PlanRouteResponse
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, err
	}
	return &route, nil
}

func (sc *StatusCache) PutRoute(ctx context.Context, key string, route *models.PlanRouteResponse) error {
	data, err := json.Marshal(route)
	if err != nil {
		return err
	}
	return sc.client.Set(ctx, routeKeyPrefix+key, data, sc.routeTTL).Err()
}
