package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"mdversion/internal/domain"
	"mdversion/internal/events"
	"mdversion/internal/repo"
)

const apiKeyPrefix = "mdv_"

// ErrAPIKeyNotFound is returned when deleting an unknown key.
var ErrAPIKeyNotFound = errors.New("api key not found")

// CreateAPIKey issues a key for actorID. The plaintext secret is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name, createdBy string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor id is required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	secret := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.now().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Events.Append(ctx, tx, events.Record{
		Type:       events.APIKeyCreated,
		EntityKind: "apikey",
		EntityID:   key.ID,
		ActorID:    createdBy,
		Payload:    events.EventPayload{"actor_id": actorID, "name": key.Name},
	}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, strings.TrimSpace(actorID))
}

func (e Engine) DeleteAPIKey(ctx context.Context, id, deletedBy string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAPIKeyNotFound
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, events.Record{
		Type:       events.APIKeyDeleted,
		EntityKind: "apikey",
		EntityID:   id,
		ActorID:    deletedBy,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// AuthenticateAPIKey resolves a presented secret to its key record.
func (e Engine) AuthenticateAPIKey(ctx context.Context, secret string) (domain.APIKey, error) {
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(secret))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.APIKey{}, ErrAPIKeyNotFound
	}
	return key, err
}
