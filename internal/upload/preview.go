package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ebudget/ebudget/internal/api"
)

// ErrPreviewNotFound is returned for unknown or expired batches.
var ErrPreviewNotFound = errors.New("upload: preview not found or expired")

// Preview is a parsed spreadsheet waiting for confirmation.
type Preview struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Sheet     string          `json:"sheet"`
	Headers   []string        `json:"headers"`
	Rows      []api.UploadRow `json:"rows"`
	CreatedAt time.Time       `json:"created_at"`
}

// PreviewStore keeps previews in Redis, scoped to the session that
// uploaded them.
type PreviewStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreviewStore constructs a PreviewStore.
func NewPreviewStore(client *redis.Client, ttl time.Duration) *PreviewStore {
	return &PreviewStore{client: client, ttl: ttl}
}

func previewKey(sessionID, id string) string {
	return fmt.Sprintf("upload:preview:%s:%s", sessionID, id)
}

// Put stores p under a fresh batch id and returns it.
func (s *PreviewStore) Put(ctx context.Context, sessionID string, p Preview) (Preview, error) {
	p.ID = uuid.NewString()
	payload, err := json.Marshal(p)
	if err != nil {
		return Preview{}, err
	}
	if err := s.client.Set(ctx, previewKey(sessionID, p.ID), payload, s.ttl).Err(); err != nil {
		return Preview{}, err
	}
	return p, nil
}

// Get loads a preview.
func (s *PreviewStore) Get(ctx context.Context, sessionID, id string) (Preview, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Preview{}, ErrPreviewNotFound
	}
	payload, err := s.client.Get(ctx, previewKey(sessionID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Preview{}, ErrPreviewNotFound
	}
	if err != nil {
		return Preview{}, err
	}
	var p Preview
	if err := json.Unmarshal(payload, &p); err != nil {
		return Preview{}, fmt.Errorf("upload: decode preview: %w", err)
	}
	return p, nil
}

// Delete drops a preview.
func (s *PreviewStore) Delete(ctx context.Context, sessionID, id string) error {
	return s.client.Del(ctx, previewKey(sessionID, id)).Err()
}

// DeleteSession drops every preview of a session.
func (s *PreviewStore) DeleteSession(ctx context.Context, sessionID string) error {
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("upload:preview:%s:*", sessionID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
