package ppe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDraftNotFound is returned when no draft is stored for a session.
var ErrDraftNotFound = errors.New("ppe: draft not found")

// DraftRepository keeps PPE drafts in Redis between requests.
type DraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftRepository constructs a DraftRepository.
func NewDraftRepository(client *redis.Client, ttl time.Duration) *DraftRepository {
	return &DraftRepository{client: client, ttl: ttl}
}

func draftKey(sessionID string, year int) string {
	return fmt.Sprintf("ppe:draft:%s:%d", sessionID, year)
}

// Get loads the session's draft.
func (r *DraftRepository) Get(ctx context.Context, sessionID string, year int) (*Draft, error) {
	payload, err := r.client.Get(ctx, draftKey(sessionID, year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("ppe: decode draft: %w", err)
	}
	return &d, nil
}

// Put stores the draft.
func (r *DraftRepository) Put(ctx context.Context, sessionID string, d *Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, draftKey(sessionID, d.Year), payload, r.ttl).Err()
}

// Delete drops the draft.
func (r *DraftRepository) Delete(ctx context.Context, sessionID string, year int) error {
	return r.client.Del(ctx, draftKey(sessionID, year)).Err()
}

// DeleteSession drops every PPE draft of a session.
func (r *DraftRepository) DeleteSession(ctx context.Context, sessionID string) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("ppe:draft:%s:*", sessionID), 100).Iterator()
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
	return r.client.Del(ctx, keys...).Err()
}
