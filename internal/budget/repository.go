package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDraftNotFound is returned when no draft is stored for a key.
var ErrDraftNotFound = errors.New("budget: draft not found")

// Draft is a category being edited in one browser session.
type Draft struct {
	Year      int                   `json:"year"`
	Items     []Item                `json:"items"`
	Companies []CompanyProfitCenter `json:"companies,omitempty"`
	Store     *Store                `json:"store"`
}

// Category returns the category the draft edits.
func (d *Draft) Category() Category {
	if d == nil || d.Store == nil {
		return 0
	}
	return d.Store.Category
}

// HasItem reports whether glCode belongs to the draft's category.
func (d *Draft) HasItem(glCode string) bool {
	for _, item := range d.Items {
		if item.GLCode == glCode {
			return true
		}
	}
	return false
}

// Item looks up an account by code.
func (d *Draft) Item(glCode string) (Item, bool) {
	for _, item := range d.Items {
		if item.GLCode == glCode {
			return item, true
		}
	}
	return Item{}, false
}

// DraftRepository keeps drafts in Redis so edits survive between requests.
type DraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftRepository constructs a DraftRepository.
func NewDraftRepository(client *redis.Client, ttl time.Duration) *DraftRepository {
	return &DraftRepository{client: client, ttl: ttl}
}

func draftKey(sessionID string, year int, category Category) string {
	return fmt.Sprintf("budget:draft:%s:%d:%s", sessionID, year, category.Slug())
}

// Get loads a draft.
func (r *DraftRepository) Get(ctx context.Context, sessionID string, year int, category Category) (*Draft, error) {
	payload, err := r.client.Get(ctx, draftKey(sessionID, year, category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("budget: decode draft: %w", err)
	}
	if d.Store == nil {
		return nil, ErrDraftNotFound
	}
	return &d, nil
}

// Put stores a draft.
func (r *DraftRepository) Put(ctx context.Context, sessionID string, d *Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, draftKey(sessionID, d.Year, d.Category()), payload, r.ttl).Err()
}

// Delete drops a draft.
func (r *DraftRepository) Delete(ctx context.Context, sessionID string, year int, category Category) error {
	return r.client.Del(ctx, draftKey(sessionID, year, category)).Err()
}

// DeleteSession drops every draft of a session.
func (r *DraftRepository) DeleteSession(ctx context.Context, sessionID string) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("budget:draft:%s:*", sessionID), 100).Iterator()
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
