// Package session persists the singleton Session record in the local
// key-value namespace. A Save writes every key in one atomic call, so a
// reader never observes a half-applied transition.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
)

// Keys of the session record.
const (
	KeyIsBlocking    = "isBlocking"
	KeyBlockEnd      = "blockEnd"
	KeyActiveRuleIDs = "activeRuleIds"
	KeySessionID     = "sessionId"
)

var allKeys = []string{KeyIsBlocking, KeyBlockEnd, KeyActiveRuleIDs, KeySessionID}

// Repository loads and saves the session record.
type Repository struct {
	ns kv.Namespace
}

// NewRepository returns a Repository over the given namespace.
func NewRepository(ns kv.Namespace) *Repository {
	return &Repository{ns: ns}
}

// Load returns the persisted session, or an idle session when nothing has
// been written yet.
func (r *Repository) Load(ctx context.Context) (domain.Session, error) {
	values, err := r.ns.Get(ctx, allKeys...)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: load session: %v", domain.ErrStoreUnavailable, err)
	}

	var (
		blocking bool
		endMs    int64
		ids      []uint32
		id       string
	)
	if err := decode(values, KeyIsBlocking, &blocking); err != nil {
		return domain.Session{}, err
	}
	if err := decode(values, KeyBlockEnd, &endMs); err != nil {
		return domain.Session{}, err
	}
	if err := decode(values, KeyActiveRuleIDs, &ids); err != nil {
		return domain.Session{}, err
	}
	if err := decode(values, KeySessionID, &id); err != nil {
		return domain.Session{}, err
	}

	if !blocking {
		return domain.IdleSession(), nil
	}
	return domain.Session{
		ID:      id,
		Status:  domain.SessionActive,
		EndsAt:  time.UnixMilli(endMs),
		RuleIDs: ids,
	}, nil
}

// Save persists s as one atomic write. Idle sessions are normalized to
// {isBlocking: false, blockEnd: 0, activeRuleIds: []}.
func (r *Repository) Save(ctx context.Context, s domain.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	var (
		blocking = s.IsActive()
		endMs    int64
		ids      = []uint32{}
		id       string
	)
	if blocking {
		endMs = s.EndsAt.UnixMilli()
		ids = append(ids, s.RuleIDs...)
		id = s.ID
	}

	values := make(map[string][]byte, len(allKeys))
	for key, v := range map[string]any{
		KeyIsBlocking:    blocking,
		KeyBlockEnd:      endMs,
		KeyActiveRuleIDs: ids,
		KeySessionID:     id,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("save session: encode %s: %w", key, err)
		}
		values[key] = data
	}

	if err := r.ns.Set(ctx, values); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// decode unmarshals values[key] into dst, leaving dst untouched (the
// default) when the key is absent.
func decode(values map[string][]byte, key string, dst any) error {
	raw, ok := values[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	return nil
}
