package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/assettrack/internal/client/repositories/kv"
	"github.com/dmitrijs2005/assettrack/internal/cryptox"
	"github.com/dmitrijs2005/assettrack/internal/dbx"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/google/uuid"
)

const (
	ScopeLocal         = "local"
	sessionScopePrefix = "session:"

	KeyToken   = "token"
	KeyUser    = "user"
	keyDigest  = "digest"
	keyDataset = "latest_file"
)

var (
	// ErrCorrupt means the persisted credential exists but cannot be trusted.
	ErrCorrupt = errors.New("stored credential is corrupt")
	// ErrInvalidCredential rejects a Save that would persist an unusable record.
	ErrInvalidCredential = errors.New("invalid credential")
)

// NewContextID returns a fresh browsing-context ID.
func NewContextID() string {
	return uuid.NewString()
}

// Store is one browsing context's view of the shared credential store. Every
// context gets its own Store (same database, same Bus, distinct origin).
type Store struct {
	db     *sql.DB
	repo   *kv.SQLiteRepository
	bus    Bus
	origin string
	log    logging.Logger
}

func NewStore(db *sql.DB, bus Bus, origin string, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop{}
	}
	if bus == nil {
		bus = NewLocalBus()
	}
	return &Store{
		db:     db,
		repo:   kv.NewSQLiteRepository(db),
		bus:    bus,
		origin: origin,
		log:    log.With("context", origin),
	}
}

// Origin is the browsing-context ID this store writes as.
func (s *Store) Origin() string { return s.origin }

func (s *Store) sessionScope() string { return sessionScopePrefix + s.origin }

// Load reads the persisted credential. It returns (nil, nil) when nothing
// is stored and ErrCorrupt for a half-written or tampered record.
func (s *Store) Load(ctx context.Context) (*Credential, error) {
	m, err := s.repo.List(ctx, ScopeLocal)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	token, hasToken := m[KeyToken]
	rawUser, hasUser := m[KeyUser]
	if !hasToken && !hasUser {
		return nil, nil
	}
	if !hasToken || !hasUser || len(token) == 0 {
		return nil, fmt.Errorf("%w: token and user must both be present", ErrCorrupt)
	}
	if isJSONNull(rawUser) {
		return nil, fmt.Errorf("%w: null user", ErrCorrupt)
	}

	var user UserProfile
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !cryptox.Verify(m[keyDigest], token, rawUser) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	return &Credential{Token: string(token), User: user}, nil
}

// Token returns the current token, re-read on every call so a logout in
// another context is honoured immediately. An absent token is "".
func (s *Store) Token(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, ScopeLocal, KeyToken)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Save persists token and user atomically. If the write fails the store is
// cleared so that no half-written credential remains, and the write error is
// returned.
func (s *Store) Save(ctx context.Context, token string, user UserProfile) error {
	if token == "" {
		return ErrInvalidCredential
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo.WithDB(tx)
		if err := repo.Set(ctx, ScopeLocal, KeyToken, []byte(token)); err != nil {
			return err
		}
		if err := repo.Set(ctx, ScopeLocal, KeyUser, rawUser); err != nil {
			return err
		}
		return repo.Set(ctx, ScopeLocal, keyDigest, cryptox.Digest([]byte(token), rawUser))
	})
	if err != nil {
		if cerr := s.clear(ctx); cerr != nil {
			s.log.Error(ctx, "rollback to logged-out failed", "error", cerr)
		}
		s.publish(ctx, KeyToken, KeyUser)
		return fmt.Errorf("save credential: %w", err)
	}

	s.publish(ctx, KeyToken, KeyUser)
	return nil
}

// Clear removes the credential and every context's dataset pointer.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.publish(ctx, KeyToken, KeyUser)
	return nil
}

func (s *Store) clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo.WithDB(tx)
		if err := repo.Delete(ctx, ScopeLocal, KeyToken, KeyUser, keyDigest); err != nil {
			return err
		}
		return repo.ClearPrefix(ctx, sessionScopePrefix)
	})
}

func (s *Store) publish(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.bus.Publish(ctx, Event{Key: k, Origin: s.origin}); err != nil {
			s.log.Warn(ctx, "storage event not delivered", "key", k, "error", err)
		}
	}
}

// Subscribe registers fn for credential changes made by other contexts.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.bus.Subscribe(s.origin, fn)
}

// SetDataset records the dataset this context searches against.
func (s *Store) SetDataset(ctx context.Context, d Dataset) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, s.sessionScope(), keyDataset, raw)
}

// Dataset returns this context's dataset pointer, or nil when none is set.
// An unreadable pointer is dropped and reported as absent.
func (s *Store) Dataset(ctx context.Context) (*Dataset, error) {
	raw, err := s.repo.Get(ctx, s.sessionScope(), keyDataset)
	if err != nil || raw == nil {
		return nil, err
	}
	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil || d.ID == 0 {
		s.log.Warn(ctx, "dropping unreadable dataset pointer", "error", err)
		_ = s.ClearDataset(ctx)
		return nil, nil
	}
	return &d, nil
}

func (s *Store) ClearDataset(ctx context.Context) error {
	return s.repo.Delete(ctx, s.sessionScope(), keyDataset)
}
