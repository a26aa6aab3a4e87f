// Package tokenstore persists the session credentials behind a narrow
// typed interface. It is the only code that touches the key-value backend.
package tokenstore

import (
	"log/slog"
	"strconv"
	"time"

	"go-academic-portal/internal/model"
)

// Persisted keys, shared with earlier client versions.
const (
	KeyAccessToken  = "token"
	KeyRefreshToken = "refreshToken"
	KeyDuration     = "tokenDuration"
	KeyExpiry       = "tokenExpiry"
	KeyCurrentRole  = "currentRole"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyDuration, KeyExpiry, KeyCurrentRole}

// KV is a durable string key-value backend. Apply must make all puts and
// deletes visible together.
type KV interface {
	Load(keys []string) (map[string]string, error)
	Apply(puts map[string]string, deletes []string) error
}

type Store struct {
	kv     KV
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save overwrites every persisted field in one backend write. Empty fields
// remove their key.
func (s *Store) Save(record model.TokenRecord) error {
	puts := map[string]string{}
	var deletes []string

	set := func(key string, value string) {
		if value == "" {
			deletes = append(deletes, key)
			return
		}
		puts[key] = value
	}

	set(KeyAccessToken, record.AccessToken)
	set(KeyRefreshToken, record.RefreshToken)
	set(KeyCurrentRole, record.CurrentRole)

	if record.Duration > 0 {
		puts[KeyDuration] = strconv.FormatInt(record.Duration.Milliseconds(), 10)
	} else {
		deletes = append(deletes, KeyDuration)
	}

	if !record.ExpiresAt.IsZero() {
		puts[KeyExpiry] = strconv.FormatInt(record.ExpiresAt.UnixMilli(), 10)
	} else {
		deletes = append(deletes, KeyExpiry)
	}

	return s.kv.Apply(puts, deletes)
}

// Load returns whatever subset of the record is present. Backend failures
// are logged and reported as an empty record.
func (s *Store) Load() model.TokenRecord {
	values, err := s.kv.Load(allKeys)
	if err != nil {
		s.logger.Warn("token store read failed", "error", err)
		return model.TokenRecord{}
	}

	record := model.TokenRecord{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
		CurrentRole:  values[KeyCurrentRole],
	}

	if ms, ok := parseMillis(values[KeyDuration]); ok {
		record.Duration = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := parseMillis(values[KeyExpiry]); ok {
		record.ExpiresAt = time.UnixMilli(ms)
	}

	return record
}

func (s *Store) Clear() error {
	return s.kv.Apply(nil, allKeys)
}

// Remaining is the time left before the stored expiry, never negative.
// The expiry is an absolute timestamp so suspended processes still see the
// right value on resume.
func (s *Store) Remaining() time.Duration {
	values, err := s.kv.Load([]string{KeyExpiry})
	if err != nil {
		s.logger.Warn("token store read failed", "error", err)
		return 0
	}

	ms, ok := parseMillis(values[KeyExpiry])
	if !ok {
		return 0
	}

	left := time.UnixMilli(ms).Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Store) RemainingMs() int64 {
	return s.Remaining().Milliseconds()
}

func (s *Store) SaveRole(name string) error {
	if name == "" {
		return s.kv.Apply(nil, []string{KeyCurrentRole})
	}
	return s.kv.Apply(map[string]string{KeyCurrentRole: name}, nil)
}

func (s *Store) LoadRole() string {
	values, err := s.kv.Load([]string{KeyCurrentRole})
	if err != nil {
		s.logger.Warn("token store read failed", "error", err)
		return ""
	}
	return values[KeyCurrentRole]
}

func parseMillis(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
