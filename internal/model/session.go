package model

import "time"

type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
	StateWarningShown
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateWarningShown:
		return "warning_shown"
	default:
		return "invalid"
	}
}

// TokenRecord is the persisted credential set. Durations and timestamps
// are stored with millisecond precision.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	Duration     time.Duration
	ExpiresAt    time.Time
	CurrentRole  string
}

func (r TokenRecord) Empty() bool {
	return r.AccessToken == ""
}

type Session struct {
	User            *UserProfile  `json:"user"`
	IsAuthenticated bool          `json:"is_authenticated"`
	Loading         bool          `json:"loading"`
	CurrentRole     string        `json:"current_role,omitempty"`
	TokenDuration   time.Duration `json:"token_duration"`
	WarningActive   bool          `json:"warning_active"`
	State           State         `json:"state"`
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	// Duration is zero when the backend did not report one.
	Duration time.Duration
	User     UserProfile
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	Duration     time.Duration
}
