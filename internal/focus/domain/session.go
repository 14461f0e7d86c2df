package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultSessionMinutes is used when a start request carries no usable duration.
const DefaultSessionMinutes = 25

// MaxSessionMinutes caps requested durations so end times stay representable.
const MaxSessionMinutes = 60 * 24 * 365

// alarmPrefix namespaces end-of-session alarms among other scheduled alarms.
const alarmPrefix = "end_block"

// SessionStatus is the state of the session state machine.
type SessionStatus uint8

const (
	SessionIdle SessionStatus = iota
	SessionActive
)

// String returns a stable string representation of the status.
func (s SessionStatus) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	default:
		return fmt.Sprintf("SessionStatus(%d)", s)
	}
}

// ParseSessionStatus converts a string into a SessionStatus.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle", "":
		return SessionIdle, nil
	case "active":
		return SessionActive, nil
	default:
		return 0, fmt.Errorf("unsupported SessionStatus: %q", s)
	}
}

// Session is the singleton record of whether blocking is active, until
// when, and which engine rules it owns. EndsAt and RuleIDs are meaningful
// only while Active.
type Session struct {
	ID      string
	Status  SessionStatus
	EndsAt  time.Time
	RuleIDs []uint32
}

// IdleSession returns the zero-value idle session.
func IdleSession() Session {
	return Session{Status: SessionIdle}
}

// IsActive reports whether the session is Active.
func (s Session) IsActive() bool { return s.Status == SessionActive }

// ExpiredAt reports whether an Active session has reached its end time.
func (s Session) ExpiredAt(now time.Time) bool {
	return s.IsActive() && !now.Before(s.EndsAt)
}

// AlarmName returns the name of the alarm that ends this session. Idle
// sessions have no alarm.
func (s Session) AlarmName() string {
	if s.ID == "" {
		return ""
	}
	return AlarmNameFor(s.ID)
}

// AlarmNameFor returns the alarm name for a session ID.
func AlarmNameFor(sessionID string) string {
	return alarmPrefix + ":" + sessionID
}

// IsSessionAlarm reports whether an alarm name belongs to the session namespace.
func IsSessionAlarm(name string) bool {
	return strings.HasPrefix(name, alarmPrefix+":")
}

// Owns reports whether id is one of the session's rule IDs.
func (s Session) Owns(id uint32) bool {
	for _, v := range s.RuleIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Validate checks that the session is internally consistent.
func (s Session) Validate() error {
	switch s.Status {
	case SessionIdle:
		if len(s.RuleIDs) != 0 {
			return fmt.Errorf("idle session must not own rules")
		}
	case SessionActive:
		if s.ID == "" {
			return fmt.Errorf("active session must have an id")
		}
		if s.EndsAt.IsZero() {
			return fmt.Errorf("active session must have an end time")
		}
	default:
		return fmt.Errorf("unsupported SessionStatus: %d", s.Status)
	}
	return nil
}

// SessionDuration converts a requested length in minutes to a duration.
// Values that are NaN, infinite or not positive fall back to fallback
// minutes, and to DefaultSessionMinutes when fallback is not positive either.
// The result never exceeds MaxSessionMinutes.
func SessionDuration(minutes float64, fallback float64) time.Duration {
	if !usableMinutes(fallback) {
		fallback = DefaultSessionMinutes
	}
	if !usableMinutes(minutes) {
		minutes = fallback
	}
	if minutes > MaxSessionMinutes {
		minutes = MaxSessionMinutes
	}
	return time.Duration(minutes * float64(time.Minute))
}

func usableMinutes(m float64) bool {
	return !math.IsNaN(m) && !math.IsInf(m, 0) && m > 0
}
