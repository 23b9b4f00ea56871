package model

import "time"

// Session is the ephemeral "a live conversation is happening" state for one
// chat. It is best-effort persisted only; correctness never depends on it
// surviving a restart because timeout expiry self-heals staleness.
type Session struct {
	LastActivity time.Time        `json:"last_activity"`
	Participants map[int64]string `json:"participants"`
	StarterID    int64            `json:"starter_id"`
}

func NewSession(userID int64, username string, now time.Time) *Session {
	return &Session{
		LastActivity: now,
		Participants: map[int64]string{userID: username},
		StarterID:    userID,
	}
}

// Expired reports whether the session has been idle past timeout as of now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// Touch refreshes activity and records the user as a participant.
func (s *Session) Touch(userID int64, username string, now time.Time) {
	s.LastActivity = now
	if s.Participants == nil {
		s.Participants = make(map[int64]string)
	}
	s.Participants[userID] = username
}

func (s *Session) Clone() *Session {
	cp := &Session{LastActivity: s.LastActivity, StarterID: s.StarterID}
	cp.Participants = make(map[int64]string, len(s.Participants))
	for id, name := range s.Participants {
		cp.Participants[id] = name
	}
	return cp
}
