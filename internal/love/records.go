package love

import (
	"encoding/json"
	"time"
)

// Echo is a short message relayed between the two users.
type Echo struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// echoList accepts both response shapes the backend has shipped for
// /api/echo/latest: a bare array and an {items:[...]} wrapper.
type echoList []Echo

func (l *echoList) UnmarshalJSON(data []byte) error {
	var items []Echo
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var wrapped struct {
		Items []Echo `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Items
	return nil
}

// Signal is a self-reported daily mood/status record.
type Signal struct {
	ID        int64     `json:"id"`
	Mood      string    `json:"mood"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SignalInput is the submit payload for today's signal.
type SignalInput struct {
	Mood    string `json:"mood"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Photo is a reward photo record. URL may be relative to the backend base.
type Photo struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventCount is one aggregated row of the daily summary.
type EventCount struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	ToolKey string `json:"toolKey"`
	Count   int    `json:"count"`
}

// Summary is the daily cross-entity read model. It is assembled server-side
// and treated as an immutable snapshot here: refetched wholesale, never
// patched.
type Summary struct {
	Date         string       `json:"date"`
	Events       []EventCount `json:"events"`
	LatestSignal *Signal      `json:"latestSignal,omitempty"`
	Echoes       []Echo       `json:"echoes"`
	Photos       []Photo      `json:"photos"`
}

// User mirrors a backend user record for administrative display.
type User struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	Role      string    `json:"role,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventLog mirrors a per-user daily counter row.
type EventLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	ToolKey   string    `json:"toolKey"`
	Count     int       `json:"count"`
	Date      string    `json:"date"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the backend's answer to a token lookup. Role is one of
// me|girlfriend|test|user, or empty when unknown.
type Profile struct {
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
}

// SeedUsersResult carries the three users created by the seed action.
type SeedUsersResult struct {
	Me         User `json:"me"`
	Girlfriend User `json:"girlfriend"`
	Test       User `json:"test"`
}
