package domain

import (
	"time"
)

// Presence is one anonymised location with recent activity.
// Its brightness is always derived from LastActiveAt and IsOnline, never stored.
type Presence struct {
	ID           string    `json:"id"`
	Location     GeoPoint  `json:"location"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsOnline     bool      `json:"is_online"`
}

// Validate checks the presence before it enters a registry.
func (p *Presence) Validate() error {
	if p.ID == "" {
		return invalid("presence id is required")
	}
	if p.LastActiveAt.IsZero() {
		return invalid("presence last_active_at is required")
	}
	return p.Location.Validate()
}

// Ping is a transient arc between two coordinates.
type Ping struct {
	ID                 string    `json:"id"`
	From               GeoPoint  `json:"from"`
	To                 GeoPoint  `json:"to"`
	CreatedAt          time.Time `json:"created_at"`
	InvolvesLocalActor bool      `json:"involves_local_actor"`
}

// Validate checks both endpoints of the ping.
func (p *Ping) Validate() error {
	if err := p.From.Validate(); err != nil {
		return err
	}
	return p.To.Validate()
}

// Phase is a stage of a ping's one-way lifecycle.
type Phase int

const (
	PhaseDrawing Phase = iota
	PhaseGlowing
	PhaseFading
	PhaseDecaying
)

var phaseNames = [...]string{"drawing", "glowing", "fading", "decaying"}

func (p Phase) String() string {
	if p < PhaseDrawing || p > PhaseDecaying {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return invalid("unknown phase " + string(b))
}

// Next returns the phase that follows p. Decaying is terminal.
func (p Phase) Next() Phase {
	if p >= PhaseDecaying {
		return PhaseDecaying
	}
	return p + 1
}

// PhaseState is the mutable part of a live ping.
type PhaseState struct {
	Current   Phase     `json:"phase"`
	EnteredAt time.Time `json:"entered_at"`
}

// PresenceState is the render-ready view of a presence.
type PresenceState struct {
	Presence
	Brightness float64 `json:"brightness"`
}

// PingState is the render-ready view of a ping.
type PingState struct {
	Ping
	Phase          Phase   `json:"phase"`
	RevealFraction float64 `json:"reveal_fraction"`
	PrimaryOpacity float64 `json:"primary_opacity"`
	GlowOpacity    float64 `json:"glow_opacity"`
	ColorBlend     float64 `json:"color_blend"`
	Color          string  `json:"color"`
	Path           *Path   `json:"path,omitempty"`
	Local          bool    `json:"local,omitempty"` // set per viewer by the relay
}

// PhaseTransition is emitted once each time a ping enters a new phase.
type PhaseTransition struct {
	PingID             string    `json:"ping_id"`
	From               Phase     `json:"from"`
	To                 Phase     `json:"to"`
	At                 time.Time `json:"at"`
	InvolvesLocalActor bool      `json:"involves_local_actor"`
}

// EntityKind distinguishes the two entity families.
type EntityKind string

const (
	KindPresence EntityKind = "presence"
	KindPing     EntityKind = "ping"
)

// Eviction tells render adapters to release per-entity resources.
type Eviction struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
	At   time.Time  `json:"at"`
}

// PingPath carries the arc geometry of one ping. Paths are fixed at
// creation, so they travel once per ping instead of in every frame.
type PingPath struct {
	PingID    string    `json:"ping_id"`
	Path      Path      `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Frame is a complete scene snapshot at one instant. Pings carry no path.
type Frame struct {
	Time      time.Time       `json:"time"`
	Presences []PresenceState `json:"presences"`
	Pings     []PingState     `json:"pings"`
}

// PresenceEventType is the kind of change carried by a PresenceEvent.
type PresenceEventType string

const (
	PresenceInsert PresenceEventType = "insert"
	PresenceUpdate PresenceEventType = "update"
	PresenceDelete PresenceEventType = "delete"
)

// PresenceEvent is an inbound change to a presence.
type PresenceEvent struct {
	Type         PresenceEventType `json:"type"`
	ID           string            `json:"id"`
	Location     *GeoPoint         `json:"location,omitempty"`
	LastActiveAt *time.Time        `json:"last_active_at,omitempty"`
	IsOnline     *bool             `json:"is_online,omitempty"`
}

// PingEvent is an inbound ping request.
type PingEvent struct {
	ID                 string     `json:"id,omitempty"`
	From               GeoPoint   `json:"from"`
	To                 GeoPoint   `json:"to"`
	InvolvesLocalActor bool       `json:"involves_local_actor"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
}
