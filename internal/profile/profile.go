// Package profile stores per-user athlete profiles as JSON documents.
package profile

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Store is the subset of the document store the profile layer needs.
type Store interface {
	Read(rel string) ([]byte, bool, error)
	Write(rel string, content []byte) error
}

// Profile is the onboarding result for one athlete. AthleteProfile is the
// free-text block injected verbatim into the coach prompt.
type Profile struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	AthleteProfile string    `json:"athlete_profile"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Path returns the profile document's location for a user.
func Path(userID string) string {
	return path.Join("users", userID, "profile.json")
}

// Load returns a user's profile, or nil when none has been saved yet —
// an unonboarded user is a normal state, not an error.
func Load(s Store, userID string) (*Profile, error) {
	data, ok, err := s.Read(Path(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile for %s: %w", userID, err)
	}
	return &p, nil
}

// Save validates and writes a profile, stamping UpdatedAt (and CreatedAt on
// first save).
func Save(s Store, p *Profile, now time.Time) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("profile user_id is required")
	}
	if strings.TrimSpace(p.AthleteProfile) == "" {
		return fmt.Errorf("profile athlete_profile is required")
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.Write(Path(p.UserID), append(data, '\n'))
}

// PromptText returns the profile block for the coach prompt, with a fixed
// placeholder when the user has not onboarded yet.
func PromptText(p *Profile) string {
	if p == nil || strings.TrimSpace(p.AthleteProfile) == "" {
		return "(No profile set — ask the user to complete onboarding.)"
	}
	return p.AthleteProfile
}
