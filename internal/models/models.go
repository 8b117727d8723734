package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// UserProfile is the payload of GET /user/profile.
type UserProfile struct {
	User      User       `json:"user"`
	Profile   *Profile   `json:"profile,omitempty"`
	MusicData *MusicData `json:"music_data,omitempty"`
}

// User is the identity sub-record of a [UserProfile].
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Profile holds the optional self-described fields.
type Profile struct {
	Bio       string   `json:"bio,omitempty"`
	Age       int      `json:"age,omitempty"`
	Location  string   `json:"location,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// MusicData is the backend's music-personality analysis.
type MusicData struct {
	PersonalityVector []float64 `json:"personality_vector,omitempty"`
	LastUpdated       string    `json:"last_updated,omitempty"`
}

// DisplayName returns the username, falling back to "user #id".
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if name := strings.TrimSpace(p.User.Username); name != "" {
		return name
	}
	return fmt.Sprintf("user #%d", p.User.ID)
}

// HasMusicData reports whether the backend has analysed the user's listening yet.
func (p *UserProfile) HasMusicData() bool {
	return p != nil && p.MusicData != nil && len(p.MusicData.PersonalityVector) > 0
}

// LastUpdatedTime parses LastUpdated as RFC 3339, returning false when absent or unparsable.
func (m *MusicData) LastUpdatedTime() (time.Time, bool) {
	if m == nil || m.LastUpdated == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, m.LastUpdated); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CallbackResponse is the success body of GET /auth/callback.
type CallbackResponse struct {
	Token     string  `json:"token"`
	UserID    FlexID  `json:"user_id"`
	ExpiresIn Seconds `json:"expires_in,omitempty"`
}

// Complete reports whether both token and user_id are present.
func (c CallbackResponse) Complete() bool {
	return c.Token != "" && c.UserID != ""
}

// FlexID decodes an identifier that the backend may send as a JSON string or number.
type FlexID string

// UnmarshalJSON implements [json.Unmarshaler].
func (f *FlexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Seconds decodes a lifetime sent as a JSON number or numeric string, dropping any fraction.
//
// Anything unusable decodes as zero (unknown) rather than failing the whole body.
type Seconds int64

// UnmarshalJSON implements [json.Unmarshaler].
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}

	v, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange), math.IsNaN(v), v <= 0:
		*s = 0
	case v >= math.MaxInt64:
		*s = math.MaxInt64
	default:
		*s = Seconds(v)
	}
	return nil
}

// Int64 returns the lifetime in seconds.
func (s Seconds) Int64() int64 { return int64(s) }
