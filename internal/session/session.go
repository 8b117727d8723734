package session

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/melodymatch/internal/models"
)

// Store keys.
const (
	KeyToken       = "melody_match_token"
	KeyUserID      = "melody_match_user_id"
	KeyTokenExpiry = "melody_match_token_expiry"
	KeyLoginTime   = "melody_match_login_time"
	KeyOrigin      = "melody_match_origin" // reserved, never written
)

// Keys lists every key [Manager.Erase] removes.
var Keys = []string{KeyToken, KeyUserID, KeyTokenExpiry, KeyLoginTime, KeyOrigin}

// Redirect query parameters consumed by [Manager.AcquireFromRedirect].
const (
	ParamToken     = "token"
	ParamUserID    = "user_id"
	ParamExpiresIn = "expires_in"
)

// Session is the persisted credential of a locally-authenticated visitor.
type Session struct {
	Token     string
	UserID    string
	Expiry    time.Time // zero when the expiry is unknown
	LoginTime time.Time
}

// HasExpiry reports whether a client-computed expiry is known.
func (s Session) HasExpiry() bool {
	return !s.Expiry.IsZero()
}

// ExpiredAt reports whether the session is locally expired at now (strictly after the expiry instant).
func (s Session) ExpiredAt(now time.Time) bool {
	return s.HasExpiry() && now.After(s.Expiry)
}

// Valid reports whether both halves of the credential are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// Status is the result of a local session lookup.
type Status int

const (
	StatusAbsent Status = iota
	StatusExpired
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusExpired:
		return "expired"
	case StatusValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Acquisition is what a page load found: a session (if any), its local status and,
// when redirect parameters were consumed, the URL with them stripped.
type Acquisition struct {
	Session      Session
	Status       Status
	FromRedirect bool
	CleanURL     *url.URL
}

// Outcome classifies a server validation.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeRejected
	OutcomeInconclusive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeRejected:
		return "rejected"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Validation is the result of [Manager.ValidateRemotely].
type Validation struct {
	Outcome    Outcome
	Profile    *models.UserProfile // set for OutcomeValid
	StatusCode int                 // HTTP status, 0 when no response was received
	Err        error               // set for OutcomeRejected and OutcomeInconclusive
	Malformed  bool                // a 2xx answer whose body could not be decoded
}

// NetworkFailure reports whether the validation got no HTTP answer at all.
func (v Validation) NetworkFailure() bool {
	return v.Outcome == OutcomeInconclusive && v.StatusCode == 0
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(n), true
}

// MaxExpiresIn is the longest lifetime, in seconds, a session can carry; longer ones are clamped.
const MaxExpiresIn = math.MaxInt64 / int64(time.Second)

// ClampExpiresIn limits n to [MaxExpiresIn] so the expiry stays representable.
func ClampExpiresIn(n int64) int64 {
	return min(n, MaxExpiresIn)
}

// parseExpiresIn returns the lifetime in whole seconds, or false when s is missing, malformed or not positive.
//
// Like parseInt in a browser it reads the leading digits and ignores the rest, so "3600.5" is 3600.
func parseExpiresIn(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return MaxExpiresIn, true
	}
	if err != nil || n <= 0 {
		return 0, false
	}
	return ClampExpiresIn(n), true
}
