package verification

import (
	"fmt"
	"time"
)

// Code is a short-lived one-time challenge the user places in their
// Roblox profile bio to prove control of that profile.
type Code struct {
	ID        int64
	UserID    int64
	Code      string
	ExpiresAt time.Time
	Used      bool
}

// Live reports whether the code can still be redeemed.
func (c *Code) Live(now time.Time) bool {
	return c != nil && !c.Used && c.ExpiresAt.After(now)
}

// Result is the outcome of a successful verification.
type Result struct {
	RobloxID    int64
	RobloxName  string
	Rank        int
	RankName    string
	AccessToken string
}

// FailureReason tags the mutually exclusive verification failures, in
// check order; the first one encountered is reported.
type FailureReason string

const (
	ReasonCodeInvalidOrExpired   FailureReason = "code_invalid_or_expired"
	ReasonUserNotFound           FailureReason = "user_not_found"
	ReasonNoChallengeMarkerInBio FailureReason = "no_challenge_marker_in_bio"
	ReasonChallengeNotFound      FailureReason = "challenge_not_found"
	ReasonNotInRequiredGroup     FailureReason = "not_in_required_group"
)

// Message returns the user-actionable text for a failure.
func (r FailureReason) Message() string {
	switch r {
	case ReasonCodeInvalidOrExpired:
		return "verification code is invalid or has expired, request a new one"
	case ReasonUserNotFound:
		return "no Roblox account matches that username"
	case ReasonNoChallengeMarkerInBio:
		return "your profile bio contains no verification symbols, paste the code into it"
	case ReasonChallengeNotFound:
		return "your profile bio does not contain the issued code"
	case ReasonNotInRequiredGroup:
		return "that Roblox account is not a member of the staff group"
	default:
		return "verification failed"
	}
}

// FlowError is a verification-domain failure. It is a business outcome,
// reported to the caller and never retried automatically.
type FlowError struct {
	Reason FailureReason
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("verification: %s", e.Reason)
}

func failed(reason FailureReason) error {
	return &FlowError{Reason: reason}
}
