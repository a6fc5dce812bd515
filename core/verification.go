package core

import (
	"time"

	"github.com/layer-3/recaptcha"
)

// Form field names posted by the challenge widget
const (
	ChallengeField = "recaptcha_challenge_field"
	ResponseField  = "recaptcha_response_field"
)

// Submission is what a form hands over for verification
type Submission struct {
	Challenge string // Challenge token issued by the widget
	Response  string // Answer typed by the user
	RemoteIP  string // Address of the submitting client
}

// Outcome is the result of validating a Submission
type Outcome struct {
	Response  recaptcha.Response
	PassToken string // Signed proof of a valid answer, empty when invalid
}

// Pass is the proof handed out after a successful verification
type Pass struct {
	ID        string    // Unique pass identifier
	Challenge string    // Challenge that was solved
	RemoteIP  string    // Address the challenge was solved from
	IssuedAt  time.Time // When the pass was issued
	ExpiresAt time.Time // When the pass stops being accepted
}

// VerificationEvent is published after every answered verification
type VerificationEvent struct {
	ID         string    `json:"id"`
	RemoteIP   string    `json:"remote_ip"`
	Challenge  string    `json:"challenge"`
	Valid      bool      `json:"valid"`
	ErrorCode  string    `json:"error_code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
