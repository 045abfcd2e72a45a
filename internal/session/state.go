package session

import (
	"fmt"
	"time"

	"github.com/fpang/sketch-render/internal/render"
)

// Phase is the submission lifecycle state.
type Phase int

const (
	Idle Phase = iota
	AwaitingAuthorization
	InFlight
	Succeeded
	Failed
)

var phaseNames = [...]string{
	Idle:                  "idle",
	AwaitingAuthorization: "awaiting_authorization",
	InFlight:              "in_flight",
	Succeeded:             "succeeded",
	Failed:                "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Busy reports whether a submission holds the session.
func (p Phase) Busy() bool {
	return p == AwaitingAuthorization || p == InFlight
}

// Operation names a kind of submission.
type Operation string

const (
	OpGenerate Operation = "generate"
	OpEdit     Operation = "edit"
)

// Transition is passed to the transition hook on every phase change.
type Transition struct {
	From         Phase
	To           Phase
	Operation    Operation
	SubmissionID string
	At           time.Time
}

// Snapshot is the read model of the session. Source and Result point at
// session-owned images which are never mutated after being stored.
//
// Prompt and ResultOptions belong to the generation that produced Result;
// Options are the current, possibly edited, form values.
type Snapshot struct {
	Phase         Phase           `json:"phase"`
	Options       render.Options  `json:"options"`
	HasSource     bool            `json:"hasSource"`
	HasResult     bool            `json:"hasResult"`
	LastError     string          `json:"error,omitempty"`
	Prompt        string          `json:"prompt,omitempty"`
	ResultOptions *render.Options `json:"resultOptions,omitempty"`
	Operation     Operation       `json:"operation,omitempty"`
	SubmissionID  string          `json:"submissionId,omitempty"`
	Edits         int             `json:"edits"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Source *render.Image `json:"-"`
	Result *render.Image `json:"-"`
}

// RenderOptions returns the options that produced Result, falling back to the
// current options when there is no render.
func (s Snapshot) RenderOptions() render.Options {
	if s.ResultOptions != nil {
		return *s.ResultOptions
	}
	return s.Options
}
