package session

import (
	"errors"
	"strings"

	"github.com/fpang/sketch-render/internal/render"
)

var (
	// ErrBusy rejects a submission while another one holds the session.
	ErrBusy = errors.New("a render is already in progress")

	// ErrInvalidInput is reported when the source image, prior render or
	// edit command is missing. It is the same value as render.ErrInvalidInput.
	ErrInvalidInput = render.ErrInvalidInput

	// ErrAuthorizationDeclined is returned when the key prompt was not
	// completed. The submission is abandoned and the session is Idle again.
	ErrAuthorizationDeclined = errors.New("authorization declined")
)

// Remote errors containing credentialDeniedMarker mean the selected key has
// no access to the paid image model.
const (
	credentialDeniedMarker = "Requested entity was not found"

	// CredentialErrorMessage is shown instead of the raw remote text.
	CredentialErrorMessage = "يرجى التأكد من اختيار مفتاح API صالح من مشروع مدفوع."
)

// RemoteError is a failed remote call with its user-facing message.
type RemoteError struct {
	Operation Operation
	Message   string
	Err       error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NormalizeRemoteError wraps err with the message the user should see. The
// credential-denied condition becomes CredentialErrorMessage; anything else
// keeps its text.
func NormalizeRemoteError(op Operation, err error) *RemoteError {
	msg := err.Error()
	if strings.Contains(msg, credentialDeniedMarker) {
		msg = CredentialErrorMessage
	}
	return &RemoteError{Operation: op, Message: msg, Err: err}
}
