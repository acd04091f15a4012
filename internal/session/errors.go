package session

import "errors"

var (
	ErrNoToken        = errors.New("no session token")
	ErrTokenExpired   = errors.New("session token expired")
	ErrInvalidSession = errors.New("session token rejected")
	ErrCallbackFailed = errors.New("authentication callback failed")
)

// AuthError carries the message to show the user for a failed auth operation.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
