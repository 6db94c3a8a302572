// Package errdefs holds the error kinds shared by capture, transport and the
// interview service, plus the messages shown to the candidate.
package errdefs

import (
	"errors"
	"strings"
)

var (
	// ErrPermission means microphone access was denied.
	ErrPermission = errors.New("microphone permission denied")
	// ErrDeviceNotFound means no usable input device exists.
	ErrDeviceNotFound = errors.New("microphone not found")
	// ErrCapture is a recorder-level fault.
	ErrCapture = errors.New("audio capture failed")

	ErrAlreadyActive = errors.New("already active")
	ErrNotActive     = errors.New("not active")

	// ErrValidation covers empty audio and malformed server responses.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network request failed")
	// ErrServer is an error field reported inside a successful response.
	ErrServer = errors.New("server reported an error")
)

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPermission):
		return "Please allow microphone access"
	case errors.Is(err, ErrDeviceNotFound):
		return "No microphone found"
	case errors.Is(err, ErrCapture):
		return "Could not record audio: " + detail(err, ErrCapture)
	case errors.Is(err, ErrAlreadyActive):
		return "Please wait: " + detail(err, ErrAlreadyActive)
	case errors.Is(err, ErrNotActive):
		return "Nothing to do: " + detail(err, ErrNotActive)
	case errors.Is(err, ErrValidation):
		return detail(err, ErrValidation)
	case errors.Is(err, ErrNetwork):
		return "Could not reach the interviewer: " + detail(err, ErrNetwork)
	case errors.Is(err, ErrServer):
		return "The interviewer reported a problem: " + detail(err, ErrServer)
	}
	return err.Error()
}

// detail strips the sentinel text from a wrapped error chain so messages
// don't repeat themselves.
func detail(err, kind error) string {
	msg := err.Error()
	msg = strings.ReplaceAll(msg, ": "+kind.Error(), "")
	msg = strings.TrimPrefix(msg, kind.Error()+": ")
	msg = strings.TrimPrefix(msg, kind.Error())
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return kind.Error()
	}
	return msg
}
