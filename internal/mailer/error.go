package mailer

import (
	"errors"
	"fmt"
	"net/textproto"
)

// Error wraps a transport failure with classification metadata.
type Error struct {
	// Mailer is the name of the transport that failed.
	Mailer string
	// Code is the SMTP reply code or HTTP status code, when known.
	Code int
	// Message is the failure description from the transport.
	Message string
	// Permanent indicates the failure will not succeed on retry.
	Permanent bool
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %d %s", e.Mailer, e.Code, e.Message)
	}
	return e.Mailer + ": " + e.Message
}

// IsPermanent reports whether err is a classified permanent failure.
func IsPermanent(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Permanent
	}
	return false
}

// classifySMTPError converts an SMTP dialogue error into an *Error.
// Reply codes in the 5xx range are permanent rejections; 4xx codes are
// transient. Connection-level errors have no code and are transient.
func classifySMTPError(name string, err error) *Error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &Error{
			Mailer:    name,
			Code:      tpErr.Code,
			Message:   tpErr.Msg,
			Permanent: tpErr.Code >= 500,
		}
	}
	return &Error{Mailer: name, Message: err.Error()}
}
