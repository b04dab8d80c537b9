package boundary

import "nlu-engine/internal/common/errors"

// Status is returned by every fallible boundary call.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "ERROR"
}

// Channel carries the last error of one caller. Give each goroutine its
// own Channel; a Channel must not be shared between concurrent calls.
type Channel struct {
	message string
	code    errors.ErrorCode
}

// NewChannel returns an empty error channel.
func NewChannel() *Channel {
	return &Channel{}
}

// LastError is the message of the most recent failed call on this channel.
// Successful calls leave it in place.
func (c *Channel) LastError() string {
	return c.message
}

// LastCode is the error code of the most recent failed call.
func (c *Channel) LastCode() errors.ErrorCode {
	return c.code
}

func (c *Channel) set(err error) Status {
	std := errors.AsStandardError(err)
	c.code = std.Code
	c.message = std.Message
	if std.Details != "" {
		c.message += ": " + std.Details
	}
	return StatusError
}
