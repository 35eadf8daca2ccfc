package transport

import (
	"context"
	"fmt"
	"time"
)

// Target is a channel or chat address: "@channel" or a numeric chat id
// such as "-1001234567890".
type Target string

func (t Target) String() string { return string(t) }

// Recipient lets a Target be passed to the Telegram client directly.
func (t Target) Recipient() string { return string(t) }

type MessageRef struct {
	Chat      string
	MessageID int
}

// Button is an inline URL button shown under a message.
type Button struct {
	Text string
	URL  string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Buttons        []Button
}

// Sender delivers messages to one messaging platform.
type Sender interface {
	SendText(ctx context.Context, to Target, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to Target, photoURL, caption string, opt *SendOptions) (MessageRef, error)
}

// RateLimitedError is returned when the platform asks the caller to back off.
type RateLimitedError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }
