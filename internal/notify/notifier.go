// Package notify delivers stage failure escalations to the operations mailbox or a
// chat webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Message is one stage failure escalation.
type Message struct {
	JobName      string `json:"job_name"`
	Stage        string `json:"stage"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Subject returns the subject line used by every transport.
func (m Message) Subject() string {
	return fmt.Sprintf("Revenue balance job %s failed for stage: %s", m.JobName, m.Stage)
}

// Body returns the plain-text body used by every transport.
func (m Message) Body() string {
	var b strings.Builder
	b.WriteString("An error occurred with the following information:\n")
	fmt.Fprintf(&b, "Error code: %s\n", m.ErrorCode)
	fmt.Fprintf(&b, "Error msg: %s", m.ErrorMessage)
	return b.String()
}

// LogNotifier writes escalations to the log. It is the fallback when no mail or
// webhook transport is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.ErrorContext(ctx, msg.Subject(),
		"event", "stage_failure_notification",
		"job", msg.JobName,
		"stage", msg.Stage,
		"error_code", msg.ErrorCode,
		"error_msg", msg.ErrorMessage,
	)
	return nil
}

// Multi fans a message out to every notifier. All notifiers are attempted; their
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
