package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/auth"
)

// ErrNotificationFailed is returned when a message could not be delivered
var ErrNotificationFailed = errors.New("notify: notification failed")

// Message is one outbound notification
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	UserID  int64  `json:"user_id,omitempty"`
}

// Notifier sends messages
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ExpirationWarning renders the warning sent to a demo user daysLeft days
// before cleanup
func ExpirationWarning(user *auth.User, daysLeft, reportLimit int) Message {
	dayWord := "days"
	if daysLeft == 1 {
		dayWord = "day"
	}

	name := user.Username
	if name == "" {
		name = "there"
	}

	return Message{
		To:      user.Email,
		UserID:  user.ID,
		Subject: fmt.Sprintf("Your demo account expires in %d %s", daysLeft, dayWord),
		Body: fmt.Sprintf(
			"Hi %s,\n\n"+
				"Your demo account expires in %d %s. You have created %d of %d demo reports.\n\n"+
				"When the account expires your reports are exported and then removed, and the account is closed. "+
				"Upgrade before then to keep your reports and create more.\n",
			name, daysLeft, dayWord, user.ReportCount, reportLimit),
	}
}

// LogNotifier writes messages to the log instead of sending them
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier creates a notifier for development and dry environments
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send implements Notifier
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: message has no recipient", ErrNotificationFailed)
	}
	n.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"user_id": msg.UserID,
		"subject": msg.Subject,
	}).Info("Notification (log only)")
	return nil
}
