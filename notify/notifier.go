package notify

import (
	"github.com/sirupsen/logrus"
)

// SendFunc delivers one message to one recipient. Delivery transport (mail,
// chat) is an external collaborator; the default implementation only logs.
// Callers treat delivery as best-effort.
var SendFunc = Send

func Send(recipient, subject, body string) error {
	logrus.WithFields(logrus.Fields{"recipient": recipient, "subject": subject}).Info("notification dispatched")
	return nil
}
