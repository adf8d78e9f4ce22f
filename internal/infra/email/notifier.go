package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, runID, videoKey, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := failureMessage(n.from, userEmail, runID, videoKey, errorMsg)

	if err := n.send(addr, nil, n.from, []string{userEmail}, msg); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("run_id", runID),
	)
	return nil
}

func failureMessage(from, to, runID, videoKey, errorMsg string) []byte {
	// runID and the recipient come from the job message and end up in
	// headers; both lose CR and LF.
	strip := strings.NewReplacer("\r", "", "\n", "")

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\n", from, strip.Replace(to))
	fmt.Fprintf(&b, "Subject: FIAP X - Frame pipeline failed [Run %s]\r\n\r\n", strip.Replace(runID))
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("Frame processing for your video has permanently failed after all retry attempts.\r\n\r\n")
	fmt.Fprintf(&b, "Run ID: %s\r\nVideo: %s\r\nError: %s\r\n\r\n", runID, videoKey, errorMsg)
	b.WriteString("Please try uploading the video again or contact support.\r\n\r\n")
	b.WriteString("-- FIAP X Frame Pipeline")
	return []byte(b.String())
}
