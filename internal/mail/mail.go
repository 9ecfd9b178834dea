// Package mail sends best-effort notice email. Failures are logged and
// swallowed: by contract a failed invite or reminder mail must never fail
// the operation that triggered it.
package mail

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// Sender delivers one notice to one recipient.
type Sender interface {
	Send(to, subject, body string)
}

// SMTPSender speaks plain SMTP to a relay. An empty addr disables sending.
type SMTPSender struct {
	Addr string
	From string
}

// Send returns immediately; the SMTP exchange runs on its own goroutine so a
// slow relay cannot stall the request that scheduled the notice.
func (s *SMTPSender) Send(to, subject, body string) {
	if s.Addr == "" {
		return
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)
	go func() {
		if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, []byte(msg)); err != nil {
			log.Warn().Err(err).Str("module", "mail").Str("to", to).Msg("notice mail failed")
		}
	}()
}

// Discard is used where no relay is configured.
type Discard struct{}

func (Discard) Send(string, string, string) {}
