// Package mailer delivers the two transactional messages: the OTP challenge
// and the registration confirmation with the ID card document attached.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/hackathon-registration/internal/config"
	"github.com/yakoovad/hackathon-registration/internal/model"
	gomail "gopkg.in/gomail.v2"
)

var (
	// ErrUnconfigured: SMTP host/user/credential missing. No connection is
	// attempted.
	ErrUnconfigured = errors.New("smtp transport not configured")
	// ErrTransport: timeout, refused connection, TLS failure. Retryable.
	ErrTransport = errors.New("smtp transport failure")
	// ErrRejected: the server refused the message or our credentials. Not
	// retryable.
	ErrRejected = errors.New("smtp rejected message")
)

// DialTimeout bounds every synchronous send.
const DialTimeout = 20 * time.Second

type Mailer struct {
	host string
	port int
	user string
	pass string

	baseURL string
}

func New(cfg config.Config) *Mailer {
	return &Mailer{
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		user:    cfg.SMTPUser,
		pass:    cfg.SMTPPass,
		baseURL: cfg.BaseURL,
	}
}

func (m *Mailer) Configured() bool {
	return m.host != "" && m.user != "" && m.pass != ""
}

// SendOTP delivers the 6-digit challenge.
func (m *Mailer) SendOTP(ctx context.Context, to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your verification code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s.\n\n"+
			"Enter it on the registration page to confirm your team. "+
			"The code is valid for 5 minutes and can be used once.\n\n"+
			"If you did not register, ignore this message.\n",
		code,
	))

	return m.send(ctx, msg)
}

// SendConfirmation delivers the committed team view with the ID card
// document attached.
func (m *Mailer) SendConfirmation(ctx context.Context, team *model.Team, attachmentPath string) error {
	var members strings.Builder
	for _, mem := range team.Members {
		role := "Member"
		if mem.IsTeamLeader {
			role = "Team Leader"
		}
		fmt.Fprintf(&members, "  %s — %s (%s)\n", mem.ParticipantID, mem.Name, role)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", team.LeaderEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Registration confirmed — %s", team.TeamID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\n"+
			"Your team %q is registered.\n\n"+
			"Team ID:   %s\n"+
			"Team Code: %s\n\n"+
			"Members:\n%s\n"+
			"Next steps:\n"+
			"  1. The ID cards PDF is attached; print one card per member.\n"+
			"  2. Each card carries a QR code used for check-in at the venue.\n"+
			"  3. Keep the Team ID handy as a manual check-in fallback.\n\n"+
			"You can re-download the cards any time: %s/api/download/id-cards?team_id=%s&key=%s\n",
		team.LeaderName, team.TeamName, team.TeamID, team.TeamCode, members.String(),
		m.baseURL, team.TeamID, team.AccessKey,
	))
	if attachmentPath != "" {
		msg.Attach(attachmentPath, gomail.Rename(team.TeamID+"_id_cards.pdf"))
	}

	return m.send(ctx, msg)
}

// send runs the dial-and-send under the dial timeout and the caller's
// context, then classifies the failure.
func (m *Mailer) send(ctx context.Context, msg *gomail.Message) error {
	if !m.Configured() {
		return ErrUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
		done <- d.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		// The transport goroutine is abandoned; it times out on its own.
		return errors.Wrap(ErrTransport, ctx.Err().Error())
	case err := <-done:
		if err == nil {
			return nil
		}
		return classify(err)
	}
}

func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		// Permanent negative completion: bad recipient, failed auth.
		if protoErr.Code >= 500 {
			return errors.Wrap(ErrRejected, err.Error())
		}
		return errors.Wrap(ErrTransport, err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Wrap(ErrTransport, err.Error())
	}

	// TLS and dial failures come through as plain errors.
	return errors.Wrap(ErrTransport, err.Error())
}
