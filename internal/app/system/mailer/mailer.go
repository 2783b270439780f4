// Package mailer delivers outbound email. The circle core only ever calls
// Invitations.SendInvitation; delivery problems are logged and never
// surfaced to the caller.
package mailer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Email is one outbound message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender hands an Email to a delivery backend.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// PoolContext is what an invitation email needs to know about the pool.
type PoolContext struct {
	PoolID    primitive.ObjectID
	PoolName  string
	Topic     string
	ExpiresAt time.Time
}

// Invitations renders and sends pool invitations.
type Invitations struct {
	sender   Sender
	baseURL  string
	siteName string
	log      *zap.Logger
}

// NewInvitations builds an invitation mailer. baseURL is the public origin
// used for accept links, e.g. "https://circles.example.org".
func NewInvitations(sender Sender, baseURL, siteName string, log *zap.Logger) *Invitations {
	if siteName == "" {
		siteName = "CircleHub"
	}
	return &Invitations{
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		siteName: siteName,
		log:      log,
	}
}

// AcceptLink returns the URL a recipient follows to resolve token.
func (m *Invitations) AcceptLink(token string) string {
	return m.baseURL + "/invitations/" + url.PathEscape(token)
}

// SendInvitation emails token to address. Failures are logged only.
func (m *Invitations) SendInvitation(ctx context.Context, address, token string, pc PoolContext) {
	e := BuildInvitationEmail(address, InvitationEmailData{
		SiteName:   m.siteName,
		PoolName:   pc.PoolName,
		Topic:      pc.Topic,
		AcceptLink: m.AcceptLink(token),
		ExpiresOn:  pc.ExpiresAt.UTC().Format("Mon, 02 Jan 2006"),
	})
	if err := m.sender.Send(ctx, e); err != nil {
		m.log.Warn("invitation email not sent",
			zap.String("pool_id", pc.PoolID.Hex()),
			zap.String("email", address),
			zap.Error(err))
		return
	}
	m.log.Debug("invitation email queued",
		zap.String("pool_id", pc.PoolID.Hex()),
		zap.String("email", address))
}

// LogSender logs messages instead of delivering them. Used when no broker
// is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, e Email) error {
	s.Log.Info("email (not delivered)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}
