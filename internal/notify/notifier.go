// Package notify delivers operational notifications — pairing codes and
// deploy failures — to a Slack channel the platform operators watch,
// following the teacher's Notifier shape (noop when no bot token is
// configured, logging in its place).
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts operational events to a single Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack Notifier. If botToken is empty, the notifier is a
// noop and every call only logs.
func New(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

func (n *Notifier) enabled() bool {
	return n.client != nil && n.channel != ""
}

// NotifyPairingCode announces a freshly minted pairing code for a tenant
// that just finished deploying or had its pairing reset.
func (n *Notifier) NotifyPairingCode(ctx context.Context, tenantName, slug, code string) error {
	text := fmt.Sprintf(":key: Pairing code for *%s* (`%s`): `%s`", tenantName, slug, code)
	if !n.enabled() {
		n.logger.Info("pairing code minted", "tenant", tenantName, "slug", slug)
		return nil
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: posting pairing code: %w", err)
	}
	return nil
}

// NotifyDeployFailure announces a failed deploy attempt with the reason,
// so an operator can inspect and recover the tenant.
func (n *Notifier) NotifyDeployFailure(ctx context.Context, tenantName, slug, reason string) error {
	text := fmt.Sprintf(":red_circle: Deploy failed for *%s* (`%s`): %s", tenantName, slug, reason)
	if !n.enabled() {
		n.logger.Warn("deploy failed", "tenant", tenantName, "slug", slug, "reason", reason)
		return nil
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: posting deploy failure: %w", err)
	}
	return nil
}
