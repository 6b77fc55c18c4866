package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

// DisabledAdapter implements Adapter but rejects every operation. It is
// registered in place of a live adapter when a platform's required
// credentials (OAuth client id/secret, bot token) are not configured, so
// the service starts successfully with that platform simply unusable.
type DisabledAdapter struct {
	platform model.Platform
	reason   string
}

// NewDisabledAdapter creates a stub adapter for platform that fails every
// call with reason in the error message.
func NewDisabledAdapter(platform model.Platform, reason string) *DisabledAdapter {
	return &DisabledAdapter{platform: platform, reason: reason}
}

func (d *DisabledAdapter) Name() model.Platform { return d.platform }

func (d *DisabledAdapter) err() error {
	return fmt.Errorf("adapter %q is disabled: %s", d.platform, d.reason)
}

func (d *DisabledAdapter) FetchNewMessages(_ context.Context, _ string, _ time.Time, _ Credentials) ([]RawMessage, error) {
	return nil, d.err()
}

func (d *DisabledAdapter) Normalize(_ RawMessage, _ string) (model.Message, error) {
	return model.Message{}, d.err()
}

func (d *DisabledAdapter) SendMessage(_ context.Context, _, _ string, _ Credentials, _ SendOpts) SendResult {
	return SendResult{OK: false, Err: d.err()}
}

func (d *DisabledAdapter) SetupWebhook(_ context.Context, _, _ string, _ Credentials) (string, error) {
	return "", d.err()
}

func (d *DisabledAdapter) RefreshCredentials(_ context.Context, _ Credentials) (*Credentials, error) {
	return nil, d.err()
}
