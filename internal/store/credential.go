package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inboxd/inboxd/internal/model"
)

const credentialColumns = `user_id, platform, access_token_cipher, refresh_token_cipher, token_expiry, scopes, platform_user_id, webhook_id`

func scanCredential(row scanner, c *model.Credential) error {
	var scopes string
	if err := row.Scan(
		&c.UserID, &c.Platform, &c.AccessTokenCipher, &c.RefreshTokenCipher, &c.TokenExpiry, &scopes, &c.PlatformUserID, &c.WebhookID,
	); err != nil {
		return err
	}
	if scopes != "" {
		if err := json.Unmarshal([]byte(scopes), &c.Scopes); err != nil {
			return fmt.Errorf("decode scopes: %w", err)
		}
	}
	return nil
}

// UpsertCredential stores or replaces a user's encrypted tokens for one
// platform.
func (s *FeedStore) UpsertCredential(c *model.Credential) error {
	scopes, err := json.Marshal(c.Scopes)
	if err != nil {
		return fmt.Errorf("store: encode scopes: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO platform_credentials (user_id, platform, access_token_cipher, refresh_token_cipher, token_expiry, scopes, platform_user_id, webhook_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, platform) DO UPDATE SET
			access_token_cipher = excluded.access_token_cipher,
			refresh_token_cipher = excluded.refresh_token_cipher,
			token_expiry = excluded.token_expiry,
			scopes = excluded.scopes,
			platform_user_id = excluded.platform_user_id,
			webhook_id = excluded.webhook_id`,
		c.UserID, c.Platform, c.AccessTokenCipher, c.RefreshTokenCipher, c.TokenExpiry, string(scopes), c.PlatformUserID, c.WebhookID,
	)
	if err != nil {
		return fmt.Errorf("store: upsert credential: %w", err)
	}
	return nil
}

// GetCredential retrieves one platform credential, or nil if the user has
// never connected that platform.
func (s *FeedStore) GetCredential(userID string, platform model.Platform) (*model.Credential, error) {
	row := s.conn.QueryRow(`SELECT `+credentialColumns+` FROM platform_credentials WHERE user_id = ? AND platform = ?`, userID, platform)
	var c model.Credential
	if err := scanCredential(row, &c); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("store: get credential: %w", err)
	}
	return &c, nil
}

// CredentialByPlatformUserID resolves the owning (user, platform) credential
// row from a platform's own user identifier, the lookup webhook ingest uses
// when a payload carries no inboxd user ID.
func (s *FeedStore) CredentialByPlatformUserID(platform model.Platform, platformUserID string) (*model.Credential, error) {
	row := s.conn.QueryRow(
		`SELECT `+credentialColumns+` FROM platform_credentials WHERE platform = ? AND platform_user_id = ?`,
		platform, platformUserID,
	)
	var c model.Credential
	if err := scanCredential(row, &c); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("store: credential by platform user id: %w", err)
	}
	return &c, nil
}

// DeleteCredential removes a user's connection to a platform.
func (s *FeedStore) DeleteCredential(userID string, platform model.Platform) error {
	_, err := s.conn.Exec(`DELETE FROM platform_credentials WHERE user_id = ? AND platform = ?`, userID, platform)
	if err != nil {
		return fmt.Errorf("store: delete credential: %w", err)
	}
	return nil
}

// ListCredentials returns every connected (user, platform) credential,
// the enumeration the fleet sync ticks over each cycle.
func (s *FeedStore) ListCredentials() ([]model.Credential, error) {
	rows, err := s.conn.Query(`SELECT ` + credentialColumns + ` FROM platform_credentials`)
	if err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var creds []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := scanCredential(rows, &c); err != nil {
			return nil, fmt.Errorf("store: scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
