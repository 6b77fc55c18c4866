package webapi

import (
	"fmt"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/model"
)

// decryptCredential mirrors sync.Engine's own credential decryption so
// handlePostSend can hand a live adapter.Credentials to the adapter.
func (s *Server) decryptCredential(cred *model.Credential) (*adapter.Credentials, error) {
	accessToken, err := s.cipher.Decrypt(cred.AccessTokenCipher)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	var refreshToken string
	if cred.RefreshTokenCipher != "" {
		refreshToken, err = s.cipher.Decrypt(cred.RefreshTokenCipher)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}

	return &adapter.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  cred.TokenExpiry,
	}, nil
}
