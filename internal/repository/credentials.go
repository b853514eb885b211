package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/visionchat/internal/domain"
)

// CredentialStore keeps the backend bearer token of each Telegram user.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// Token returns the stored token, or domain.ErrNoCredential.
func (s *CredentialStore) Token(ctx context.Context, telegramUserID int64) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM chat_credentials WHERE telegram_user_id = $1`,
		telegramUserID,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("get credential: %w", err)
	}
	return token, nil
}

func (s *CredentialStore) SetToken(ctx context.Context, telegramUserID int64, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.DeleteToken(ctx, telegramUserID)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_credentials (telegram_user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (telegram_user_id)
		DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`,
		telegramUserID, token,
	)
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) DeleteToken(ctx context.Context, telegramUserID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_credentials WHERE telegram_user_id = $1`, telegramUserID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
