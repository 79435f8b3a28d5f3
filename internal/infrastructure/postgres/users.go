package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrismart-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `user_id, name, phone, email, language, is_active, created_at, updated_at`

func (s *Store) Create(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		insert into users (`+userColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.UserID, u.Name, u.Phone, u.Email, u.Language, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.queryOne(ctx, `select `+userColumns+` from users where user_id = $1`, userID)
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return s.queryOne(ctx, `select `+userColumns+` from users where phone = $1`, phone)
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, p domain.Profile) error {
	return s.exec(ctx, `
		update users
		set name = $2, email = $3, language = $4, updated_at = $5
		where user_id = $1
	`, userID, p.Name, p.Email, p.Language, time.Now().UTC())
}

func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	return s.exec(ctx, `
		update users set is_active = $2, updated_at = $3 where user_id = $1
	`, userID, active, time.Now().UTC())
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, sql string, arg string) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, sql, arg).Scan(
		&u.UserID,
		&u.Name,
		&u.Phone,
		&u.Email,
		&u.Language,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, mapPgErr(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
