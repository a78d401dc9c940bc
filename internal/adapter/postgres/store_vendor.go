package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/settings"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/domain/vendor"
)

func (s *Store) ListVendors(ctx context.Context) ([]vendor.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, contact_name, created_at FROM vendors ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []vendor.Vendor
	for rows.Next() {
		var v vendor.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.ContactName, &v.CreatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (s *Store) GetVendor(ctx context.Context, id string) (*vendor.Vendor, error) {
	var v vendor.Vendor
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, contact_name, created_at FROM vendors WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &v.Email, &v.ContactName, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("vendor %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}

func (s *Store) CreateVendor(ctx context.Context, req vendor.CreateRequest) (*vendor.Vendor, error) {
	var v vendor.Vendor
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vendors (name, email, contact_name) VALUES ($1, $2, $3)
		 RETURNING id, name, email, contact_name, created_at`,
		req.Name, req.Email, req.ContactName).
		Scan(&v.ID, &v.Name, &v.Email, &v.ContactName, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create vendor: %w", err)
	}
	return &v, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	var u user.User
	var vendorID *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, vendor_id, enabled, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &vendorID, &u.Enabled, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if vendorID != nil {
		u.VendorID = *vendorID
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, role, vendor_id, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		u.ID, u.Email, u.Name, u.Role, nullIfEmpty(u.VendorID), u.Enabled).
		Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) CreateAPIKey(ctx context.Context, key *user.APIKey) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (id, user_id, name, prefix, key_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		key.ID, key.UserID, key.Name, key.Prefix, key.Hash).
		Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *Store) ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]user.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, prefix, key_hash, created_at, last_used_at
		 FROM api_keys WHERE prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []user.APIKey
	for rows.Next() {
		var k user.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.Hash,
			&k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (settings.Procurement, error) {
	var p settings.Procurement
	var windowSeconds int64
	err := s.pool.QueryRow(ctx,
		`SELECT committee_quorum, standby_depth, response_window_seconds
		 FROM procurement_settings WHERE id = 1`).
		Scan(&p.CommitteeQuorum, &p.StandbyDepth, &windowSeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Defaults(), nil
		}
		return p, fmt.Errorf("get settings: %w", err)
	}
	p.ResponseWindow = time.Duration(windowSeconds) * time.Second
	return p, nil
}

func (s *Store) UpdateSettings(ctx context.Context, p settings.Procurement) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE procurement_settings
		 SET committee_quorum = $1, standby_depth = $2, response_window_seconds = $3
		 WHERE id = 1`,
		p.CommitteeQuorum, p.StandbyDepth, int64(p.ResponseWindow/time.Second))
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
