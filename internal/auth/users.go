// Package auth looks up users in the shared store and supplies the
// authorization check the arbiter consults before a force-unlock. The
// arbiter only sees the Authorizer interface; richer permission models
// plug in from outside.
package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/identutil"
	"github.com/propsync/propsync/pkg/model"
)

// Authorizer decides whether an identity may force-unlock.
type Authorizer interface {
	CanForceUnlock(ctx context.Context, id model.Identity) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, id model.Identity) (bool, error)

// CanForceUnlock implements Authorizer.
func (f AuthorizerFunc) CanForceUnlock(ctx context.Context, id model.Identity) (bool, error) {
	return f(ctx, id)
}

// Users reads and writes the users table.
type Users struct {
	db *sql.DB
}

// NewUsers creates a user directory over the shared database handle.
func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// CanForceUnlock authorizes administrators only. A deactivated admin
// account loses the privilege.
func (u *Users) CanForceUnlock(ctx context.Context, id model.Identity) (bool, error) {
	var isAdmin, isActive bool
	err := u.db.QueryRowContext(ctx,
		`SELECT is_admin, is_active FROM users WHERE id = ?`, id.UserID).
		Scan(&isAdmin, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errclass.ErrStoreUnavailable.WithMessagef("look up user %d: %v", id.UserID, err)
	}
	return isAdmin && isActive, nil
}

// Create adds a user. Usernames are normalized and validated before they
// reach session rows and audit records.
func (u *Users) Create(ctx context.Context, username, displayName string, isAdmin bool) (*model.User, error) {
	normalized, err := identutil.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = normalized
	}

	res, err := u.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, is_admin, is_active) VALUES (?, ?, ?, 1)`,
		normalized, displayName, isAdmin)
	if err != nil {
		if existing, lookErr := u.GetByUsername(ctx, normalized); lookErr == nil && existing != nil {
			return nil, errclass.ErrUserExists.WithMessagef("username %s already exists", normalized)
		}
		return nil, errclass.ErrStoreUnavailable.WithMessagef("create user: %v", err)
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("create user: %v", err)
	}
	return &model.User{ID: uid, Username: normalized, DisplayName: displayName, IsAdmin: isAdmin, IsActive: true}, nil
}

// GetByUsername returns the user, or ErrUserNotFound.
func (u *Users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var usr model.User
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, is_admin, is_active FROM users WHERE username = ?`, username).
		Scan(&usr.ID, &usr.Username, &usr.DisplayName, &usr.IsAdmin, &usr.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errclass.ErrUserNotFound.WithMessagef("no user %q", username)
	}
	if err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("look up user %q: %v", username, err)
	}
	return &usr, nil
}

// List returns all users, active first, then by username.
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.db.QueryContext(ctx,
		`SELECT id, username, display_name, is_admin, is_active FROM users
		 ORDER BY is_active DESC, username ASC`)
	if err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("list users: %v", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var usr model.User
		if err := rows.Scan(&usr.ID, &usr.Username, &usr.DisplayName, &usr.IsAdmin, &usr.IsActive); err != nil {
			return nil, errclass.ErrStoreUnavailable.WithMessagef("scan user: %v", err)
		}
		users = append(users, usr)
	}
	if err := rows.Err(); err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("list users: %v", err)
	}
	return users, nil
}

// Identity builds the arbitration identity for a username on this machine.
func (u *Users) Identity(ctx context.Context, username string) (model.Identity, error) {
	usr, err := u.GetByUsername(ctx, username)
	if err != nil {
		return model.Identity{}, err
	}
	if !usr.IsActive {
		return model.Identity{}, errclass.ErrIdentityInvalid.WithMessagef("user %s is deactivated", username)
	}
	return model.Identity{UserID: usr.ID, Username: usr.Username, Machine: identutil.MachineID()}, nil
}
