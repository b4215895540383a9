package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/auratask/core/internal/domain/entities"
)

const userColumns = `id, email, username, is_anonymous, avatar_url, created_at, updated_at, deleted_at`

var errInvalidCredentials = errors.New("invalid email or password")

// SignInAnonymously creates a guest identity: a user row with no
// credentials, owned entirely by this device until migrated.
func (g *Gateway) SignInAnonymously(ctx context.Context) (*entities.User, error) {
	query := `INSERT INTO users (id, is_anonymous) VALUES ($1, TRUE) RETURNING ` + userColumns

	var user entities.User
	if err := g.db.DB.GetContext(ctx, &user, query, uuid.New()); err != nil {
		return nil, fmt.Errorf("anonymous sign-in: %w", err)
	}
	g.logger.Infow("Anonymous identity created", "user_id", user.ID)
	return &user, nil
}

// SignUp registers an email/password account.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (*entities.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (id, email, password_hash, is_anonymous)
		VALUES ($1, $2, $3, FALSE) RETURNING ` + userColumns

	var user entities.User
	if err := g.db.DB.GetContext(ctx, &user, query, uuid.New(), email, string(hash)); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	g.logger.Infow("User registered", "user_id", user.ID)
	return &user, nil
}

// SignIn authenticates an email/password account.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*entities.User, error) {
	var row struct {
		entities.User
		PasswordHash sql.NullString `db:"password_hash"`
	}
	query := `SELECT ` + userColumns + `, password_hash FROM users
		WHERE email = $1 AND deleted_at IS NULL`
	if err := g.db.DB.GetContext(ctx, &row, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !row.PasswordHash.Valid {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash.String), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	user := row.User
	return &user, nil
}

// SignOut revokes every session issued to the user.
func (g *Gateway) SignOut(ctx context.Context, userID uuid.UUID) error {
	if _, err := g.db.DB.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// GetUser fetches an identity by id.
func (g *Gateway) GetUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	var user entities.User
	if err := g.db.DB.GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: not found", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// IssueToken mints a session JWT for the identity and records the session.
func (g *Gateway) IssueToken(ctx context.Context, user *entities.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"anon": user.IsAnonymous,
		"iss":  g.jwtCfg.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(g.jwtCfg.ExpiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.jwtCfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if _, err := g.db.DB.ExecContext(ctx,
		`INSERT INTO sessions (user_id, expires_at) VALUES ($1, $2)`,
		user.ID, now.Add(g.jwtCfg.ExpiresIn)); err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a session JWT and returns the identity id.
func (g *Gateway) VerifyToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return id, nil
}
