package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

const codeUniqueViolation = "23505"

type Config struct {
	DB          *pgxpool.Pool
	TokenSecret string
	TokenTTL    time.Duration
}

// Service owns accounts and authentication. It resolves every request to a
// single Principal carrying an explicit role tag; there is no separate admin
// account type.
type Service struct {
	db     *pgxpool.Pool
	tokens *tokenIssuer
}

func NewService(c Config) *Service {
	ttl := c.TokenTTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}

	return &Service{
		db:     c.DB,
		tokens: newTokenIssuer(c.TokenSecret, ttl),
	}
}

type RegisterRequest struct {
	Email         string
	Password      string
	FullName      string
	Qualification string
	DateOfBirth   *time.Time
}

// Register creates a learner account. Registering an email twice surfaces
// as an already-exists conflict, backed by the unique constraint on email.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	return s.CreateUser(ctx, CreateUserRequest{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Qualification: req.Qualification,
		DateOfBirth:   req.DateOfBirth,
		Role:          domain.RoleLearner,
	})
}

type CreateUserRequest struct {
	Email         string
	Password      string
	FullName      string
	Qualification string
	DateOfBirth   *time.Time
	Role          domain.Role
}

// CreateUser inserts an account with an explicit role. Self-registration
// goes through Register; admins use this directly.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	u := &domain.User{
		UserID:        id.String(),
		Email:         req.Email,
		FullName:      req.FullName,
		Qualification: req.Qualification,
		DateOfBirth:   req.DateOfBirth,
		Role:          req.Role,
		Active:        true,
		CreateTime:    time.Now().UTC(),
	}

	const stmt = `
INSERT INTO users (user_id, email, password_hash, full_name, qualification, date_of_birth, role, is_active, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = s.db.Exec(ctx, stmt,
		u.UserID, u.Email, string(hash), u.FullName, u.Qualification, u.DateOfBirth, u.Role, u.Active, u.CreateTime)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("email is already registered"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResponse struct {
	Token string
	User  domain.User
}

// Login verifies credentials and issues a signed token for the principal.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	u, hash, err := s.getUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, badCredentials(err)
		}
		return nil, err
	}

	if !u.Active {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("account is deactivated"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, badCredentials(err)
	}

	token, err := s.tokens.issue(domain.Principal{
		UserID: u.UserID,
		Email:  u.Email,
		Role:   u.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResponse{Token: token, User: *u}, nil
}

func badCredentials(cause error) error {
	return errors.New(errors.CodeUnauthenticated,
		errors.WithMessagef("invalid credentials"),
		errors.WithCause(cause))
}

// Authenticate parses a bearer token back into a Principal.
func (s *Service) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	return s.tokens.parse(token)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	const stmt = `
SELECT user_id, email, full_name, COALESCE(qualification, ''), date_of_birth, role, is_active, create_time
FROM users WHERE user_id = $1;`

	var u domain.User
	err := s.db.QueryRow(ctx, stmt, userID).Scan(
		&u.UserID, &u.Email, &u.FullName, &u.Qualification, &u.DateOfBirth, &u.Role, &u.Active, &u.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", userID))
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &u, nil
}

func (s *Service) getUserByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	const stmt = `
SELECT user_id, email, password_hash, full_name, COALESCE(qualification, ''), date_of_birth, role, is_active, create_time
FROM users WHERE email = $1;`

	var (
		u    domain.User
		hash string
	)
	err := s.db.QueryRow(ctx, stmt, email).Scan(
		&u.UserID, &u.Email, &hash, &u.FullName, &u.Qualification, &u.DateOfBirth, &u.Role, &u.Active, &u.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, "", errors.New(errors.CodeNotFound, errors.WithMessagef("user not found"))
	}
	if err != nil {
		return nil, "", fmt.Errorf("select user by email: %w", err)
	}

	return &u, hash, nil
}

// ListUsers returns all accounts, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	const stmt = `
SELECT user_id, email, full_name, COALESCE(qualification, ''), date_of_birth, role, is_active, create_time
FROM users ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.User, error) {
		var u domain.User
		err := r.Scan(&u.UserID, &u.Email, &u.FullName, &u.Qualification, &u.DateOfBirth, &u.Role, &u.Active, &u.CreateTime)
		return u, err
	})
}

type UpdateUserRequest struct {
	UserID        string
	FullName      string
	Qualification string
	DateOfBirth   *time.Time
	Active        bool
	// Password, when non-empty, replaces the stored hash.
	Password string
}

// UpdateUser edits an account's profile fields and active flag. The email
// and role are fixed at creation.
func (s *Service) UpdateUser(ctx context.Context, req UpdateUserRequest) error {
	const (
		stmt = `
UPDATE users SET full_name = $2, qualification = $3, date_of_birth = $4, is_active = $5
WHERE user_id = $1;`
		stmtWithPassword = `
UPDATE users SET full_name = $2, qualification = $3, date_of_birth = $4, is_active = $5, password_hash = $6
WHERE user_id = $1;`
	)

	var (
		tag pgconn.CommandTag
		err error
	)
	if req.Password != "" {
		hash, herr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if herr != nil {
			return fmt.Errorf("hash password: %w", herr)
		}
		tag, err = s.db.Exec(ctx, stmtWithPassword,
			req.UserID, req.FullName, req.Qualification, req.DateOfBirth, req.Active, string(hash))
	} else {
		tag, err = s.db.Exec(ctx, stmt,
			req.UserID, req.FullName, req.Qualification, req.DateOfBirth, req.Active)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", req.UserID))
	}

	return nil
}

// DeleteUser removes an account and its attempt, answer and score rows, in
// dependency order within one transaction.
func (s *Service) DeleteUser(ctx context.Context, userID string) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	stmts := []string{
		`DELETE FROM answers WHERE attempt_id IN (SELECT attempt_id FROM attempts WHERE user_id = $1);`,
		`DELETE FROM attempts WHERE user_id = $1;`,
		`DELETE FROM scores WHERE user_id = $1;`,
	}
	for _, stmt := range stmts {
		if _, err = tx.Exec(ctx, stmt, userID); err != nil {
			return fmt.Errorf("cascade user %s: %w", userID, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE user_id = $1;`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", userID))
	}

	return tx.Commit(ctx)
}

// CountUsers reports total and active account counts.
func (s *Service) CountUsers(ctx context.Context) (total, active int, err error) {
	const stmt = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users;`

	if err := s.db.QueryRow(ctx, stmt).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}

	return total, active, nil
}

// EnsureAdmin creates the configured admin account if it does not exist yet.
// Called once at startup; a concurrent loser of the insert race is fine.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate admin ID: %w", err)
	}

	const stmt = `
INSERT INTO users (user_id, email, password_hash, full_name, role, is_active, create_time)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
ON CONFLICT (email) DO NOTHING;`

	_, err = s.db.Exec(ctx, stmt, id.String(), email, string(hash), "Administrator", domain.RoleAdmin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	return nil
}
