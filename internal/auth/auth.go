package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/drinkshop/drinkshop-api/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleManager  = "manager"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("missing or expired session")
)

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Identity is what the core needs from auth: who is calling and whether
// they are staff.
type Identity struct {
	UserID int64
	Role   string
}

func (id Identity) IsStaff() bool {
	return id.Role == RoleStaff || id.Role == RoleManager
}

type Service struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Login checks the password hash and opens a Redis-backed bearer session.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	var u User
	var hash string
	err := s.DB.QueryRow(ctx, `SELECT id, email, name, role, password_hash FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	key := fmt.Sprintf(redisx.KeySession, token)
	if err := s.Redis.Set(ctx, key, sessionValue(u.ID, u.Role), redisx.TTLSession).Err(); err != nil {
		return "", User{}, err
	}
	return token, u, nil
}

// Resolve maps a bearer token to the identity stored in Redis.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	key := fmt.Sprintf(redisx.KeySession, token)
	v, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Identity{}, ErrNoSession
	}
	if err != nil {
		return Identity{}, err
	}
	return parseSessionValue(v)
}

func sessionValue(userID int64, role string) string {
	return fmt.Sprintf("%d:%s", userID, role)
}

func parseSessionValue(v string) (Identity, error) {
	idPart, role, ok := strings.Cut(v, ":")
	if !ok {
		return Identity{}, fmt.Errorf("malformed session value %q", v)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("malformed session value %q", v)
	}
	return Identity{UserID: id, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
