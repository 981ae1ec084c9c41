package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"restobill/internal/domain"
)

const (
	userStoreTimeout  = 3 * time.Second
	minUsernameLength = 4
	minPasswordLength = 6
	tokenIssuer       = "restobill"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

// dummyHash is compared against when the username is unknown so a miss costs
// the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("restobill-no-such-user"), bcrypt.DefaultCost)
	return hash
})

// UserStore is the subset of the repository the auth manager reads accounts from.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AuthManager issues HS256 access tokens for accounts held in a UserStore.
// Accounts are read from the store on every call so users created by another
// process can sign in without a restart.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	now      func() time.Time
}

type billingClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(ctx context.Context, secret string, tokenTTL time.Duration, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	a := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
	a.upgradeLegacyPasswords(ctx)
	return a
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := normalizeUsername(req.Username)
	user, ok, err := a.findUser(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(req.Password))
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !a.checkPassword(ctx, user, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(username, user.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims billingClaims
	_, err := jwtlib.ParseWithClaims(raw, &claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Actor{}, errInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := billingClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

// CreateUser validates the request and stores a new active account with a
// bcrypt password. An empty role means cashier.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	username := normalizeUsername(req.Username)
	switch {
	case len(username) < minUsernameLength:
		return domain.UserAccount{}, fmt.Errorf("%w: username must be at least %d characters", domain.ErrInvalidInput, minUsernameLength)
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.UserAccount{}, fmt.Errorf("%w: username must not contain spaces", domain.ErrInvalidInput)
	case len(strings.TrimSpace(req.Password)) < minPasswordLength:
		return domain.UserAccount{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleCashier
	}
	if role != domain.RoleCashier && role != domain.RoleAdmin {
		return domain.UserAccount{}, fmt.Errorf("%w: role %q must be cashier or admin", domain.ErrInvalidInput, req.Role)
	}

	_, exists, err := a.findUser(ctx, username)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if exists {
		return domain.UserAccount{}, fmt.Errorf("%w: username %q already exists", domain.ErrInvalidInput, username)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.UserAccount{
		Username:  username,
		Password:  hash,
		Role:      role,
		Active:    true,
		CreatedAt: a.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, userStoreTimeout)
	defer cancel()
	if err := a.users.CreateUser(ctx, user); err != nil {
		return domain.UserAccount{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ListUsers returns every account sorted by username.
func (a *AuthManager) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, userStoreTimeout)
	defer cancel()

	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slices.SortFunc(users, func(x, y domain.UserAccount) int {
		return strings.Compare(x.Username, y.Username)
	})
	return users, nil
}

func (a *AuthManager) findUser(ctx context.Context, username string) (domain.UserAccount, bool, error) {
	users, err := a.ListUsers(ctx)
	if err != nil {
		return domain.UserAccount{}, false, err
	}
	for _, user := range users {
		if normalizeUsername(user.Username) == username {
			return user, true, nil
		}
	}
	return domain.UserAccount{}, false, nil
}

// checkPassword accepts a bcrypt hash, or a legacy plain-text password which is
// replaced by its hash after a successful match.
func (a *AuthManager) checkPassword(ctx context.Context, user domain.UserAccount, input string) bool {
	if user.Password == "" || strings.TrimSpace(input) == "" {
		return false
	}
	if isPasswordHash(user.Password) {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input)) == nil
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(input)) != 1 {
		return false
	}
	a.storeHash(ctx, user.Username, input)
	return true
}

// upgradeLegacyPasswords hashes any plain-text password found in the store.
func (a *AuthManager) upgradeLegacyPasswords(ctx context.Context) {
	users, err := a.ListUsers(ctx)
	if err != nil {
		return
	}
	for _, user := range users {
		if user.Password != "" && !isPasswordHash(user.Password) {
			a.storeHash(ctx, user.Username, user.Password)
		}
	}
}

func (a *AuthManager) storeHash(ctx context.Context, username, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, userStoreTimeout)
	defer cancel()
	_ = a.users.UpdateUserPassword(ctx, username, hash)
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
