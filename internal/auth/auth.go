// Package auth implements spec.md §4.7: user accounts with scrypt-hashed
// passwords, opaque session tokens realized as HMAC-signed JWTs, and the
// authorize() gate every other engine operation runs through. Password
// hashing is grounded on core/auth/auth.go's HashPassword/
// CheckPasswordHash pair, generalized from bcrypt to scrypt per spec.md
// §4.7's explicit "scrypt-hashed" requirement; session tokens use
// github.com/golang-jwt/jwt/v5, already a direct dependency of the
// teacher's go.mod though unused in its source.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16

	defaultTokenTTL = 30 * 24 * time.Hour
)

// Service is the User & Auth service of spec.md §4.7.
type Service struct {
	catalog    *catalog.Store
	signingKey []byte
	tokenTTL   time.Duration
	log        *zap.Logger

	revokeMu sync.Mutex
	revoked  map[string]time.Time
}

// New constructs a Service over an already-open catalog Store, signing
// session tokens with signingKey (spec.md §6's
// <data_dir>/secrets/session.key).
func New(catalogStore *catalog.Store, signingKey []byte, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{catalog: catalogStore, signingKey: signingKey, tokenTTL: defaultTokenTTL, log: log}
}

// hashPassword derives a PHC-formatted scrypt hash string for password,
// e.g. "$scrypt$ln=15,r=8,p=1$<salt-b64>$<hash-b64>".
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive scrypt key: %w", err)
	}
	return fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s",
		log2(scryptN), scryptR, scryptP,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func log2(n int) int {
	bits := 0
	for n > 1 {
		n >>= 1
		bits++
	}
	return bits
}

// verifyPassword checks password against a PHC-formatted hash produced by
// hashPassword, in constant time.
func verifyPassword(password, phc string) bool {
	parts := strings.Split(phc, "$")
	if len(parts) != 5 || parts[1] != "scrypt" {
		return false
	}
	var ln, r, p int
	if _, err := fmt.Sscanf(parts[2], "ln=%d,r=%d,p=%d", &ln, &r, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	got, err := scrypt.Key([]byte(password), salt, 1<<ln, r, p, len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// normalizeUsername applies spec.md §4.7's "usernames normalized to NFC"
// rule.
func normalizeUsername(username string) string {
	return norm.NFC.String(username)
}

// CreateUser creates a new user account. Usernames are NFC-normalized and
// compared case-sensitively per spec.md §4.7; password hashing happens
// here so the catalog package never sees a plaintext password.
func (s *Service) CreateUser(ctx context.Context, username, password string, isAdmin bool) (catalog.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return catalog.User{}, sonarerr.InvalidArgument("username", "must not be empty")
	}
	if password == "" {
		return catalog.User{}, sonarerr.InvalidArgument("password", "must not be empty")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return catalog.User{}, sonarerr.Internal(err)
	}
	return s.catalog.UserCreate(ctx, nil, username, hash, isAdmin)
}

// claims is the JWT payload a session token carries: the user's internal
// id as the subject, plus the standard expiry claim.
type claims struct {
	jwt.RegisteredClaims
}

// Login verifies username/password and issues a signed session token
// bound to the user, expiring after the Service's configured TTL.
func (s *Service) Login(ctx context.Context, username, password string) (string, catalog.User, error) {
	username = normalizeUsername(username)
	user, err := s.catalog.UserFindByUsername(ctx, nil, username)
	if err != nil {
		if sonarerr.Is(err, sonarerr.KindNotFound) {
			return "", catalog.User{}, sonarerr.Unauthenticated()
		}
		return "", catalog.User{}, err
	}
	if !verifyPassword(password, user.PasswordHash) {
		return "", catalog.User{}, sonarerr.Unauthenticated()
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", catalog.User{}, err
	}
	return token, user, nil
}

func (s *Service) issueToken(userID int64) (string, error) {
	now := time.Now()
	c := claims{jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", sonarerr.Internal(err)
	}
	return signed, nil
}

// revoked (the Service field above) tracks logged-out tokens until their
// natural expiry, since a signed JWT otherwise remains valid until
// ExpiresAt regardless of Logout. Keyed by the raw token string; spec.md
// §4.7 allows either a session table or a signed token, and this is the
// signed-token rendition of "logout(token) invalidates".

// Authorize validates token and returns the bound user id plus admin
// flag, the gate every operation in spec.md §4.7 runs through.
func (s *Service) Authorize(ctx context.Context, token string) (userID int64, isAdmin bool, err error) {
	if token == "" {
		return 0, false, sonarerr.Unauthenticated()
	}
	if s.isRevoked(token) {
		return 0, false, sonarerr.Unauthenticated()
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Method)
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return 0, false, sonarerr.Unauthenticated()
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return 0, false, sonarerr.Unauthenticated()
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, false, sonarerr.Unauthenticated()
	}
	user, err := s.catalog.UserGet(ctx, nil, id)
	if err != nil {
		return 0, false, sonarerr.Unauthenticated()
	}
	return user.ID, user.IsAdmin, nil
}

// Logout invalidates token before its natural expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	s.revokeMu.Lock()
	defer s.revokeMu.Unlock()
	if s.revoked == nil {
		s.revoked = map[string]time.Time{}
	}
	s.revoked[token] = time.Now().Add(s.tokenTTL)
	return nil
}

func (s *Service) isRevoked(token string) bool {
	s.revokeMu.Lock()
	defer s.revokeMu.Unlock()
	exp, ok := s.revoked[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.revoked, token)
		return false
	}
	return true
}

// RequireAdmin returns sonarerr.PermissionDenied(operation) if isAdmin is
// false, the guard spec.md §4.7 requires for UserCreate, UserDelete,
// global property writes, and metadata fetches that trigger external
// network calls.
func RequireAdmin(isAdmin bool, operation string) error {
	if !isAdmin {
		return sonarerr.PermissionDenied(operation)
	}
	return nil
}
