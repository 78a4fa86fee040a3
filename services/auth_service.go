package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"tour-server/models"
	"tour-server/utils/errors"
)

const resetTokenTTL = 10 * time.Minute

var (
	ErrIncorrectCredentials = errors.NewAPIError("INVALID_CREDENTIALS", "Incorrect email or password", http.StatusUnauthorized)
	ErrWrongPassword        = errors.NewAPIError("INVALID_CREDENTIALS", "Your current password is wrong.", http.StatusUnauthorized)
	ErrResetTokenInvalid    = errors.NewAPIError("INVALID_TOKEN", "Token is invalid or has expired", http.StatusBadRequest)
	ErrMissingCredentials   = errors.BadRequest("Please provide email and password!")
)

// Claims is the JWT payload: the user id plus iat and exp.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret  []byte
	expires time.Duration
	now     func() time.Time
}

func NewTokenIssuer(secret string, expires time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expires: expires, now: time.Now}
}

func (t *TokenIssuer) Sign(userID primitive.ObjectID) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expires)),
		},
	})
	return token.SignedString(t.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("token has no iat claim")
	}
	return claims, nil
}

// ResetNotifier delivers a password reset URL to a user.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error
}

// LogNotifier writes reset URLs to the log instead of mailing them.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(_ context.Context, user *models.User, resetURL string) error {
	log.Printf("Password reset for %s: %s", user.Email, resetURL)
	return nil
}

type AuthService struct {
	users    *UserService
	tokens   *TokenIssuer
	notifier ResetNotifier
	now      func() time.Time
}

func NewAuthService(users *UserService, tokens *TokenIssuer, notifier ResetNotifier) *AuthService {
	return &AuthService{users: users, tokens: tokens, notifier: notifier, now: time.Now}
}

// Session is a signed-in user and its token.
type Session struct {
	Token string
	User  *models.User
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError)
	}
	return &Session{Token: token, User: user}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}
	return string(hash), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// hashResetToken is what gets stored; the raw token only goes to the user.
func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) Signup(ctx context.Context, in models.SignupInput) (*Session, error) {
	user, err := models.NewUser(in)
	if err != nil {
		return nil, err
	}
	if user.Password, err = hashPassword(user.Password); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrIncorrectCredentials
		}
		return nil, err
	}
	if !passwordMatches(user.Password, password) {
		return nil, ErrIncorrectCredentials
	}
	return s.session(user)
}

// ForgotPassword stores a hashed reset token and hands the raw one to the
// notifier as part of resetBaseURL. If delivery fails the token is cleared.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetBaseURL string) error {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.NewAPIError("NOT_FOUND", "There is no user with that email address.", http.StatusNotFound)
		}
		return err
	}

	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(raw), s.now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, user, resetBaseURL+raw); err != nil {
		log.Printf("Password reset delivery to %s failed: %v", user.Email, err)
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			log.Printf("Failed to clear reset token of %s: %v", user.ID.Hex(), clearErr)
		}
		return errors.NewAPIError("EMAIL_ERROR", "There was an error sending the email. Try again later!", http.StatusInternalServerError, err.Error())
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, in models.PasswordInput) (*Session, error) {
	user, err := s.users.FindByResetToken(ctx, hashResetToken(rawToken), s.now())
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return s.session(user)
}

// UpdatePassword changes the password of a signed-in user after checking
// the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, current string, in models.PasswordInput) (*Session, error) {
	user, err := s.users.FindWithPassword(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !passwordMatches(user.Password, current) {
		return nil, ErrWrongPassword
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.users.SetPassword(ctx, user.ID, hash, now); err != nil {
		return err
	}
	changed := now.Add(-time.Second)
	user.Password = hash
	user.PasswordChangedAt = &changed
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return nil
}
