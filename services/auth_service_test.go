package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"

	"tour-server/models"
	"tour-server/utils/errors"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	id := primitive.NewObjectID()

	token, err := issuer.Sign(id)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ID != id.Hex() {
		t.Errorf("id = %s, want %s", claims.ID, id.Hex())
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Errorf("exp - iat = %v", claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	}
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	id := primitive.NewObjectID()

	expired := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _ := expired.Sign(id)

	otherSecret, _ := NewTokenIssuer("other-secret", time.Hour).Sign(id)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: id.Hex()}).SignedString([]byte("test-secret"))

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		ID: id.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	cases := map[string]string{
		"expired":      expiredToken,
		"wrong secret": otherSecret,
		"no exp":       noExp,
		"wrong alg":    hs512,
		"malformed":    "not.a.token",
		"empty":        "",
	}
	for name, token := range cases {
		if _, err := issuer.Parse(token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestHashResetToken(t *testing.T) {
	a, b := hashResetToken("abc"), hashResetToken("abc")
	if a != b || len(a) != 64 || a == "abc" {
		t.Errorf("hash = %q", a)
	}
}

type recordingNotifier struct {
	url string
	err error
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ *models.User, resetURL string) error {
	n.url = resetURL
	return n.err
}

func userDoc(id primitive.ObjectID, email, hash string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Jonas"},
		{Key: "email", Value: email},
		{Key: "photo", Value: models.DefaultPhoto},
		{Key: "role", Value: "user"},
		{Key: "password", Value: hash},
		{Key: "active", Value: true},
	}
}

func TestAuthService(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	hash, err := bcrypt.GenerateFromPassword([]byte("pass1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	id := primitive.NewObjectID()
	issuer := NewTokenIssuer("test-secret", time.Hour)

	mt.Run("login", func(mt *mtest.T) {
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, LogNotifier{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "natours.users", mtest.FirstBatch, userDoc(id, "jonas@example.com", string(hash))))

		session, err := auth.Login(context.Background(), " Jonas@Example.com ", "pass1234")
		if err != nil {
			mt.Fatalf("Login: %v", err)
		}
		claims, err := issuer.Parse(session.Token)
		if err != nil || claims.ID != id.Hex() {
			mt.Errorf("claims = %+v, err = %v", claims, err)
		}
	})

	mt.Run("wrong password", func(mt *mtest.T) {
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, LogNotifier{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "natours.users", mtest.FirstBatch, userDoc(id, "jonas@example.com", string(hash))))

		_, err := auth.Login(context.Background(), "jonas@example.com", "nope12345")
		if err != ErrIncorrectCredentials {
			mt.Errorf("err = %v", err)
		}
	})

	mt.Run("unknown email", func(mt *mtest.T) {
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, LogNotifier{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "natours.users", mtest.FirstBatch))

		_, err := auth.Login(context.Background(), "ghost@example.com", "pass1234")
		if err != ErrIncorrectCredentials {
			mt.Errorf("err = %v", err)
		}
	})

	mt.Run("missing credentials", func(mt *mtest.T) {
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, LogNotifier{})
		if got := errors.Translate(mustErr(auth.Login(context.Background(), "", ""))); got.Status != http.StatusBadRequest {
			mt.Errorf("status = %d", got.Status)
		}
	})

	mt.Run("forgot password clears token when delivery fails", func(mt *mtest.T) {
		notifier := &recordingNotifier{err: context.DeadlineExceeded}
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, notifier)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "natours.users", mtest.FirstBatch, userDoc(id, "jonas@example.com", string(hash))),
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}},
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}},
		)

		err := auth.ForgotPassword(context.Background(), "jonas@example.com", "http://localhost/api/v1/users/resetPassword/")
		if got := errors.Translate(err); got.Status != http.StatusInternalServerError {
			mt.Errorf("err = %+v", got)
		}
		if len(notifier.url) <= len("http://localhost/api/v1/users/resetPassword/") {
			mt.Errorf("reset url = %q", notifier.url)
		}
	})

	mt.Run("reset with unknown token", func(mt *mtest.T) {
		auth := NewAuthService(NewUserService(mt.DB, nil), issuer, LogNotifier{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "natours.users", mtest.FirstBatch))

		_, err := auth.ResetPassword(context.Background(), "deadbeef", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
		if err != ErrResetTokenInvalid {
			mt.Errorf("err = %v", err)
		}
	})
}

func mustErr(_ *Session, err error) error {
	return err
}
