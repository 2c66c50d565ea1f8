package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/config"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTIssuer: "https://id.example"})
	user := uuid.New()

	tok, err := svc.IssueToken(user, RoleTeacher, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := claims.UserID()
	if id != user || claims.Role != RoleTeacher {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTIssuer: "https://id.example"})
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTIssuer: "https://id.example"})
	wrongIssuer := NewAuthService(&config.Config{JWTSecret: "s3cret", JWTIssuer: "https://evil.example"})
	user := uuid.New()

	expired, _ := svc.IssueToken(user, RoleStudent, -time.Minute)
	if _, err := svc.ValidateToken(expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expired err = %v", err)
	}

	forged, _ := other.IssueToken(user, RoleStudent, time.Hour)
	if _, err := svc.ValidateToken(forged); err == nil {
		t.Error("token signed with another secret accepted")
	}

	foreign, _ := wrongIssuer.IssueToken(user, RoleStudent, time.Hour)
	if _, err := svc.ValidateToken(foreign); err == nil {
		t.Error("token from another issuer accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": user.String(), "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.ValidateToken(unsigned); err == nil {
		t.Error("unsigned token accepted")
	}

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42", "iss": "https://id.example", "exp": time.Now().Add(time.Hour).Unix(),
	})
	badSub, _ := bad.SignedString([]byte("s3cret"))
	if _, err := svc.ValidateToken(badSub); !errors.Is(err, ErrInvalidSubject) {
		t.Errorf("non-uuid subject err = %v", err)
	}
}
