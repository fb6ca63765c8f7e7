package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	m, err := NewJWTManager("test-secret-that-is-long-enough-123", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	token, expiresAt, err := m.GenerateToken("account-1", "a@x.com")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "account-1" || claims.Email != "a@x.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTManager_RejectsInvalidTokens(t *testing.T) {
	m, _ := NewJWTManager("secret-a", time.Hour)
	other, _ := NewJWTManager("secret-b", time.Hour)
	foreign, _, _ := other.GenerateToken("account-1", "a@x.com")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
	})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	expired, _ := NewJWTManager("secret-a", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, _ := expired.GenerateToken("account-1", "a@x.com")

	tests := []struct {
		name  string
		token string
	}{
		{name: "別の秘密鍵で署名", token: foreign},
		{name: "alg=none", token: noneToken},
		{name: "期限切れ", token: expiredToken},
		{name: "不正な形式", token: "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	if _, err := NewJWTManager("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewJWTManager("s", 0); err == nil {
		t.Error("expected error for non-positive TTL")
	}
}
