package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "opsdesk-test")

	token, err := manager.Generate("user-123", "maria", "admin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID() != "user-123" {
		t.Errorf("subject = %q, want user-123", claims.UserID())
	}
	if claims.Username != "maria" {
		t.Errorf("username = %q, want maria", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestJWTManager_Verify_AllFailuresCollapse(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "opsdesk-test")

	expired := func() string {
		claims := &Claims{
			Role: "staff",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("signing expired token: %v", err)
		}
		return token
	}()

	wrongKey := func() string {
		token, err := NewJWTManager("other-secret", time.Hour, "opsdesk-test").Generate("user-1", "x", "staff")
		if err != nil {
			t.Fatalf("signing with other secret: %v", err)
		}
		return token
	}()

	wrongAlg := func() string {
		// alg=none tokens must never verify
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("signing none token: %v", err)
		}
		return signed
	}()

	cases := map[string]string{
		"missing":           "",
		"whitespace":        "   ",
		"malformed":         "not.a.token",
		"expired":           expired,
		"signature invalid": wrongKey,
		"wrong algorithm":   wrongAlg,
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := manager.Verify(token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Verify(%q) error = %v, want ErrUnauthenticated", name, err)
			}
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	token, err := TokenFromHeader("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Errorf("TokenFromHeader = (%q, %v), want (abc123, nil)", token, err)
	}

	if _, err := TokenFromHeader("Basic abc123"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("non-bearer scheme should be rejected, got %v", err)
	}
	if _, err := TokenFromHeader(""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty header should be rejected, got %v", err)
	}
}

func TestTokenFromRequest_QueryFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	token, err := TokenFromRequest(r)
	if err != nil || token != "from-query" {
		t.Fatalf("TokenFromRequest = (%q, %v), want (from-query, nil)", token, err)
	}

	r = httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	token, err = TokenFromRequest(r)
	if err != nil || token != "from-header" {
		t.Fatalf("header should win over query, got (%q, %v)", token, err)
	}
}

func TestRequireRole(t *testing.T) {
	admin := &Claims{Role: "admin"}
	staff := &Claims{Role: "staff"}

	if err := RequireRole(admin, RoleAdmin); err != nil {
		t.Errorf("admin should satisfy RoleAdmin: %v", err)
	}
	if err := RequireRole(staff, RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff must not satisfy RoleAdmin, got %v", err)
	}
	if err := RequireRole(nil, RoleStaff); !errors.Is(err, ErrForbidden) {
		t.Errorf("nil claims must be forbidden, got %v", err)
	}
}

func TestNormalizeRole_UnknownDefaultsToStaff(t *testing.T) {
	if got := NormalizeRole("superuser"); got != "staff" {
		t.Errorf("NormalizeRole(superuser) = %q, want staff", got)
	}
	if got := NormalizeRole(" ADMIN "); got != "admin" {
		t.Errorf("NormalizeRole( ADMIN ) = %q, want admin", got)
	}
}
