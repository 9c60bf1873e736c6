package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/retrocalc/pkg/configuration"
)

// withAuthConfig installs default configuration with the given overrides
// for the duration of a test.
func withAuthConfig(t *testing.T, overrides map[string]string) {
	t.Helper()
	configuration.UseDefaults()
	for key, value := range overrides {
		configuration.SetString("Authentication", key, value)
	}
	t.Cleanup(configuration.UseDefaults)
}

// TestGenerateSessionID tests session ID generation
func TestGenerateSessionID(t *testing.T) {
	sessionID1 := generateSessionID()
	sessionID2 := generateSessionID()

	if sessionID1 == "" {
		t.Error("Session ID should not be empty")
	}
	if sessionID1 == sessionID2 {
		t.Error("Session IDs should be unique")
	}
	// Session IDs should have UUID length
	if len(sessionID1) != 36 {
		t.Errorf("Session ID length should be 36 characters, got %d", len(sessionID1))
	}
}

// TestJWTTokenGeneration tests JWT token creation and validation
func TestJWTTokenGeneration(t *testing.T) {
	sessionID := "test-session-123"

	token, err := GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Generated token should not be empty")
	}

	claims, err := ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.SessionID != sessionID {
		t.Errorf("Expected session ID %s, got %s", sessionID, claims.SessionID)
	}
}

// TestJWTTokenExpiration tests that expired tokens are rejected
func TestJWTTokenExpiration(t *testing.T) {
	sessionID := "test-session-expire"

	expiredClaims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)), // Expired 1 hour ago
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    tokenIssuer,
			ID:        sessionID,
		},
	}

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims)
	expiredTokenString, err := expiredToken.SignedString([]byte(getJWTSecret()))
	if err != nil {
		t.Fatalf("Failed to create expired token: %v", err)
	}

	if _, err := ValidateSessionToken(expiredTokenString); err == nil {
		t.Error("Expired token should be rejected")
	}
}

// TestTokenSignedWithOtherSecret tests that foreign tokens are rejected
func TestTokenSignedWithOtherSecret(t *testing.T) {
	claims := SessionClaims{
		SessionID: "forged",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    tokenIssuer,
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateSessionToken(forged); err == nil {
		t.Error("token with a foreign signature should be rejected")
	}
}

// TestInvalidToken tests validation of invalid tokens
func TestInvalidToken(t *testing.T) {
	testCases := []string{
		"",                                     // Empty token
		"invalid.token.here",                   // Invalid format
		"eyJ0eXAiOiJKV1QiLCJhbGciOiJIUzI1NiJ9", // Incomplete token
	}

	for _, token := range testCases {
		if _, err := ValidateSessionToken(token); err == nil {
			t.Errorf("Token %s should be invalid", token)
		}
	}
}

func decodeSessionResponse(t *testing.T, body []byte) SessionResponse {
	t.Helper()
	var response SessionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return response
}

// TestSessionCreationHandler tests the session creation endpoint
func TestSessionCreationHandler(t *testing.T) {
	withAuthConfig(t, nil)

	req := httptest.NewRequest("POST", "/api/auth/session", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	HandleCreateSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	response := decodeSessionResponse(t, w.Body.Bytes())
	if !response.Success {
		t.Errorf("Expected success=true, got %v", response.Success)
	}
	if response.SessionID == "" {
		t.Error("Session ID should not be empty")
	}

	claims, err := ValidateSessionToken(response.Token)
	if err != nil {
		t.Fatalf("Issued token should be valid: %v", err)
	}
	if claims.SessionID != response.SessionID {
		t.Errorf("Token session %s does not match response session %s", claims.SessionID, response.SessionID)
	}

	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == TokenCookieName && c.Value == response.Token {
			found = true
		}
	}
	if !found {
		t.Error("session token cookie should be set")
	}
}

func TestSessionCreationHandlerEmptyBody(t *testing.T) {
	withAuthConfig(t, nil)

	req := httptest.NewRequest("POST", "/api/auth/session", nil)
	w := httptest.NewRecorder()
	HandleCreateSession(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestSessionCreationHandlerRejects(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	testCases := []struct {
		name         string
		config       map[string]string
		contentType  string
		body         string
		method       string
		expectedCode int
	}{
		{"wrong method", nil, "", "", "GET", http.StatusMethodNotAllowed},
		{"invalid JSON", nil, "application/json", "invalid json", "POST", http.StatusBadRequest},
		{"guest access disabled", map[string]string{"enable_guest_access": "false"}, "", "", "POST", http.StatusForbidden},
		{"missing password", map[string]string{"password_hash": hash}, "application/json", "{}", "POST", http.StatusUnauthorized},
		{"wrong password", map[string]string{"password_hash": hash}, "application/json", `{"password":"nope"}`, "POST", http.StatusUnauthorized},
		{"correct password", map[string]string{"password_hash": hash}, "application/json", `{"password":"s3cret"}`, "POST", http.StatusOK},
		{"correct form password", map[string]string{"password_hash": hash}, "application/x-www-form-urlencoded", "password=s3cret", "POST", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withAuthConfig(t, tc.config)

			req := httptest.NewRequest(tc.method, "/api/auth/session", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			w := httptest.NewRecorder()
			HandleCreateSession(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, w.Code)
			}
		})
	}
}

func TestCheckAccess(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	withAuthConfig(t, map[string]string{"password_hash": hash})

	if err := CheckAccess("pw"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := CheckAccess("PW"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("error = %v, want ErrWrongPassword", err)
	}
}

// TestTokenValidationHandler tests the token validation endpoint
func TestTokenValidationHandler(t *testing.T) {
	sessionID := "test-session-validate"
	token, err := GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	sources := map[string]func(r *http.Request){
		"header": func(r *http.Request) { r.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token)) },
		"cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token}) },
	}

	for name, attach := range sources {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/validate", nil)
			attach(req)

			w := httptest.NewRecorder()
			HandleTokenValidation(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
			response := decodeSessionResponse(t, w.Body.Bytes())
			if !response.Success || response.SessionID != sessionID {
				t.Errorf("response = %+v", response)
			}
		})
	}
}

// TestTokenValidationHandlerInvalid tests validation with invalid tokens
func TestTokenValidationHandlerInvalid(t *testing.T) {
	testCases := []struct {
		name         string
		token        string
		expectedCode int
	}{
		{"No token", "", http.StatusUnauthorized},
		{"Invalid token", "invalid.token.here", http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/validate", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tc.token))
			}

			w := httptest.NewRecorder()
			HandleTokenValidation(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, w.Code)
			}
		})
	}
}

// TestLogoutHandler tests the logout endpoint
func TestLogoutHandler(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	w := httptest.NewRecorder()
	HandleLogout(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if response := decodeSessionResponse(t, w.Body.Bytes()); !response.Success {
		t.Errorf("Expected success=true, got %v", response.Success)
	}

	found := false
	for _, cookie := range w.Header()["Set-Cookie"] {
		if strings.Contains(cookie, TokenCookieName) &&
			(strings.Contains(cookie, "Max-Age=-1") || strings.Contains(cookie, "Max-Age=0")) {
			found = true
			break
		}
	}
	if !found {
		t.Error("Logout should clear the session token cookie")
	}
}

// TestExtractTokenFromRequest tests token extraction from different sources
func TestExtractTokenFromRequest(t *testing.T) {
	token := "abc.def.ghi"

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if got, err := ExtractTokenFromRequest(req); err != nil || got != token {
		t.Errorf("header: got %q, %v", got, err)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	if got, err := ExtractTokenFromRequest(req); err != nil || got != token {
		t.Errorf("cookie: got %q, %v", got, err)
	}

	req = httptest.NewRequest("GET", "/ws?token="+token, nil)
	if got, err := ExtractTokenFromRequest(req); err != nil || got != token {
		t.Errorf("query: got %q, %v", got, err)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic xyz")
	if _, err := ExtractTokenFromRequest(req); err == nil {
		t.Error("Expected error for non-bearer authorization")
	}

	req = httptest.NewRequest("GET", "/test", nil)
	if got, err := ExtractTokenFromRequest(req); err == nil || got != "" {
		t.Errorf("Expected error when no token present, got %q", got)
	}
}

func TestRequireSessionToken(t *testing.T) {
	token, err := GenerateSessionToken("mw-session")
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := RequireSessionToken(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetSessionIDFromContext(r.Context())
		if claims, ok := GetClaimsFromContext(r.Context()); !ok || claims.SessionID != seen {
			t.Error("claims missing from context")
		}
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/api/transcript?token="+token, nil))
	if w.Code != http.StatusOK || seen != "mw-session" {
		t.Errorf("status %d, session %q", w.Code, seen)
	}

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/api/transcript", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d, want 401", w.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if got := GetClientIP(req); got != "10.0.0.7" {
		t.Errorf("remote addr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := GetClientIP(req); got != "1.2.3.4" {
		t.Errorf("forwarded: got %q", got)
	}
}

// BenchmarkTokenValidation benchmarks token validation performance
func BenchmarkTokenValidation(b *testing.B) {
	token, err := GenerateSessionToken("benchmark-session")
	if err != nil {
		b.Fatalf("Failed to generate token: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateSessionToken(token); err != nil {
			b.Fatalf("Failed to validate token: %v", err)
		}
	}
}
