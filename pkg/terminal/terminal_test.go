package terminal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/shared"
	"github.com/antibyte/retrocalc/pkg/transcript"
)

func newTestServer(t *testing.T, store *transcript.Store) (*TerminalHandler, *httptest.Server) {
	t.Helper()
	h := NewTerminalHandler(store, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.HandleFunc("/api/transcript", auth.RequireSessionToken(h.HandleTranscript))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})
	return h, srv
}

func newToken(t *testing.T) (string, string) {
	t.Helper()
	sessionID := uuid.New().String()
	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}
	return sessionID, token
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg shared.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func connect(t *testing.T, srv *httptest.Server) (*websocket.Conn, string, string) {
	t.Helper()
	sessionID, token := newToken(t)
	conn, _, err := dial(t, srv, token)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := readMessage(t, conn)
	if hello.Type != shared.MessageTypeSession || hello.SessionID != sessionID {
		t.Fatalf("first message = %+v, want session message", hello)
	}
	return conn, sessionID, token
}

func TestWebSocketSession(t *testing.T) {
	_, srv := newTestServer(t, nil)
	conn, _, _ := connect(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("1 + 2\n\nx = 3\nx * 2\nhex ans")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	want := []struct {
		input   string
		content string
	}{
		{"1 + 2", "3"},
		{"x = 3", "x = 3"},
		{"x * 2", "6"},
		{"hex ans", "0x6"},
	}
	for _, w := range want {
		msg := readMessage(t, conn)
		if msg.Type != shared.MessageTypeOutput || msg.Content != w.content || msg.Input != w.input {
			t.Errorf("message = %+v, want output %q for %q", msg, w.content, w.input)
		}
	}

	// State survives across frames.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("x + ans")); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Content != "9" {
		t.Errorf("x + ans = %q, want 9", msg.Content)
	}
}

func TestWebSocketErrors(t *testing.T) {
	_, srv := newTestServer(t, nil)
	conn, _, _ := connect(t, srv)

	tests := []struct {
		input string
		kind  string
		text  string
	}{
		{"1 / 0", "math error", "division by zero"},
		{"nope", "unassigned variable", "No value assigned to nope"},
		{"1 $ 1", "lexical error", "Lexical error: unexpected character '$'"},
		{"align 3 1", "alignment error", "3 is not a power of two"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.input)); err != nil {
			t.Fatal(err)
		}
		msg := readMessage(t, conn)
		if msg.Type != shared.MessageTypeError || msg.Kind != tt.kind || msg.Content != tt.text {
			t.Errorf("%q: message = %+v", tt.input, msg)
		}
		if msg.Input != tt.input {
			t.Errorf("%q: input echoed as %q", tt.input, msg.Input)
		}
	}
}

func TestWebSocketExit(t *testing.T) {
	h, srv := newTestServer(t, nil)
	conn, sessionID, _ := connect(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("1\nexit\n2")); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Content != "1" {
		t.Errorf("first output = %+v", msg)
	}
	if msg := readMessage(t, conn); msg.Type != shared.MessageTypeExit {
		t.Errorf("expected exit message, got %+v", msg)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.Clients().HasClient(sessionID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.Clients().HasClient(sessionID) {
		t.Error("client should be removed after exit")
	}
}

func TestWebSocketRejectsBadTokens(t *testing.T) {
	_, srv := newTestServer(t, nil)

	for _, token := range []string{"", "invalid.token.here"} {
		_, resp, err := dial(t, srv, token)
		if err == nil {
			t.Fatalf("token %q: dial should fail", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: response = %v, want 401", token, resp)
		}
	}
}

func TestWebSocketDuplicateSession(t *testing.T) {
	_, srv := newTestServer(t, nil)
	sessionID, token := newToken(t)

	conn, _, err := dial(t, srv, token)
	if err != nil {
		t.Fatalf("first dial failed: %v", err)
	}
	defer conn.Close()
	if msg := readMessage(t, conn); msg.SessionID != sessionID {
		t.Fatalf("unexpected greeting %+v", msg)
	}

	_, resp, err := dial(t, srv, token)
	if err == nil {
		t.Fatal("second connection for the same session should be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("response = %v, want 409", resp)
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	store, err := transcript.Open(filepath.Join(t.TempDir(), "t.db"))
	if err != nil {
		t.Fatalf("transcript.Open failed: %v", err)
	}
	defer store.Close()

	_, srv := newTestServer(t, store)
	conn, sessionID, token := connect(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("a = 7\na / 0")); err != nil {
		t.Fatal(err)
	}
	readMessage(t, conn)
	readMessage(t, conn)

	get := func(query, bearer string) *http.Response {
		req, _ := http.NewRequest("GET", srv.URL+"/api/transcript"+query, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		return resp
	}

	resp := get("", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var entries []transcript.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Input != "a = 7" || entries[0].Output != "a = 7" || entries[0].Failed {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if !entries[1].Failed || entries[1].SessionID != sessionID {
		t.Errorf("entry 1 = %+v", entries[1])
	}

	other := get("?session="+uuid.New().String(), token)
	other.Body.Close()
	if other.StatusCode != http.StatusForbidden {
		t.Errorf("foreign session: status = %d, want 403", other.StatusCode)
	}

	anon := get("", "")
	anon.Body.Close()
	if anon.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", anon.StatusCode)
	}
}

func TestTranscriptDisabled(t *testing.T) {
	_, srv := newTestServer(t, nil)
	_, token := newToken(t)

	req, _ := http.NewRequest("GET", srv.URL+"/api/transcript", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
