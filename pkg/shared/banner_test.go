package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultBanner(t *testing.T) {
	out, err := NewBanner().Render(BannerData{SessionID: "abc"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(out, "RetroCalc session abc\n") {
		t.Errorf("banner = %q", out)
	}
	if strings.Contains(out, "Variables:") {
		t.Error("banner without variables should not list them")
	}

	out, err = NewBanner().Render(BannerData{SessionID: "abc", Variables: []string{"x", "y"}})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasSuffix(out, "Variables: x, y") {
		t.Errorf("banner = %q", out)
	}
}

func TestLoadBanner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.txt")
	if err := os.WriteFile(path, []byte("hi {{.SessionID}}"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := LoadBanner(path)
	if err != nil {
		t.Fatalf("LoadBanner failed: %v", err)
	}
	if out, _ := b.Render(BannerData{SessionID: "s1"}); out != "hi s1" {
		t.Errorf("rendered %q", out)
	}

	if _, err := LoadBanner(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMessageTypeString(t *testing.T) {
	if MessageTypeExit.String() != "exit" || MessageType(42).String() != "unknown" {
		t.Error("unexpected MessageType names")
	}
}
