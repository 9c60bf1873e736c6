package shared

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

const defaultBanner = `RetroCalc session {{.SessionID}}
Operators: + - * / % ** << >> | & ^ ~  Functions: sqrt sin cos exp  Constant: pi
Commands: bin <expr>, hex <expr>, align <n> <expr>, exit{{if .Variables}}
Variables: {{range $i, $v := .Variables}}{{if $i}}, {{end}}{{$v}}{{end}}{{end}}`

// BannerData holds the values available to the greeting template.
type BannerData struct {
	SessionID string
	Variables []string
}

// Banner renders the greeting sent when a websocket session starts.
type Banner struct {
	tmpl *template.Template
}

// NewBanner returns a banner using the built-in template.
func NewBanner() *Banner {
	return &Banner{tmpl: template.Must(template.New("banner").Parse(defaultBanner))}
}

// LoadBanner parses a custom greeting template from path.
func LoadBanner(path string) (*Banner, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load banner from %s: %w", path, err)
	}
	tmpl, err := template.New("banner").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse banner template: %w", err)
	}
	return &Banner{tmpl: tmpl}, nil
}

// Render fills the template with data.
func (b *Banner) Render(data BannerData) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute banner template: %w", err)
	}
	return buf.String(), nil
}
