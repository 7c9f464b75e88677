package browser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		wantTitle string
		wantText  string
		truncated bool
	}{
		{
			name: "drops scripts and styles",
			input: `<html>
				<head>
					<title>Login</title>
					<script>alert('evil');</script>
					<style>body { color: red; }</style>
				</head>
				<body>
					<h1>Welcome back</h1>
					<p>Enter   your
					token.</p>
					<noscript>No JS</noscript>
				</body>
			</html>`,
			maxLength: 512,
			wantTitle: "Login",
			wantText:  "Welcome back | Enter your token.",
		},
		{
			name:      "inline elements stay on one line",
			input:     `<html><body><div>Status: <span>Connected</span></div><button>Login</button></body></html>`,
			maxLength: 512,
			wantText:  "Status: Connected | Login",
		},
		{
			name:      "truncates long text",
			input:     `<html><body><p>` + strings.Repeat("a", 100) + `</p></body></html>`,
			maxLength: 10,
			wantText:  strings.Repeat("a", 10),
			truncated: true,
		},
		{
			name:      "truncates on a character boundary",
			input:     `<html><body><p>` + strings.Repeat("é", 10) + `</p></body></html>`,
			maxLength: 5,
			wantText:  "éé",
			truncated: true,
		},
		{
			name:      "first title wins",
			input:     `<html><head><title>  Extension
				Dashboard </title></head><body><svg><title>icon</title></svg><p>Connected</p></body></html>`,
			maxLength: 512,
			wantTitle: "Extension Dashboard",
			wantText:  "Connected",
		},
		{
			name:      "empty document",
			input:     ``,
			maxLength: 512,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := pageText(tt.input, tt.maxLength)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, snap.Title)
			assert.Equal(t, tt.wantText, snap.Text)
			assert.Equal(t, tt.truncated, snap.Truncated)
			assert.True(t, utf8.ValidString(snap.Text))
		})
	}
}

func TestSnapshotString(t *testing.T) {
	snap := &Snapshot{URL: "https://app.example.com/", Title: "Dashboard", Text: "Hello", Truncated: true}
	assert.Equal(t, `url=https://app.example.com/ title="Dashboard" text="Hello..."`, snap.String())
}
