package datefmt_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/JaimeStill/metainfo/pkg/datefmt"
)

var fixed = time.Date(2026, time.March, 7, 9, 5, 3, 0, time.Local)

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "date directory", in: "%Y-%m-%d", want: "2026-03-07"},
		{name: "prefix with date", in: "ComfyUI_%Y%m%d", want: "ComfyUI_20260307"},
		{name: "separated runs", in: "%H:%M", want: "09:05"},
		{name: "nested path", in: "renders/%Y/%m", want: "renders/2026/03"},
		{name: "percent escape", in: "100%%", want: "100%"},
		{name: "no directives", in: "ComfyUI", want: "ComfyUI"},
		{name: "empty", in: "", want: ""},
		{name: "unmatched verb passes through", in: "batch_%Q", want: "batch_%Q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := datefmt.Expand(tt.in, fixed); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandStrayPercent(t *testing.T) {
	// A run ending in a lone '%' cannot be formatted and is kept as written.
	if got := datefmt.Expand("%Y%", fixed); got != "%Y%" {
		t.Errorf("Expand = %q, want %%Y%%", got)
	}
}

func TestNowDateShape(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	if got := datefmt.Now("%Y-%m-%d"); !pattern.MatchString(got) {
		t.Errorf("Now = %q, want YYYY-MM-DD", got)
	}
}

func TestContains(t *testing.T) {
	if !datefmt.Contains("out_%Y") {
		t.Error("expected directive in out_%Y")
	}
	if datefmt.Contains("out_plain") {
		t.Error("unexpected directive in out_plain")
	}
}

func TestExpandExcept(t *testing.T) {
	keep := []string{"%batch_num%", "%width%"}

	tests := []struct {
		in   string
		want string
	}{
		{"img_%batch_num%", "img_%batch_num%"},
		{"%Y_%batch_num%_%width%", "2026_%batch_num%_%width%"},
		{"%batch_num%%d", "%batch_num%07"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := datefmt.ExpandExcept(tt.in, fixed, keep...); got != tt.want {
			t.Errorf("ExpandExcept(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Without protection the directive run swallows the placeholder.
	if got := datefmt.Expand("%batch_num%", fixed); got == "%batch_num%" {
		t.Errorf("Expand(%%batch_num%%) = %q, expected the placeholder to be consumed", got)
	}
}
