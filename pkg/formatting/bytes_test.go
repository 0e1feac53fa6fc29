package formatting_test

import (
	"testing"

	"github.com/JaimeStill/metainfo/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "512", want: 512},
		{in: "32MB", want: 32 << 20},
		{in: "32 mb", want: 32 << 20},
		{in: "1.5GB", want: 1536 << 20},
		{in: "4KB", want: 4096},
		{in: "", wantErr: true},
		{in: "MB", wantErr: true},
		{in: "10 parsecs", wantErr: true},
		{in: "-5MB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{0, 1, "0 B"},
		{1023, 2, "1023 B"},
		{1024, 0, "1 KB"},
		{1536, 1, "1.5 KB"},
		{5 << 20, 2, "5.00 MB"},
		{3 << 40, 0, "3 TB"},
		{1 << 50, 0, "1024 TB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
			t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
		}
	}
}
