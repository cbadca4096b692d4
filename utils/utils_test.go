package utils

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{900 * time.Nanosecond, "0.9μs"},
		{12500 * time.Microsecond, "12.5ms"},
		{3200 * time.Millisecond, "3.2s"},
		{119 * time.Second, "1m 59s"},
		{4*time.Minute + 5*time.Second + 900*time.Millisecond, "4m 05s"},
		{2*time.Hour + 10*time.Minute + 59*time.Second, "2h 10m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		950:       "950",
		12_345:    "12.3k",
		4_500_000: "4.5M",
		-2_000:    "-2.0k",
	}
	for n, want := range tests {
		if got := FormatCount(n); got != want {
			t.Errorf("FormatCount(%d) = %q, want %q", n, got, want)
		}
	}
}

type tab int

func TestEnumCycling(t *testing.T) {
	const last tab = 2
	if got := GetNextEnum(tab(1), last); got != 2 {
		t.Errorf("next(1) = %d", got)
	}
	if got := GetNextEnum(last, last); got != 0 {
		t.Errorf("next(last) = %d", got)
	}
	if got := GetPrevEnum(tab(0), last); got != last {
		t.Errorf("prev(0) = %d", got)
	}
	if got := GetPrevEnum(tab(2), last); got != 1 {
		t.Errorf("prev(2) = %d", got)
	}
}

func TestCompleteFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"shop.json", "notes.txt", ".hidden.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "configs"), 0755); err != nil {
		t.Fatal(err)
	}

	complete := CompleteFilesByExtension(".json")
	got, directive := complete(&cobra.Command{}, nil, dir+"/")
	want := []string{filepath.Join(dir, "configs") + "/", filepath.Join(dir, "shop.json")}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive %v", directive)
	}

	got, _ = complete(&cobra.Command{}, nil, filepath.Join(dir, "sh"))
	if !slices.Equal(got, []string{filepath.Join(dir, "shop.json")}) {
		t.Errorf("prefix completion: %v", got)
	}
}
