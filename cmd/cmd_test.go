package cmd

import (
	"bufio"
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/spf13/cobra"
)

func TestValidateWatchFlags(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"Camera (no input)", Options{}, false},
		{"Stdin", Options{InputPath: "-"}, false},
		{"Valid file", Options{InputPath: tmpFile.Name()}, false},
		{"Input file does not exist", Options{InputPath: "nonexistent.mp4"}, true},
		{"Input is directory", Options{InputPath: tmpDir}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateWatchFlags(&tt.opts); (err != nil) != tt.wantErr {
				t.Errorf("validateWatchFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	var o Options
	c := &cobra.Command{Use: "test"}
	c.Flags().StringVar(&o.LedgerPath, "ledger-file", "", "")
	c.Flags().StringVar(&o.CachePath, "cache-file", "", "")
	c.Flags().Float64Var(&o.Tolerance, "tolerance", 0, "")
	c.Flags().DurationVar(&o.SessionCooldown, "session-cooldown", 0, "")

	if err := c.Flags().Parse([]string{"--tolerance", "0.4", "--session-cooldown", "3s"}); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Tolerance:       0.55,
		SessionCooldown: 10 * time.Second,
		CachePath:       "encodings.gob",
		LedgerPath:      "Attendance.csv",
	}
	applyOverrides(c, &o, cfg)

	if cfg.Tolerance != 0.4 || cfg.SessionCooldown != 3*time.Second {
		t.Errorf("Set flags not applied: %+v", cfg)
	}
	// Unset flags keep the environment value even though their zero value differs
	if cfg.LedgerPath != "Attendance.csv" || cfg.CachePath != "encodings.gob" {
		t.Errorf("Unset flags must not override config, got %q %q", cfg.LedgerPath, cfg.CachePath)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := confirm(bufio.NewReader(strings.NewReader(tt.input)), &out, "Delete?")
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if out.String() != "Delete? [y/N]: " {
			t.Errorf("Unexpected prompt %q", out.String())
		}
	}
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")
	if err := os.WriteFile(path, []byte("ALICE,01/01/2024 09:00:00\n"), 0644); err != nil {
		t.Fatal(err)
	}

	removeFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected file to be removed, stat err = %v", err)
	}

	// Missing file is not reported
	removeFile(path)
}

func TestFmtDistance(t *testing.T) {
	if got := fmtDistance(math.Inf(1)); got != "-" {
		t.Errorf("fmtDistance(+Inf) = %q", got)
	}
	if got := fmtDistance(0.41234); got != "0.412" {
		t.Errorf("fmtDistance(0.41234) = %q", got)
	}
}
