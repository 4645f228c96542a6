package cmd

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/andresmejia3/harris/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDBURL(t *testing.T) {
	for _, k := range []string{"HARRIS_DB", "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_PORT"} {
		t.Setenv(k, "")
	}

	assert.Equal(t, "postgres://localhost:5432/harris", resolveDBURL("", ""))
	assert.Equal(t, "postgres://file/db", resolveDBURL("", "postgres://file/db"))

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "corners")
	assert.Equal(t, "postgres://u:p@db:5432/corners", resolveDBURL("", ""))
	t.Setenv("POSTGRES_PORT", "6543")
	assert.Equal(t, "postgres://u:p@db:6543/corners", resolveDBURL("", ""))

	// The config file beats POSTGRES_*, HARRIS_DB beats the file, the flag beats everything
	assert.Equal(t, "postgres://file/db", resolveDBURL("", "postgres://file/db"))
	t.Setenv("HARRIS_DB", "postgres://env/db")
	assert.Equal(t, "postgres://env/db", resolveDBURL("", "postgres://file/db"))
	assert.Equal(t, "postgres://flag/db", resolveDBURL("postgres://flag/db", "postgres://file/db"))
}

func TestNeedsDB(t *testing.T) {
	assert.True(t, needsDB(listCmd))
	assert.True(t, needsDB(showCmd))
	assert.True(t, needsDB(resetCmd))
	assert.False(t, needsDB(gradientCmd))
	assert.False(t, needsDB(statsCmd))

	c := &cobra.Command{Use: "x"}
	var persist bool
	c.Flags().BoolVar(&persist, "persist", false, "")
	assert.False(t, needsDB(c))
	require.NoError(t, c.Flags().Set("persist", "true"))
	assert.True(t, needsDB(c))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"detect", "gradient", "stats", "list", "show", "reset"} {
		assert.Truef(t, names[want], "missing command %s", want)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  y  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := confirm(bufio.NewReader(strings.NewReader(tt.input)), &out, "Drop?")
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Drop? [y/N]") {
			t.Errorf("prompt not written, got %q", out.String())
		}
	}
}

func TestPrintDetections(t *testing.T) {
	var empty bytes.Buffer
	printDetections(&empty, nil)
	assert.Contains(t, empty.String(), "No detections")

	id := uuid.New()
	var out bytes.Buffer
	printDetections(&out, []store.Detection{{
		ID: id, Path: "/img/a.png", Width: 640, Height: 480, KernelSize: 5, K: 0.05,
		Formula: "compat", CornerCount: 12, MaxResponse: 3.5, CreatedAt: time.Now(),
	}})
	s := out.String()
	assert.Contains(t, s, id.String())
	assert.Contains(t, s, "/img/a.png")
	assert.Contains(t, s, "640x480")
	assert.Contains(t, s, "5x5")
}

func TestPrintCorners(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printCorners(&out, nil, true))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	require.NoError(t, printCorners(&out, nil, false))
	assert.Contains(t, out.String(), "No corners")

	out.Reset()
	require.NoError(t, printCorners(&out, []harris.Corner{{X: 3, Y: 4, Score: 1.5}}, false))
	assert.Contains(t, out.String(), "SCORE")
	assert.Contains(t, out.String(), "1.5")
}
