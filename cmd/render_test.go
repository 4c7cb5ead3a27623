package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/config"
	"github.com/rubiojr/kallitechnia/pkg/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		CMSURL: "https://cms.example.org",
		Tenant: "kallitechnia",
		Site:   config.SiteInfo{Name: "Καλλιτεχνία"},
	}
}

func TestSectionsOf(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		err   bool
	}{
		{"bare array", `[{"blockType":"kallitechnia.quote"}]`, 1, false},
		{"page document", `{"title":"x","sections":[{},{}]}`, 2, false},
		{"list response", `{"docs":[{"sections":[{}]}]}`, 1, false},
		{"no sections", `{"title":"x"}`, 0, true},
		{"invalid json", `{`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := sectionsOf([]byte(tt.input))
			if tt.err {
				if err == nil {
					t.Fatal("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			var sections []json.RawMessage
			if err := json.Unmarshal(raw, &sections); err != nil {
				t.Fatalf("Result is not an array: %v", err)
			}
			if len(sections) != tt.want {
				t.Errorf("Expected %d sections, got %d", tt.want, len(sections))
			}
		})
	}
}

func TestRenderFile(t *testing.T) {
	input := `[
		{"blockType":"kallitechnia.quote","text":"Η γυμναστική είναι τρόπος ζωής"},
		{"blockType":"other.quote","text":"ξένο"}
	]`

	var out bytes.Buffer
	if err := renderFile(context.Background(), &out, testConfig(), []byte(input), false, false); err != nil {
		t.Fatalf("renderFile failed: %v", err)
	}
	if !strings.Contains(out.String(), "Η γυμναστική είναι τρόπος ζωής") {
		t.Errorf("Quote missing from output: %s", out.String())
	}
	if strings.Contains(out.String(), "ξένο") {
		t.Error("Block of another tenant was rendered")
	}

	out.Reset()
	if err := renderFile(context.Background(), &out, testConfig(), []byte(input), false, true); err != nil {
		t.Fatalf("renderFile failed: %v", err)
	}
	var res blocks.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("Output is not a JSON result: %v", err)
	}
	if res.Rendered != 1 || len(res.Skipped) != 1 {
		t.Errorf("Expected 1 rendered and 1 skipped, got %d and %d", res.Rendered, len(res.Skipped))
	}
	if res.Skipped[0].Reason != blocks.ReasonTenantMismatch {
		t.Errorf("Unexpected skip reason %q", res.Skipped[0].Reason)
	}
}

func TestFormatInspection(t *testing.T) {
	sections := []json.RawMessage{
		json.RawMessage(`{"id":"a1","blockType":"kallitechnia.hero","title":"Καλώς ήρθατε"}`),
		json.RawMessage(`{"title":"χωρίς τύπο"}`),
	}
	res := blocks.Result{
		PassID:   "pass-1",
		Rendered: 1,
		Skipped:  []blocks.Skip{{Index: 1, Reason: blocks.ReasonMissingKind}},
	}

	out := formatInspection(testConfig(), "Homepage", sections, res)
	for _, want := range []string{
		"ΚΑΛΛΙΤΕΧΝΙΑ",
		"2 sections: 1 rendered, 1 skipped",
		"#0 kallitechnia.hero",
		"Καλώς ήρθατε",
		"(no blockType)",
		"Missing Blocktype",
		"ID: a1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}

	empty := formatInspection(testConfig(), "Homepage", nil, blocks.Result{})
	if !strings.Contains(empty, "No sections on this page.") {
		t.Errorf("Unexpected empty report: %s", empty)
	}
}

func TestFormatSnapshots(t *testing.T) {
	var out bytes.Buffer
	formatSnapshots(&out, nil)
	if !strings.Contains(out.String(), "No snapshots stored yet.") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	store, err := storage.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "homepage:/api/homepages", []byte(strings.Repeat("x", 2048))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	snapshots, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	out.Reset()
	formatSnapshots(&out, snapshots)
	for _, want := range []string{"homepage:/api/homepages", "2.0 KiB", "zstd", "Total snapshots: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out.String())
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int]string{
		512:         "512 B",
		2048:        "2.0 KiB",
		3 << 20:     "3.0 MiB",
		1536 * 1024: "1.5 MiB",
	}
	for n, want := range tests {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Now()); got != "just now" {
		t.Errorf("Expected just now, got %q", got)
	}
	if got := formatTime(time.Now().Add(-2 * time.Hour)); got != "2 hours ago" {
		t.Errorf("Expected 2 hours ago, got %q", got)
	}
}
