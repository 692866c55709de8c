package main

import (
	"image"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fyne.io/fyne/v2/test"

	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/config"
	"github.com/QianXiquq/RankingAnalyzer/src/store"
)

const sampleCSV = `exam,subject,score,total_rank
2024-01-01,math,90,5
2024-01-01,eng,80,5
2024-02-01,math,95,3
2024-03-01,eng,88,
`

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

// TestScreenshots_AllChartsSameSize ensures every chart is written at the configured size.
func TestScreenshots_AllChartsSameSize(t *testing.T) {
	for _, backend := range charts.BackendNames() {
		cfg := config.Default()
		cfg.DataFile = writeCSV(t, sampleCSV)
		cfg.ChartBackend = backend
		cfg.ChartWidth, cfg.ChartHeight = 700, 400
		outDir := t.TempDir()
		if err := RunScreenshotsMode(cfg, outDir); err != nil {
			t.Fatalf("%s: RunScreenshotsMode: %v", backend, err)
		}
		for _, k := range store.ChartKinds() {
			w, h := decodeSize(t, filepath.Join(outDir, k.String()+".png"))
			if abs(w-700) > 2 || abs(h-400) > 2 {
				t.Fatalf("%s %s: size %dx%d want 700x400", backend, k, w, h)
			}
		}
	}
}

func TestScreenshots_NoRankColumnStillWritesPlaceholder(t *testing.T) {
	cfg := config.Default()
	cfg.DataFile = writeCSV(t, "exam,subject,score\nMidterm,math,70\nFinal,math,80\n")
	cfg.ChartWidth, cfg.ChartHeight = 640, 360
	outDir := t.TempDir()
	if err := RunScreenshotsMode(cfg, outDir); err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}
	if w, h := decodeSize(t, filepath.Join(outDir, "rank.png")); w != 640 || h != 360 {
		t.Fatalf("rank placeholder %dx%d", w, h)
	}
}

func TestScreenshots_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.DataFile = filepath.Join(t.TempDir(), "nope.csv")
	if err := RunScreenshotsMode(cfg, t.TempDir()); err == nil {
		t.Fatalf("expected error for missing data file")
	}
}

func TestHoverText(t *testing.T) {
	st := store.New()
	if _, err := st.LoadReader(strings.NewReader(sampleCSV), "sample"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := hoverText(st, store.ChartSubjects, 0); got != "2024-01-01   eng 80   math 90" {
		t.Fatalf("subjects hover=%q", got)
	}
	if got := hoverText(st, store.ChartTotal, 1); got != "2024-02-01   total 95" {
		t.Fatalf("total hover=%q", got)
	}
	if got := hoverText(st, store.ChartRank, 2); got != "2024-03-01   no data" {
		t.Fatalf("rank hover=%q", got)
	}
	if hoverText(st, store.ChartRank, 9) != "" {
		t.Fatalf("out of range should be empty")
	}
}

func TestChartSizeHeadless(t *testing.T) {
	w, h := chartSize(nil)
	if w != charts.DefaultWidth || h != charts.DefaultHeight {
		t.Fatalf("headless size %dx%d", w, h)
	}
	st := &uiState{cfg: config.Config{ChartWidth: 900, ChartHeight: 450}}
	if w, h := chartSize(st); w != 900 || h != 450 {
		t.Fatalf("config size %dx%d", w, h)
	}
}

func TestChartHintPerKind(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range store.ChartKinds() {
		h := chartHint(k)
		if !strings.HasPrefix(h, "Hint: ") || seen[h] {
			t.Fatalf("%s: hint %q", k, h)
		}
		seen[h] = true
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	st := &uiState{app: a, kind: store.ChartRank, backend: "gonum", annotate: false, showHints: true, splitPos: 0.6}
	savePrefs(st)

	got := &uiState{app: a, kind: store.ChartSubjects, backend: "gochart", annotate: true, splitPos: 0.78}
	loadPrefs(got)
	if got.kind != store.ChartRank || got.backend != "gonum" || got.annotate || !got.showHints {
		t.Fatalf("prefs not restored: %+v", got)
	}
	if got.splitPos != 0.6 {
		t.Fatalf("split offset=%v want 0.6", got.splitPos)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
