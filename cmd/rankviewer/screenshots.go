package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/config"
	"github.com/QianXiquq/RankingAnalyzer/src/records"
	"github.com/QianXiquq/RankingAnalyzer/src/store"
)

// RunScreenshotsMode renders every chart of cfg.DataFile and writes them as PNGs under
// outDir. It runs headlessly without creating a UI window. Charts without data are written
// as "no data" images so the set is always complete.
func RunScreenshotsMode(cfg config.Config, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	st := store.New()
	if _, err := st.Load(cfg.DataFile); err != nil {
		return err
	}
	base := cfg.ChartOptions()
	for _, k := range store.ChartKinds() {
		img := renderChart(st, k, cfg.ChartBackend, base)
		outPath := filepath.Join(outDir, k.String()+".png")
		if err := charts.WritePNG(outPath, img); err != nil {
			return err
		}
	}
	records.Infof("screenshots written to %s", outDir)
	return nil
}
