package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"math"
	"os"
	"strings"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/QianXiquq/RankingAnalyzer/cmd/rankviewer/uihelpers"
	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/config"
	"github.com/QianXiquq/RankingAnalyzer/src/records"
	"github.com/QianXiquq/RankingAnalyzer/src/store"
)

type uiState struct {
	app    fyne.App
	window fyne.Window
	cfg    config.Config

	store     *store.Store
	filePath  string
	notesPath string

	// toggles and modes
	kind      store.ChartKind
	backend   string
	annotate  bool
	showHints bool
	splitPos  float64

	// widgets
	fileLabel   *widget.Label
	statusLabel *widget.Label
	chartImg    *canvas.Image
	chartView   *chartView
	notesEntry  *widget.Entry
	notesEdit   *widget.Button
	notesSave   *widget.Button
	kindButtons map[store.ChartKind]*widget.Button
	split       *container.Split
}

func main() {
	var fileFlag, shotsDir, envFile string
	flag.StringVar(&fileFlag, "file", "", "CSV to open (default: RANK_DATA_FILE or data.csv when present)")
	flag.StringVar(&shotsDir, "screenshots", "", "Render every chart as PNG into this directory and exit (no window)")
	flag.StringVar(&envFile, "env", ".env", "Path to a .env file with RANK_* settings")
	backendFlag := flag.String("backend", "", "Chart backend ("+strings.Join(charts.BackendNames(), "|")+")")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg.Apply()
	if *backendFlag != "" {
		cfg.ChartBackend = *backendFlag
	}
	if fileFlag != "" {
		cfg.DataFile = fileFlag
	}

	if shotsDir != "" {
		if err := RunScreenshotsMode(cfg, shotsDir); err != nil {
			fmt.Fprintf(os.Stderr, "screenshots: %v\n", err)
			os.Exit(1)
		}
		return
	}

	a := app.NewWithID("com.rankinganalyzer.viewer")
	w := a.NewWindow("Ranking Analyzer")
	w.Resize(fyne.NewSize(1200, 860))

	state := &uiState{
		app:       a,
		window:    w,
		cfg:       cfg,
		store:     store.New(),
		filePath:  fileFlag,
		notesPath: cfg.NotesFile,
		kind:      store.ChartSubjects,
		backend:   cfg.ChartBackend,
		annotate:  cfg.Annotate,
		splitPos:  0.78,
	}
	loadPrefs(state)

	state.fileLabel = widget.NewLabel(uihelpers.TruncatePath(state.filePath, 60))
	state.statusLabel = widget.NewLabel("")

	importBtn := widget.NewButton("Import CSV…", func() { openFileDialog(state) })
	exportBtn := widget.NewButton("Export CSV…", func() { exportDialog(state) })
	state.kindButtons = map[store.ChartKind]*widget.Button{}
	var kindBox []fyne.CanvasObject
	for _, k := range store.ChartKinds() {
		k := k
		b := widget.NewButton(kindTitle(k), func() {
			state.kind = k
			savePrefs(state)
			redrawChart(state)
		})
		state.kindButtons[k] = b
		kindBox = append(kindBox, b)
	}
	backendSelect := widget.NewSelect(charts.BackendNames(), nil)
	backendSelect.Selected = charts.BackendByName(state.backend).Name()
	annotateChk := widget.NewCheck("Values", nil)
	annotateChk.SetChecked(state.annotate)
	hintsChk := widget.NewCheck("Hints", nil)
	hintsChk.SetChecked(state.showHints)

	top := container.NewVBox(
		container.NewHBox(importBtn, exportBtn, widget.NewSeparator(), state.fileLabel),
		container.NewHBox(append(kindBox, widget.NewSeparator(), widget.NewLabel("Backend:"), backendSelect, annotateChk, hintsChk)...),
	)

	state.chartImg = canvas.NewImageFromImage(charts.Blank(chartSize(state)))
	state.chartImg.FillMode = canvas.ImageFillContain
	state.chartView = newChartView(state)
	chartsScroll := container.NewScroll(state.chartView)

	state.notesEntry = widget.NewMultiLineEntry()
	state.notesEntry.SetPlaceHolder("Notes about these results…")
	state.notesEntry.Wrapping = fyne.TextWrapWord
	state.notesEntry.Disable()
	state.notesEdit = widget.NewButton("Edit", func() {
		state.notesEntry.Enable()
		state.notesEdit.Disable()
		state.notesSave.Enable()
	})
	state.notesSave = widget.NewButton("Save", func() { saveNotes(state) })
	state.notesSave.Disable()
	notesPanel := container.NewBorder(
		widget.NewLabelWithStyle("Notes", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewHBox(state.notesEdit, state.notesSave),
		nil, nil,
		state.notesEntry,
	)

	state.split = container.NewVSplit(chartsScroll, notesPanel)
	state.split.Offset = state.splitPos
	content := container.NewBorder(top, state.statusLabel, nil, nil, state.split)
	w.SetContent(content)

	// Redraw on window resize so the chart follows the width
	if w.Canvas() != nil {
		prevW := int(w.Canvas().Size().Width)
		done := make(chan struct{})
		w.SetOnClosed(func() {
			savePrefs(state)
			close(done)
		})
		go func() {
			t := time.NewTicker(300 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					c := w.Canvas()
					if c == nil {
						continue
					}
					if curW := int(c.Size().Width); curW != prevW {
						prevW = curW
						fyne.Do(func() { redrawChart(state) })
					}
				}
			}
		}()
	}

	backendSelect.OnChanged = func(v string) {
		state.backend = v
		savePrefs(state)
		redrawChart(state)
	}
	annotateChk.OnChanged = func(b bool) {
		state.annotate = b
		savePrefs(state)
		redrawChart(state)
	}
	hintsChk.OnChanged = func(b bool) {
		state.showHints = b
		savePrefs(state)
		redrawChart(state)
	}

	buildMenus(state)
	loadNotes(state)
	loadStartupFile(state)
	w.ShowAndRun()
}

func kindTitle(k store.ChartKind) string {
	switch k {
	case store.ChartTotal:
		return "Total"
	case store.ChartRank:
		return "Rank"
	default:
		return "Subjects"
	}
}

// menus and dialogs
func buildMenus(state *uiState) {
	var items []*fyne.MenuItem
	for _, f := range recentFiles(state) {
		f := f
		items = append(items, fyne.NewMenuItem(uihelpers.TruncatePath(f, 60), func() { loadPath(state, f) }))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() { clearRecentFiles(state); buildMenus(state) })
	recentMenu := fyne.NewMenu("Open Recent", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Import CSV…", func() { openFileDialog(state) }),
		fyne.NewMenuItem("Reload", func() { loadPath(state, state.filePath) }),
		fyne.NewMenuItem("Export CSV…", func() { exportDialog(state) }),
		fyne.NewMenuItem("Export Chart PNG…", func() { exportChartPNG(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu, recentMenu))

	canv := state.window.Canvas()
	if canv != nil {
		for _, mod := range []fyne.KeyModifier{fyne.KeyModifierSuper, fyne.KeyModifierControl} {
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: mod}, func(fyne.Shortcut) { openFileDialog(state) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: mod}, func(fyne.Shortcut) { loadPath(state, state.filePath) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: mod}, func(fyne.Shortcut) { state.window.Close() })
		}
	}
}

func openFileDialog(state *uiState) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		rc.Close()
		loadPath(state, rc.URI().Path())
	}, state.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".csv", ".txt"}))
	d.Show()
}

// loadStartupFile opens the -file flag, the last used file, or the configured default
// data file, silently skipping a default that does not exist.
func loadStartupFile(state *uiState) {
	path := state.filePath
	if path == "" {
		path = state.cfg.DataFile
		if _, err := os.Stat(path); err != nil {
			state.statusLabel.SetText("No data loaded. Import a CSV with exam, subject, score and optional total_rank columns.")
			redrawChart(state)
			return
		}
	}
	loadPath(state, path)
}

func loadPath(state *uiState, path string) {
	if path == "" {
		return
	}
	res, err := state.store.Load(path)
	if err != nil {
		// the previous records stay loaded
		dialog.ShowError(err, state.window)
		return
	}
	state.filePath = path
	state.fileLabel.SetText(uihelpers.TruncatePath(path, 60))
	addRecentFile(state, path)
	savePrefs(state)
	buildMenus(state)
	msg := fmt.Sprintf("Loaded %d records from %s", res.Dataset.Len(), path)
	if len(res.Skipped) > 0 {
		msg += fmt.Sprintf(" (%d malformed rows skipped)", len(res.Skipped))
	}
	if p := state.store.Prepared(); p.Duplicates > 0 {
		msg += fmt.Sprintf("; %d duplicate rows ignored", p.Duplicates)
	}
	state.statusLabel.SetText(msg)
	redrawChart(state)
}

func exportDialog(state *uiState) {
	if state.store.Empty() {
		dialog.ShowError(&records.EmptyDataError{Op: "export"}, state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		target := wc.URI().Path()
		wc.Close()
		written, err := state.store.Export(target)
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		if written != target {
			// the dialog created target; the data went to target+".csv"
			os.Remove(target)
		}
		dialog.ShowInformation("Export", "Saved "+written, state.window)
	}, state.window)
	fs.SetFileName("scores.csv")
	fs.Show()
}

func exportChartPNG(state *uiState) {
	if state.chartImg == nil || state.chartImg.Image == nil || state.store.Empty() {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		b, err := charts.EncodePNG(state.chartImg.Image)
		if err == nil {
			_, err = wc.Write(b)
		}
		if err != nil {
			dialog.ShowError(err, state.window)
		}
	}, state.window)
	fs.SetFileName(state.kind.String() + "_chart.png")
	fs.Show()
}

// renderChart draws the selected chart for the current records. Missing data is shown
// as a message on a blank canvas rather than an error dialog.
func renderChart(st *store.Store, kind store.ChartKind, backend string, base charts.Options) image.Image {
	req, err := st.ChartRequest(kind, base)
	if err != nil {
		msg := "No data"
		if !errors.Is(err, records.ErrEmptyData) {
			msg = err.Error()
		} else if !st.Empty() && kind == store.ChartRank {
			msg = "No rank data in this file"
		}
		return charts.DrawMessage(charts.Blank(base.Width, base.Height), msg)
	}
	img, err := charts.Render(charts.BackendByName(backend), req)
	if err != nil {
		records.Errorf("chart render error: %v; showing blank fallback", err)
		return charts.DrawMessage(charts.Blank(base.Width, base.Height), "Chart could not be drawn: "+err.Error())
	}
	return img
}

func redrawChart(state *uiState) {
	w, h := chartSize(state)
	img := renderChart(state.store, state.kind, state.backend, charts.Options{Width: w, Height: h, Annotate: state.annotate})
	if state.showHints && !state.store.Empty() {
		img = charts.DrawHint(img, chartHint(state.kind))
	}
	if state.chartImg != nil {
		state.chartImg.Image = img
		state.chartImg.SetMinSize(fyne.NewSize(float32(w), float32(h)))
		state.chartImg.Refresh()
	}
	for k, b := range state.kindButtons {
		if k == state.kind {
			b.Importance = widget.HighImportance
		} else {
			b.Importance = widget.MediumImportance
		}
		b.Refresh()
	}
}

// chartSize computes the chart size from the current window width.
func chartSize(state *uiState) (int, int) {
	if state == nil {
		return charts.DefaultWidth, charts.DefaultHeight
	}
	if state.window == nil || state.window.Canvas() == nil {
		return state.cfg.ChartWidth, state.cfg.ChartHeight
	}
	sz := state.window.Canvas().Size()
	return uihelpers.ComputeChartDimensions(int(sz.Width*0.97) - 12)
}

// notes
func loadNotes(state *uiState) {
	text, err := store.LoadNotes(state.notesPath)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.notesEntry.SetText(text)
}

func saveNotes(state *uiState) {
	if err := store.SaveNotes(state.notesPath, state.notesEntry.Text); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.notesEntry.SetText(strings.TrimSpace(state.notesEntry.Text))
	state.notesEntry.Disable()
	state.notesSave.Disable()
	state.notesEdit.Enable()
	state.statusLabel.SetText("Notes saved to " + state.notesPath)
}

// chartHint is the reading hint stamped on a chart when hints are enabled.
func chartHint(kind store.ChartKind) string {
	switch kind {
	case store.ChartTotal:
		return "Hint: total of the subjects present in each exam. Missing subjects lower it."
	case store.ChartRank:
		return "Hint: lower rank is better, so the axis runs top-down. Gaps mean no rank recorded."
	default:
		return "Hint: one line per subject. Breaks mark exams without a score for that subject."
	}
}

// hoverText describes exam i of the current records for the status line.
func hoverText(st *store.Store, kind store.ChartKind, i int) string {
	p := st.Prepared()
	if i < 0 || i >= len(p.XLabels) {
		return ""
	}
	parts := []string{p.XLabels[i]}
	switch kind {
	case store.ChartSubjects:
		for _, s := range p.Subjects {
			if v, ok := p.Score(i, s); ok {
				parts = append(parts, fmt.Sprintf("%s %s", s, charts.FormatValue(v, charts.ValueFormatRounded)))
			}
		}
	case store.ChartTotal:
		if v := p.Totals[i]; !math.IsNaN(v) {
			parts = append(parts, "total "+charts.FormatValue(v, charts.ValueFormatRounded))
		}
	case store.ChartRank:
		if p.Ranks != nil && !math.IsNaN(p.Ranks[i]) {
			parts = append(parts, "rank "+charts.FormatValue(p.Ranks[i], charts.ValueFormatInt))
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "no data")
	}
	return strings.Join(parts, "   ")
}

// recent files helpers
func recentFiles(state *uiState) []string {
	raw := state.app.Preferences().StringWithFallback("recentFiles", "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, "\n") {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func addRecentFile(state *uiState, path string) {
	filtered := []string{path}
	for _, f := range recentFiles(state) {
		if f != path && len(filtered) < 10 {
			filtered = append(filtered, f)
		}
	}
	state.app.Preferences().SetString("recentFiles", strings.Join(filtered, "\n"))
}

func clearRecentFiles(state *uiState) {
	state.app.Preferences().SetString("recentFiles", "")
}

// prefs
func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetString("lastFile", state.filePath)
	prefs.SetString("chartKind", state.kind.String())
	prefs.SetString("backend", state.backend)
	prefs.SetBool("annotate", state.annotate)
	prefs.SetBool("showHints", state.showHints)
	if state.split != nil {
		state.splitPos = state.split.Offset
	}
	prefs.SetFloat("splitOffset", state.splitPos)
}

// loadPrefs restores the last session; an explicit -file keeps precedence.
func loadPrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	if state.filePath == "" {
		if f := prefs.StringWithFallback("lastFile", ""); f != "" {
			if _, err := os.Stat(f); err == nil {
				state.filePath = f
			}
		}
	}
	if k, err := store.ParseChartKind(prefs.StringWithFallback("chartKind", state.kind.String())); err == nil {
		state.kind = k
	}
	state.backend = prefs.StringWithFallback("backend", state.backend)
	state.annotate = prefs.BoolWithFallback("annotate", state.annotate)
	state.showHints = prefs.BoolWithFallback("showHints", false)
	if off := prefs.FloatWithFallback("splitOffset", state.splitPos); off > 0.1 && off < 0.95 {
		state.splitPos = off
	}
}
