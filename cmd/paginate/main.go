// Command paginate paginates a YAML-described document and prints the
// resulting page table. It exists for trying out the engine and for
// inspecting its Prometheus metrics without embedding a real renderer.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/reflowio/paginate/pkg/document"
	"github.com/reflowio/paginate/pkg/logging"
	"github.com/reflowio/paginate/pkg/paginate"
)

// Manifest describes a document for the CLI: its spine, a height
// script or raw text per unit, and pagination settings.
type Manifest struct {
	Page                      paginate.Size  `yaml:"page"`
	MaxConcurrentMeasurements int            `yaml:"max_concurrent_measurements"`
	Units                     []ManifestUnit `yaml:"units"`
}

// ManifestUnit is one spine item. Either Heights lists pre-measured
// heights per width, or Text is measured by a toy line-wrapping model.
type ManifestUnit struct {
	ID         string     `yaml:"id"`
	Heights    []HeightAt `yaml:"heights"`
	Text       string     `yaml:"text"`
	LineHeight float64    `yaml:"line_height"`
	CharWidth  float64    `yaml:"char_width"`
}

// HeightAt is a pre-measured height at one width.
type HeightAt struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Spine returns the manifest's unit refs in order.
func (m *Manifest) Spine() document.Spine {
	spine := make(document.Spine, len(m.Units))
	for i, u := range m.Units {
		spine[i] = document.ItemRef(u.ID)
	}
	return spine
}

func main() {
	manifestPath := flag.String("manifest", "document.yaml", "path to the document manifest")
	pageFlag := flag.String("page", "", "page size as WxH (e.g. 400x600), overrides the manifest")
	listen := flag.String("listen", "", "address to serve /metrics on (empty disables)")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	pretty := flag.Bool("pretty", false, "human-readable log output")
	flag.Parse()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Pretty: *pretty,
	})
	logger := logging.NewLogger("cli")

	manifest, err := loadManifest(*manifestPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *manifestPath).Msg("Failed to load manifest")
	}

	page := manifest.Page
	if *pageFlag != "" {
		page, err = parsePageSize(*pageFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid -page flag")
		}
	}

	cfg := paginate.DefaultConfig()
	if manifest.MaxConcurrentMeasurements > 0 {
		cfg.MaxConcurrentMeasurements = manifest.MaxConcurrentMeasurements
	}

	spine := manifest.Spine()
	coordinator := paginate.New(spine, newManifestMeasurer(manifest), cfg)
	defer coordinator.Close()

	if *listen != "" {
		go serveMetrics(*listen, logger)
	}

	coordinator.DocumentReady()
	if err := coordinator.SetPageSize(page); err != nil {
		logger.Fatal().Err(err).Msg("Invalid page size")
	}

	positions, err := awaitComplete(coordinator, spine, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("Pagination failed")
	}
	printTable(os.Stdout, positions)
	logger.Info().
		Int("pages", len(positions)).
		Float64("page_w", page.Width).
		Float64("page_h", page.Height).
		Msg("Pagination complete")

	if *listen != "" {
		logger.Info().Str("addr", *listen).Msg("Serving metrics, press Ctrl+C to exit")
		select {}
	}
}

// loadManifest reads and validates a document manifest.
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if len(m.Units) == 0 {
		return nil, fmt.Errorf("manifest has no units")
	}
	seen := make(map[string]struct{}, len(m.Units))
	for _, u := range m.Units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit with empty id")
		}
		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit id %q", u.ID)
		}
		seen[u.ID] = struct{}{}
		if len(u.Heights) == 0 && u.Text == "" {
			return nil, fmt.Errorf("unit %q has neither heights nor text", u.ID)
		}
	}
	return &m, nil
}

// parsePageSize parses a WxH string like "400x600".
func parsePageSize(s string) (paginate.Size, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return paginate.Size{}, fmt.Errorf("page size %q is not WxH", s)
	}
	width, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return paginate.Size{}, fmt.Errorf("page width %q: %w", parts[0], err)
	}
	height, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return paginate.Size{}, fmt.Errorf("page height %q: %w", parts[1], err)
	}
	size := paginate.Size{Width: width, Height: height}
	if !size.Valid() {
		return paginate.Size{}, fmt.Errorf("page size %q is not a valid size", s)
	}
	return size, nil
}

// manifestMeasurer serves heights from the manifest: pre-measured
// values when present, otherwise a toy line-wrapping model over the
// unit's text.
type manifestMeasurer struct {
	units map[document.ItemRef]ManifestUnit
}

func newManifestMeasurer(m *Manifest) *manifestMeasurer {
	units := make(map[document.ItemRef]ManifestUnit, len(m.Units))
	for _, u := range m.Units {
		units[document.ItemRef(u.ID)] = u
	}
	return &manifestMeasurer{units: units}
}

// Measure implements measure.Measurer.
func (m *manifestMeasurer) Measure(_ context.Context, unit document.ItemRef, width float64) (float64, error) {
	u, ok := m.units[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	for _, h := range u.Heights {
		if h.Width == width {
			return h.Height, nil
		}
	}
	if u.Text != "" {
		return textHeight(u, width)
	}
	return 0, fmt.Errorf("unit %q has no height at width %g", unit, width)
}

// textHeight estimates the rendered height of plain text: characters
// per line from an average glyph width, one line-height per wrapped
// line.
func textHeight(u ManifestUnit, width float64) (float64, error) {
	if width <= 0 {
		return 0, fmt.Errorf("cannot wrap text at width %g", width)
	}
	lineHeight := u.LineHeight
	if lineHeight <= 0 {
		lineHeight = 18
	}
	charWidth := u.CharWidth
	if charWidth <= 0 {
		charWidth = 7.2
	}
	perLine := math.Max(1, math.Floor(width/charWidth))
	lines := math.Ceil(float64(len(u.Text)) / perLine)
	return lines * lineHeight, nil
}

// awaitComplete waits until every unit has a measurement outcome at
// the active width, then returns the final page table.
func awaitComplete(c *paginate.Coordinator, spine document.Spine, timeout time.Duration) ([]paginate.Position, error) {
	deadline := time.Now().Add(timeout)
	for {
		complete := true
		for _, unit := range spine {
			if _, ok := c.HeightFor(unit); !ok {
				complete = false
				break
			}
		}
		if complete {
			return c.CurrentPositions()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("measurements did not complete within %s", timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func printTable(w *os.File, positions []paginate.Position) {
	fmt.Fprintf(w, "%-5s %-20s %10s %10s %10s\n", "PAGE", "UNIT", "OFFSET", "PAGE_H", "UNIT_H")
	for i, p := range positions {
		fmt.Fprintf(w, "%-5d %-20s %10.1f %10.1f %10.1f\n",
			i+1, p.Unit, p.ContentOffset, p.PageSize.Height, p.ContentSize.Height)
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	logger.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
