// Package report renders scan results, inspections and provider status as a
// terminal table, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/modcheck/internal/compat"
	"github.com/sydlexius/modcheck/internal/filesystem"
	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/i18n"
	"github.com/sydlexius/modcheck/internal/maintenance"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/scanner"
)

// Format selects the output encoding.
type Format string

// Formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
}

// Color palette for table output.
const (
	colorHeader  = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
)

// reasonWidth caps the reason column so long summaries wrap.
const reasonWidth = 60

// Renderer writes reports in one format and language.
type Renderer struct {
	format Format
	tr     *i18n.Translator
}

// New creates a Renderer.
func New(format Format, tr *i18n.Translator) *Renderer {
	return &Renderer{format: format, tr: tr}
}

// Translator returns the translator labels are looked up in.
func (r *Renderer) Translator() *i18n.Translator { return r.tr }

// Format returns the output format.
func (r *Renderer) Format() Format { return r.format }

// Scan writes a scan result.
func (r *Renderer) Scan(w io.Writer, res *scanner.ScanResult) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatYAML:
		return writeYAML(w, res)
	}

	lr := lipgloss.NewRenderer(w)
	muted := lr.NewStyle().Foreground(colorMuted)

	fmt.Fprintln(w, muted.Render(r.tr.T("scan.target", //nolint:errcheck
		"version", res.Target.GameVersion,
		"loader", string(res.Target.Loader),
		"strategy", string(res.Strategy),
	)))
	if res.TotalFiles == 0 {
		_, err := fmt.Fprintln(w, r.tr.T("scan.no_mods", "dir", res.Directory))
		return err
	}

	rows := make([][]string, 0, len(res.Verdicts))
	for _, v := range res.Verdicts {
		mod := v.ModName()
		if ver := v.ModVersion(); ver != "" {
			mod += " " + ver
		}
		rows = append(rows, []string{
			v.File,
			mod,
			humanize.IBytes(uint64(max(v.Size, 0))),
			r.tr.T("status." + string(v.Status)),
			r.tr.T("source." + string(v.Source)),
			v.Reason,
		})
	}

	statusCol := 3
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lr.NewStyle().Foreground(colorMuted)).
		Headers(
			r.tr.T("report.file"),
			r.tr.T("report.mod"),
			r.tr.T("report.size"),
			r.tr.T("report.status"),
			r.tr.T("report.source"),
			r.tr.T("report.reason"),
		).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lr.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true).Foreground(colorHeader)
			}
			switch col {
			case statusCol:
				if row >= 0 && row < len(res.Verdicts) {
					return base.Foreground(statusColor(res.Verdicts[row].Status))
				}
			case 5:
				return base.Width(reasonWidth)
			}
			return base
		})
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	return r.summary(w, lr, res)
}

func (r *Renderer) summary(w io.Writer, lr *lipgloss.Renderer, res *scanner.ScanResult) error {
	counts := r.tr.T("summary.counts",
		"compatible", res.Count(compat.StatusCompatible),
		"incompatible", res.Count(compat.StatusIncompatible),
		"unknown", res.Count(compat.StatusUnknown),
	)
	var head string
	if res.Status == scanner.StatusInterrupted {
		head = lr.NewStyle().Foreground(colorWarning).Render(
			r.tr.T("summary.stopped", "count", len(res.Verdicts), "total", res.TotalFiles))
	} else {
		head = r.tr.T("summary.done",
			"count", len(res.Verdicts),
			"duration", res.Duration().Round(10*time.Millisecond).String())
	}
	_, err := fmt.Fprintf(w, "%s %s\n", head, counts)
	return err
}

func statusColor(s compat.Status) lipgloss.Color {
	switch s {
	case compat.StatusCompatible:
		return colorSuccess
	case compat.StatusIncompatible:
		return colorError
	}
	return colorWarning
}

// Inspection is everything known about one archive without a verdict.
type Inspection struct {
	File       string                 `json:"file" yaml:"file"`
	Path       string                 `json:"path" yaml:"path"`
	Size       int64                  `json:"size" yaml:"size"`
	Digests    hashing.Digests        `json:"digests" yaml:"digests"`
	Descriptor *manifest.Descriptor   `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	ParseError string                 `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
	Online     bool                   `json:"online" yaml:"online"`
	Lookup     *provider.LookupResult `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	LookupErr  string                 `json:"lookup_error,omitempty" yaml:"lookup_error,omitempty"`
}

// NewInspection builds an Inspection from a checker subject.
func NewInspection(s compat.Subject, online bool) Inspection {
	in := Inspection{
		File:       filepath.Base(s.Path),
		Path:       s.Path,
		Size:       s.Size,
		Digests:    s.Digests,
		Descriptor: s.Descriptor,
		Online:     online,
		Lookup:     s.Lookup,
	}
	if s.ParseErr != nil {
		in.ParseError = s.ParseErr.Error()
	}
	if s.LookupErr != nil {
		in.LookupErr = s.LookupErr.Error()
	}
	return in
}

// Inspect writes an inspection.
func (r *Renderer) Inspect(w io.Writer, in Inspection) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, in)
	case FormatYAML:
		return writeYAML(w, in)
	}

	lr := lipgloss.NewRenderer(w)
	label := lr.NewStyle().Foreground(colorHeader).Bold(true)
	muted := lr.NewStyle().Foreground(colorMuted)
	line := func(k, v string) {
		fmt.Fprintf(w, "%s %s\n", label.Render(k+":"), v) //nolint:errcheck
	}

	line(r.tr.T("report.file"), fmt.Sprintf("%s (%s)", in.File, humanize.IBytes(uint64(max(in.Size, 0)))))
	line("SHA-1", in.Digests.SHA1)
	line("SHA-512", in.Digests.SHA512)
	line("Fingerprint", fmt.Sprint(in.Digests.Fingerprint))
	line("BLAKE2b", in.Digests.ContentKey)

	if d := in.Descriptor; d != nil {
		line(r.tr.T("inspect.manifest"), d.Manifest)
		line(r.tr.T("inspect.loader"), string(d.Loader))
		line(r.tr.T("inspect.mod_id"), d.ModID)
		line(r.tr.T("report.mod"), strings.TrimSpace(d.Name+" "+d.Version))
		line(r.tr.T("inspect.game_versions"), orDash(d.GameVersions))
		if !d.Hints.IsZero() {
			line(r.tr.T("inspect.hints"), hintText(d.Hints))
		}
	} else {
		line(r.tr.T("inspect.manifest"), r.tr.T("inspect.no_manifest"))
	}
	if in.ParseError != "" {
		line("Error", in.ParseError)
	}

	if !in.Online {
		return nil
	}
	switch {
	case in.Lookup != nil:
		lk := in.Lookup
		line(r.tr.T("inspect.online"), fmt.Sprintf("%s %s %s", lk.Provider.DisplayName(), lk.ModName, lk.VersionNumber))
		if lk.PageURL != "" {
			line("URL", lk.PageURL)
		}
		line(r.tr.T("inspect.game_versions"), strings.Join(lk.GameVersions(), ", "))
		line(r.tr.T("inspect.loader"), strings.Join(lk.Loaders(), ", "))
		if !lk.LookedUpAt.IsZero() {
			fmt.Fprintln(w, muted.Render(humanize.Time(lk.LookedUpAt))) //nolint:errcheck
		}
	case in.LookupErr != "":
		line(r.tr.T("inspect.online"), in.LookupErr)
	default:
		line(r.tr.T("inspect.online"), r.tr.T("inspect.no_match"))
	}
	return nil
}

// PingResult is the outcome of one provider connectivity test.
type PingResult struct {
	Provider   provider.ProviderName `json:"provider" yaml:"provider"`
	Configured bool                  `json:"configured" yaml:"configured"`
	OK         bool                  `json:"ok" yaml:"ok"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ping writes provider connectivity results.
func (r *Renderer) Ping(w io.Writer, results []PingResult) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, results)
	case FormatYAML:
		return writeYAML(w, results)
	}

	lr := lipgloss.NewRenderer(w)
	fmt.Fprintln(w, lr.NewStyle().Bold(true).Foreground(colorHeader).Render(r.tr.T("ping.title"))) //nolint:errcheck
	for _, p := range results {
		var state string
		switch {
		case !p.Configured:
			state = lr.NewStyle().Foreground(colorMuted).Render(r.tr.T("ping.skipped"))
		case p.OK:
			state = lr.NewStyle().Foreground(colorSuccess).Render(r.tr.T("ping.ok"))
		default:
			state = lr.NewStyle().Foreground(colorError).Render(r.tr.T("ping.fail")) + " " + p.Error
		}
		if _, err := fmt.Fprintf(w, "  %-12s %s\n", p.Provider.DisplayName(), state); err != nil {
			return err
		}
	}
	return nil
}

// Keys writes the API key status of every provider.
func (r *Renderer) Keys(w io.Writer, statuses []provider.KeyStatus) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, statuses)
	case FormatYAML:
		return writeYAML(w, statuses)
	}

	lr := lipgloss.NewRenderer(w)
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{s.DisplayName, string(s.AccessTier), s.Status, s.HelpURL})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lr.NewStyle().Foreground(colorMuted)).
		Headers(r.tr.T("key.title"), "Tier", r.tr.T("report.status"), "URL").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lr.NewStyle().Bold(true).Foreground(colorHeader).Padding(0, 1)
			}
			return lr.NewStyle().Padding(0, 1)
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Cache writes the lookup cache status.
func (r *Renderer) Cache(w io.Writer, st *maintenance.Status, ttl time.Duration) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, st)
	case FormatYAML:
		return writeYAML(w, st)
	}

	lr := lipgloss.NewRenderer(w)
	label := lr.NewStyle().Foreground(colorHeader).Bold(true)
	line := func(k, v string) {
		fmt.Fprintf(w, "%s %s\n", label.Render(k+":"), v) //nolint:errcheck
	}

	line(r.tr.T("cache.path"), st.Path)
	line(r.tr.T("cache.entries"), humanize.Comma(int64(st.Entries)))
	line(r.tr.T("cache.size"), humanize.IBytes(uint64(max(st.DBFileSize+st.WALFileSize, 0))))
	line(r.tr.T("cache.ttl"), ttl.String())
	last := r.tr.T("cache.never")
	if t, err := time.Parse(time.RFC3339, st.LastPruneAt); err == nil {
		last = humanize.Time(t)
	}
	line(r.tr.T("cache.last_prune"), last)
	return nil
}

// SaveJSON writes v as indented JSON to path atomically.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return filesystem.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func hintText(h manifest.Hints) string {
	parts := make([]string, 0, 2)
	if h.Loader != "" {
		parts = append(parts, string(h.Loader))
	}
	parts = append(parts, h.GameVersions...)
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

