package compat

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sydlexius/modcheck/internal/archive"
	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/mcversion"
	"github.com/sydlexius/modcheck/internal/provider"
)

// Subject is everything known about one archive when the verdict is made.
type Subject struct {
	Path    string
	Size    int64
	Digests hashing.Digests

	// Descriptor and ParseErr are the two results of manifest.Parse.
	Descriptor *manifest.Descriptor
	ParseErr   error

	// Lookup and LookupErr are the two results of an online lookup.
	Lookup    *provider.LookupResult
	LookupErr error
}

// Checker turns subjects into verdicts under one strategy and target.
type Checker struct {
	strategy   Strategy
	preference Preference
	target     Target
}

// NewChecker creates a Checker. An empty preference means PreferNone.
func NewChecker(strategy Strategy, preference Preference, target Target) *Checker {
	if preference == "" {
		preference = PreferNone
	}
	return &Checker{strategy: strategy, preference: preference, target: target}
}

// Strategy returns the configured strategy.
func (c *Checker) Strategy() Strategy { return c.strategy }

// Target returns the configured target.
func (c *Checker) Target() Target { return c.target }

// Check builds the verdict for s.
func (c *Checker) Check(s Subject) Verdict {
	v := Verdict{
		File:       filepath.Base(s.Path),
		Path:       s.Path,
		Size:       s.Size,
		Strategy:   c.strategy,
		Target:     c.target,
		Digests:    s.Digests,
		Descriptor: s.Descriptor,
		Lookup:     s.Lookup,
	}

	var local, online SubVerdict
	if c.strategy.UsesLocal() {
		local = c.Local(s)
		v.Local = &local
	}
	if c.strategy.UsesOnline() {
		online = c.Online(s)
		v.Online = &online
	}
	v.ErrorKind, v.Error = c.failure(s)

	switch c.strategy {
	case StrategyLocal:
		v.Status, v.Reason = local.Status, local.Reason
		v.Source = SourceLocal
		if s.Descriptor == nil {
			v.Source = SourceNone
		}
	case StrategyOnline:
		v.Status, v.Reason = online.Status, online.Reason
		v.Source = SourceOnline
		if s.Lookup == nil {
			v.Source = SourceNone
		}
	default:
		c.merge(&v, local, online, s)
	}
	return v
}

func (c *Checker) merge(v *Verdict, local, online SubVerdict, s Subject) {
	if local.Status == online.Status {
		v.Status = local.Status
		v.Source = SourceBothAgree
		if local.Status == StatusUnknown && s.Descriptor == nil && s.Lookup == nil {
			v.Source = SourceNone
		}
		v.Reason = fmt.Sprintf("local and online agree: %s", local.Status)
		return
	}

	// A failed lookup is no evidence at all, so the manifest decides.
	if s.LookupErr != nil && s.Lookup == nil {
		v.Status = local.Status
		v.Source = SourceLocal
		v.Reason = "online lookup failed, using local: " + local.Reason
		return
	}

	v.Source = SourceBothDisagree
	v.Reason = fmt.Sprintf("disagreement: local=%s, online=%s", local.Status, online.Status)
	switch c.preference {
	case PreferLocal:
		v.Status = local.Status
		v.Reason += ", using local"
	case PreferOnline:
		v.Status = online.Status
		v.Reason += ", using online"
	default:
		v.Status = StatusUnknown
	}
}

// Unreadable builds the verdict for an archive that could not be opened.
func (c *Checker) Unreadable(path string, err error) Verdict {
	sub := SubVerdict{Status: StatusUnknown, Code: CodeUnreadable, Reason: "unreadable archive: " + errorText(err)}
	v := Verdict{
		File:      filepath.Base(path),
		Path:      path,
		Status:    StatusUnknown,
		Source:    SourceNone,
		Reason:    sub.Reason,
		Strategy:  c.strategy,
		Target:    c.target,
		ErrorKind: ErrorUnreadableArchive,
		Error:     errorText(err),
	}
	if c.strategy.UsesLocal() {
		v.Local = &sub
	}
	if c.strategy.UsesOnline() {
		online := sub
		v.Online = &online
	}
	return v
}

// Local judges the archive by its own manifest.
func (c *Checker) Local(s Subject) SubVerdict {
	d := s.Descriptor
	if d == nil || errors.Is(s.ParseErr, manifest.ErrUnknownLoader) {
		return SubVerdict{Status: StatusUnknown, Code: CodeUnknownLoader, Reason: "no known manifest" + hintSuffix(s)}
	}
	if errors.Is(s.ParseErr, manifest.ErrMalformedMetadata) {
		return SubVerdict{Status: StatusUnknown, Code: CodeMalformed, Reason: errorText(s.ParseErr)}
	}
	if !c.target.AcceptsLoader(d.Loader) {
		return SubVerdict{
			Status: StatusIncompatible,
			Code:   CodeWrongLoader,
			Reason: fmt.Sprintf("built for %s, target loader is %s (%s)", d.Loader, c.target.Loader, d.Manifest),
		}
	}
	if !d.HasConstraint() {
		return SubVerdict{Status: StatusUnknown, Code: CodeNoGameVersion, Reason: "no game version declared (" + d.Manifest + ")"}
	}
	if c.target.Contains(d.Constraint) {
		return SubVerdict{
			Status: StatusCompatible,
			Code:   CodeMatch,
			Reason: fmt.Sprintf("%s satisfies %s (%s)", c.target.GameVersion, d.Constraint, d.Manifest),
		}
	}
	return SubVerdict{
		Status: StatusIncompatible,
		Code:   CodeWrongGameVersion,
		Reason: fmt.Sprintf("%s outside %s (%s)", c.target.GameVersion, d.Constraint, d.Manifest),
	}
}

// Online judges the archive by the (game version, loader) pairs a provider
// lists for it.
func (c *Checker) Online(s Subject) SubVerdict {
	if s.LookupErr != nil && s.Lookup == nil {
		code := CodeLookupFailed
		if errors.Is(s.LookupErr, provider.ErrNetworkFailure) {
			code = CodeNetworkFailure
		}
		return SubVerdict{Status: StatusUnknown, Code: code, Reason: "online lookup failed: " + errorText(s.LookupErr)}
	}
	r := s.Lookup
	if r == nil {
		return SubVerdict{Status: StatusUnknown, Code: CodeNotFound, Reason: "no online match"}
	}
	name := r.Provider.DisplayName()
	if len(r.Pairs) == 0 {
		return SubVerdict{Status: StatusUnknown, Code: CodeNoPairs, Reason: name + " lists no game version and loader for this file"}
	}

	versionListed := false
	for _, p := range r.Pairs {
		if !c.target.AcceptsVersion(mcversion.Parse(p.GameVersion)) {
			continue
		}
		versionListed = true
		// A file tagged with no loader restricts none.
		if p.Loader == "" {
			return SubVerdict{
				Status: StatusCompatible,
				Code:   CodeMatch,
				Reason: fmt.Sprintf("%s lists %s for any loader", name, p.GameVersion),
			}
		}
		if c.target.AcceptsLoader(manifest.Loader(p.Loader)) {
			return SubVerdict{
				Status: StatusCompatible,
				Code:   CodeMatch,
				Reason: fmt.Sprintf("%s lists %s for %s", name, p.GameVersion, p.Loader),
			}
		}
	}
	if versionListed {
		return SubVerdict{
			Status: StatusIncompatible,
			Code:   CodeWrongLoader,
			Reason: fmt.Sprintf("%s lists %s only for %s", name, c.target.GameVersion, strings.Join(r.Loaders(), ", ")),
		}
	}
	return SubVerdict{
		Status: StatusIncompatible,
		Code:   CodeWrongGameVersion,
		Reason: fmt.Sprintf("%s lists %s", name, summarize(r.GameVersions(), 6)),
	}
}

// failure picks the error kind that explains a degraded verdict. Only the
// sides the strategy consults are considered.
func (c *Checker) failure(s Subject) (ErrorKind, string) {
	if c.strategy.UsesLocal() && s.ParseErr != nil {
		if errors.Is(s.ParseErr, archive.ErrUnreadableArchive) {
			return ErrorUnreadableArchive, s.ParseErr.Error()
		}
		if errors.Is(s.ParseErr, manifest.ErrMalformedMetadata) {
			return ErrorMalformedMetadata, s.ParseErr.Error()
		}
	}
	if c.strategy.UsesOnline() && s.LookupErr != nil && s.Lookup == nil {
		if errors.Is(s.LookupErr, provider.ErrNetworkFailure) {
			return ErrorNetworkFailure, s.LookupErr.Error()
		}
		return ErrorLookupFailed, s.LookupErr.Error()
	}
	if c.strategy.UsesLocal() && errors.Is(s.ParseErr, manifest.ErrUnknownLoader) {
		return ErrorUnknownLoader, s.ParseErr.Error()
	}
	return ErrorNone, ""
}

func hintSuffix(s Subject) string {
	h := manifest.FilenameHints(s.Path)
	if s.Descriptor != nil {
		h = s.Descriptor.Hints
	}
	if h.IsZero() {
		return ""
	}
	var parts []string
	if h.Loader != "" {
		parts = append(parts, string(h.Loader))
	}
	if len(h.GameVersions) > 0 {
		parts = append(parts, strings.Join(h.GameVersions, ", "))
	}
	return " (file name suggests " + strings.Join(parts, " ") + ")"
}

// summarize lists up to limit versions, newest first.
func summarize(versions []string, limit int) string {
	sorted := slices.Clone(versions)
	slices.SortFunc(sorted, func(a, b string) int {
		return mcversion.Compare(mcversion.Parse(b), mcversion.Parse(a))
	})
	if len(sorted) > limit {
		return strings.Join(sorted[:limit], ", ") + fmt.Sprintf(" and %d more", len(sorted)-limit)
	}
	return strings.Join(sorted, ", ")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
