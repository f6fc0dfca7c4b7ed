// Package compat decides whether a mod archive is compatible with a target
// game version and loader by merging what the archive declares with what the
// online providers list for it.
package compat

import (
	"fmt"
	"strings"

	"github.com/sydlexius/modcheck/internal/hashing"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/provider"
)

// Status is the tri-state outcome of a check.
type Status string

// Status values. Unknown is never a polite way of saying incompatible: it
// means no side produced a usable signal, or the sides disagreed.
const (
	StatusCompatible   Status = "compatible"
	StatusIncompatible Status = "incompatible"
	StatusUnknown      Status = "unknown"
)

// AllStatuses returns the statuses in report order.
func AllStatuses() []Status {
	return []Status{StatusCompatible, StatusIncompatible, StatusUnknown}
}

// Source names which signal a verdict rests on.
type Source string

// Source values.
const (
	SourceLocal        Source = "local"
	SourceOnline       Source = "online"
	SourceBothAgree    Source = "both-agree"
	SourceBothDisagree Source = "both-disagree"
	SourceNone         Source = "none"
)

// Code classifies the reason behind a sub-verdict so reports can translate
// it without parsing the reason text.
type Code string

// Reason codes.
const (
	CodeMatch            Code = "match"
	CodeWrongLoader      Code = "wrong_loader"
	CodeWrongGameVersion Code = "wrong_game_version"
	CodeNoGameVersion    Code = "no_game_version"
	CodeUnknownLoader    Code = "unknown_loader"
	CodeMalformed        Code = "malformed_metadata"
	CodeUnreadable       Code = "unreadable_archive"
	CodeNotFound         Code = "not_found"
	CodeNoPairs          Code = "no_pairs"
	CodeNetworkFailure   Code = "network_failure"
	CodeLookupFailed     Code = "lookup_failed"
)

// ErrorKind records the failure that degraded a verdict, if any.
type ErrorKind string

// Error kinds, one per failure class.
const (
	ErrorNone              ErrorKind = ""
	ErrorUnreadableArchive ErrorKind = "unreadable_archive"
	ErrorMalformedMetadata ErrorKind = "malformed_metadata"
	ErrorUnknownLoader     ErrorKind = "unknown_loader"
	ErrorNetworkFailure    ErrorKind = "network_failure"
	ErrorLookupFailed      ErrorKind = "lookup_failed"
)

// SubVerdict is the outcome of one side of a check.
type SubVerdict struct {
	Status Status `json:"status" yaml:"status"`
	Code   Code   `json:"code" yaml:"code"`
	Reason string `json:"reason" yaml:"reason"`
}

// Verdict is the final determination for one archive against one target.
// Verdicts are built once by a Checker and passed around by value; the
// Descriptor and Lookup they point to are shared and must be treated as
// read-only.
type Verdict struct {
	File   string `json:"file" yaml:"file"`
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	Status Status `json:"status" yaml:"status"`
	Source Source `json:"source" yaml:"source"`
	Reason string `json:"reason" yaml:"reason"`

	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Target   Target   `json:"target" yaml:"target"`

	// Local is nil under the online strategy, Online under the local one.
	Local  *SubVerdict `json:"local,omitempty" yaml:"local,omitempty"`
	Online *SubVerdict `json:"online,omitempty" yaml:"online,omitempty"`

	Digests    hashing.Digests        `json:"digests,omitzero" yaml:"digests,omitempty"`
	Descriptor *manifest.Descriptor   `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Lookup     *provider.LookupResult `json:"lookup,omitempty" yaml:"lookup,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// ModName returns the best available display name: the manifest's, then the
// provider's, then the file name.
func (v Verdict) ModName() string {
	if v.Descriptor != nil && v.Descriptor.Name != "" {
		return v.Descriptor.Name
	}
	if v.Lookup != nil && v.Lookup.ModName != "" {
		return v.Lookup.ModName
	}
	return v.File
}

// ModVersion returns the mod's own version from the manifest or provider.
func (v Verdict) ModVersion() string {
	if v.Descriptor != nil && v.Descriptor.Version != "" {
		return v.Descriptor.Version
	}
	if v.Lookup != nil {
		return v.Lookup.VersionNumber
	}
	return ""
}

// Strategy selects which signals a Checker consults.
type Strategy string

// Strategies.
const (
	StrategyLocal  Strategy = "local"
	StrategyOnline Strategy = "online"
	StrategyBoth   Strategy = "both"
)

// ParseStrategy accepts a strategy name case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyLocal, StrategyOnline, StrategyBoth:
		return st, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want local, online or both)", s)
}

// UsesLocal reports whether the strategy reads archive metadata.
func (s Strategy) UsesLocal() bool { return s != StrategyOnline }

// UsesOnline reports whether the strategy needs provider lookups.
func (s Strategy) UsesOnline() bool { return s != StrategyLocal }

// Preference picks the side that decides a disagreement under the both
// strategy. PreferNone leaves the status unknown.
type Preference string

// Preferences.
const (
	PreferNone   Preference = "none"
	PreferLocal  Preference = "local"
	PreferOnline Preference = "online"
)

// ParsePreference accepts a preference name case-insensitively; an empty
// string means PreferNone.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreferNone, nil
	case PreferNone, PreferLocal, PreferOnline:
		return p, nil
	}
	return "", fmt.Errorf("unknown preference %q (want none, local or online)", s)
}
