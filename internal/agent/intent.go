// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package agent

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// Intent classifies an incoming message for the keyword router.
type Intent string

const (
	IntentChat       Intent = "chat"
	IntentCorrection Intent = "correction"
	IntentPreference Intent = "preference"
)

// KeywordPack holds the router's substring tables for one locale.
type KeywordPack struct {
	Locale     string   `yaml:"locale"`
	Correction []string `yaml:"correction"`
	Preference []string `yaml:"preference"`
}

// builtinPacks are the keyword tables shipped with the binary.
var builtinPacks = []KeywordPack{
	{
		Locale:     "en",
		Correction: []string{"correct", "wrong", "mistake", "actually"},
		Preference: []string{"prefer", "preference", "rather", "instead"},
	},
	{
		Locale:     "pt",
		Correction: []string{"corrigir", "correção", "errado"},
		Preference: []string{"preferência", "preferir", "prefiro"},
	},
}

// LoadKeywordPacks reads additional locale keyword packs from a YAML
// file. The file holds a top-level "locales" list; each entry needs a
// locale name and at least one keyword table.
func LoadKeywordPacks(path string) ([]KeywordPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeAgentKeywordPackInvalid, "agent: reading keyword pack file",
			attuneerr.FieldPath(path),
		)
	}

	var doc struct {
		Locales []KeywordPack `yaml:"locales"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, attuneerr.Wrap(err, attuneerr.CodeAgentKeywordPackInvalid, "agent: keyword pack file is not valid YAML",
			attuneerr.FieldPath(path),
		)
	}

	for _, pack := range doc.Locales {
		if pack.Locale == "" {
			return nil, attuneerr.New(attuneerr.CodeAgentKeywordPackInvalid, "agent: keyword pack entry is missing a locale",
				attuneerr.FieldPath(path),
			)
		}
		if len(pack.Correction) == 0 && len(pack.Preference) == 0 {
			return nil, attuneerr.New(attuneerr.CodeAgentKeywordPackInvalid, "agent: keyword pack has no keywords",
				attuneerr.FieldPath(path),
				attuneerr.Field("locale", pack.Locale),
			)
		}
	}

	return doc.Locales, nil
}

// Router performs flat intent dispatch on locale-specific keyword
// substrings. It is a secondary entry path, independent of the four-stage
// pipeline.
type Router struct {
	correction []string
	preference []string
}

// NewRouter builds a Router for the given locale. Extra packs (from a
// keyword pack file) take precedence over the built-in tables; an
// unknown locale falls back to English.
func NewRouter(locale string, extra ...KeywordPack) *Router {
	pack, ok := findPack(locale, extra)
	if !ok {
		pack, ok = findPack(locale, builtinPacks)
	}
	if !ok {
		pack, _ = findPack("en", builtinPacks)
	}

	return &Router{
		correction: lowerAll(pack.Correction),
		preference: lowerAll(pack.Preference),
	}
}

// DetectIntent classifies message by substring match. Correction beats
// preference when both match; no match means plain chat.
func (r *Router) DetectIntent(message string) Intent {
	lowered := strings.ToLower(message)

	for _, keyword := range r.correction {
		if strings.Contains(lowered, keyword) {
			return IntentCorrection
		}
	}
	for _, keyword := range r.preference {
		if strings.Contains(lowered, keyword) {
			return IntentPreference
		}
	}
	return IntentChat
}

func findPack(locale string, packs []KeywordPack) (KeywordPack, bool) {
	for _, pack := range packs {
		if strings.EqualFold(pack.Locale, locale) {
			return pack, true
		}
	}
	return KeywordPack{}, false
}

func lowerAll(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, keyword := range keywords {
		out[i] = strings.ToLower(keyword)
	}
	return out
}
