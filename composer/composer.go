// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package composer selects and trims retrieved context snippets so they
// fit a token budget, then formats them into the text block prepended
// to a generation prompt.
package composer

import (
	"fmt"
	"strings"
)

// Strategy names the context-selection strategy, mirroring
// settings.CONTEXT_COMPRESSION_STRATEGY.
type Strategy string

const (
	StrategyRecency   Strategy = "recency"
	StrategyRelevance Strategy = "relevance"
	StrategyHybrid    Strategy = "hybrid"
)

// Config parameterizes context composition.
type Config struct {
	MaxTokens           int
	MinItems            int
	MaxItems            int
	Strategy            Strategy
	DisableOptimization bool
}

// DefaultConfig mirrors the Python settings module's context defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 2000,
		MinItems:  1,
		MaxItems:  10,
		Strategy:  StrategyHybrid,
	}
}

// EstimateTokenCount estimates how many tokens text costs, averaging a
// character-based and a word-based estimate — a rough proxy good enough
// for budgeting without a real tokenizer, as the original Python
// implementation notes.
func EstimateTokenCount(text string) int {
	charTokens := float64(len(text)) / 4.0
	wordTokens := float64(len(strings.Fields(text))) / 0.75

	estimated := int((charTokens + wordTokens) / 2)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// TruncateToTokens shortens text to approximately maxTokens tokens,
// preferring to cut at a sentence boundary when one falls reasonably
// close to the target length.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	current := EstimateTokenCount(text)
	if current <= maxTokens {
		return text
	}

	ratio := float64(maxTokens) / float64(current)
	targetChars := int(float64(len(text)) * ratio * 0.9)
	if targetChars > len(text) {
		targetChars = len(text)
	}
	if targetChars < 0 {
		targetChars = 0
	}

	truncated := text[:targetChars]

	sentenceEnd := lastSentenceBoundary(truncated)
	if sentenceEnd > int(float64(targetChars)*0.7) {
		truncated = truncated[:sentenceEnd+1]
	}

	return truncated
}

func lastSentenceBoundary(s string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(s, sep); idx > best {
			best = idx
		}
	}
	return best
}

// Optimize selects and trims contexts to fit within cfg.MaxTokens,
// applying cfg.Strategy to decide which contexts to keep when there are
// more than cfg.MaxItems available. contexts is assumed already ordered
// the way the strategy wants (most-relevant-first for "relevance" and
// "hybrid", most-recent-first for "recency") — composer only selects
// and trims, it never re-sorts.
func Optimize(contexts []string, cfg Config) []string {
	if len(contexts) == 0 {
		return nil
	}

	if cfg.DisableOptimization {
		return capItems(contexts, cfg.MaxItems)
	}

	selected := selectByStrategy(contexts, cfg)

	if len(selected) < cfg.MinItems && len(contexts) >= cfg.MinItems {
		selected = contexts[:cfg.MinItems]
	}

	return fitToTokenBudget(selected, cfg.MaxTokens)
}

func capItems(contexts []string, maxItems int) []string {
	if maxItems > 0 && len(contexts) > maxItems {
		return contexts[:maxItems]
	}
	return contexts
}

func selectByStrategy(contexts []string, cfg Config) []string {
	switch cfg.Strategy {
	case StrategyRecency, StrategyRelevance:
		return capItems(contexts, cfg.MaxItems)
	default: // hybrid
		if len(contexts) <= cfg.MinItems || len(contexts) <= cfg.MaxItems {
			return contexts
		}

		half := cfg.MaxItems / 2
		mostRelevant := contexts[:half]

		var recent []string
		if len(contexts) > half {
			recent = contexts[len(contexts)-half:]
		} else {
			recent = contexts
		}

		seen := make(map[string]bool, len(mostRelevant)+len(recent))
		combined := make([]string, 0, cfg.MaxItems)
		for _, c := range append(append([]string{}, mostRelevant...), recent...) {
			if seen[c] {
				continue
			}
			seen[c] = true
			combined = append(combined, c)
		}
		return capItems(combined, cfg.MaxItems)
	}
}

func fitToTokenBudget(selected []string, maxTokens int) []string {
	out := make([]string, 0, len(selected))
	remaining := maxTokens

	for _, ctx := range selected {
		if remaining <= 0 {
			break
		}

		tokens := EstimateTokenCount(ctx)
		if tokens <= remaining {
			out = append(out, ctx)
			remaining -= tokens
			continue
		}

		truncated := TruncateToTokens(ctx, remaining)
		if len(truncated) > 50 {
			out = append(out, truncated)
			remaining = 0
		}
	}

	return out
}

// Format joins optimized contexts into the single text block prepended
// to a generation prompt.
func Format(contexts []string) string {
	if len(contexts) == 0 {
		return ""
	}
	return fmt.Sprintf("Relevant prior notes: %s\n\n", strings.Join(contexts, " | "))
}
