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

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hsmalley/ghostwire/core/resilience"
	"github.com/hsmalley/ghostwire/generator"
)

// SummaryConfig carries the character-count thresholds ThresholdSummarizer
// gates on, mirroring the original service's SUMMARY_* settings.
type SummaryConfig struct {
	ThresholdChars   int
	MaxLengthChars   int
	CompressionRatio float64
	MinOutputLength  int
	MaxOutputLength  int
	Model            string

	// Timeout bounds a single summarize call independently of the
	// generator's own request timeout. A point that times out keeps its
	// original, unsummarized text rather than blocking the upsert.
	Timeout time.Duration
}

// ThresholdSummarizer returns text shorter than ThresholdChars unchanged
// without calling the Generator Gateway, summarizes text up to
// MaxLengthChars in full through it, and truncates anything larger to
// MaxLengthChars before handing it to the model.
type ThresholdSummarizer struct {
	Generator generator.Gateway
	Cfg       SummaryConfig
}

func (s ThresholdSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if len(text) < s.Cfg.ThresholdChars {
		return text, nil
	}

	original := text
	if len(text) > s.Cfg.MaxLengthChars {
		text = text[:s.Cfg.MaxLengthChars]
	}

	target := int(float64(len(text)) * s.Cfg.CompressionRatio)
	if target < s.Cfg.MinOutputLength {
		target = s.Cfg.MinOutputLength
	}
	if target > s.Cfg.MaxOutputLength {
		target = s.Cfg.MaxOutputLength
	}

	prompt := fmt.Sprintf(
		"Summarize this text concisely, keeping key details. Target length: approximately %d characters.\n\n%s",
		target, text,
	)

	var timeoutCfg *resilience.TimeoutConfig
	if s.Cfg.Timeout > 0 {
		timeoutCfg = &resilience.TimeoutConfig{Duration: s.Cfg.Timeout}
	}

	var sb strings.Builder
	err := resilience.WithTimeout(ctx, timeoutCfg, func(ctx context.Context) error {
		seq, streamErr := s.Generator.Stream(ctx, prompt, s.Cfg.Model)
		if streamErr != nil {
			return streamErr
		}
		for chunk := range seq {
			sb.WriteString(chunk)
		}
		return nil
	})
	if err != nil {
		return original, nil
	}

	summary := strings.TrimSpace(sb.String())
	if summary == "" {
		return original, nil
	}

	if len(summary) > s.Cfg.MaxOutputLength {
		cut := summary[:s.Cfg.MaxOutputLength]
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		summary = cut + "..."
	}
	return summary, nil
}
