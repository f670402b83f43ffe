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

package rag

import (
	"context"
	"fmt"

	"github.com/hsmalley/ghostwire/annindex"
	"github.com/hsmalley/ghostwire/observability/logging"
	"github.com/hsmalley/ghostwire/pkg/errors"
	"github.com/hsmalley/ghostwire/rowstore"
	"github.com/hsmalley/ghostwire/vectorutil"
)

// MemoryWriter persists a turn to the row store and keeps the ANN index
// in sync, the two writes GhostWire needs after every completed
// generation (and for any caller-supplied embedding ingested directly,
// bypassing generation).
type MemoryWriter struct {
	Store  rowstore.Store
	Index  annindex.Index
	Logger logging.Logger
}

// Write validates embedding, normalizes it, inserts the turn into the
// row store, and adds the embedding to the ANN index. A failure to add
// to the index is logged but not returned — the row store remains the
// source of truth and the index can always be rebuilt from it, so a
// transient index failure must not fail the whole write.
func (w MemoryWriter) Write(ctx context.Context, sessionID, prompt, answer string, embedding []float32) (int64, error) {
	if err := validateEmbedding(embedding); err != nil {
		return 0, err
	}

	normalized := vectorutil.Normalize(embedding)

	id, err := w.Store.Insert(ctx, sessionID, prompt, answer, normalized)
	if err != nil {
		return 0, errors.ErrStorageConnection.Wrap(err)
	}

	if w.Index != nil {
		if err := w.Index.Add(normalized, id); err != nil {
			w.logf(ctx, "ANN index add failed for turn %d (session %s): %v", id, sessionID, err)
		}
	}

	return id, nil
}

func validateEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return errors.ErrInvalidInput.WithMessage("embedding must not be empty")
	}
	for _, f := range embedding {
		if f != f || f > maxFinite || f < -maxFinite {
			return errors.ErrInvalidInput.WithMessage("embedding must contain only finite values")
		}
	}
	return nil
}

// maxFinite bounds what we consider a sane embedding component; wildly
// out-of-range values (e.g. +Inf) are rejected the same as NaN.
const maxFinite = 3.4e38

func (w MemoryWriter) logf(ctx context.Context, format string, args ...interface{}) {
	if w.Logger == nil {
		return
	}
	w.Logger.Warn(ctx, fmt.Sprintf(format, args...), logging.Field{Key: "component", Value: "rag.MemoryWriter"})
}
