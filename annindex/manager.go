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

package annindex

import (
	"context"
	"encoding/binary"
	"iter"
	"math"
	"os"
)

// embeddingSource is the subset of rowstore.Store the warm rebuild
// path needs; declared locally so this package doesn't import rowstore
// and create a dependency cycle (rag wires the two together).
type embeddingSource interface {
	AllEmbeddings(ctx context.Context) (iter.Seq2[int64, []byte], error)
}

// Initialize loads idx from a snapshot at snapshotPath if one exists
// and decodes cleanly; otherwise it warm-rebuilds by replaying every
// embedding in source, mirroring the Python original's
// initialize_index/_backfill_from_db fallback chain.
func Initialize(idx *HNSW, snapshotPath string, source embeddingSource) error {
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err == nil {
			if restoreErr := idx.Restore(snapshotPath); restoreErr == nil {
				return nil
			}
			// Fall through to rebuild on a corrupt snapshot.
		}
	}

	seq, err := source.AllEmbeddings(context.Background())
	if err != nil {
		return err
	}

	var addErr error
	seq(func(id int64, blob []byte) bool {
		vec := decodeFloat32s(blob)
		if len(vec) != idx.cfg.Dim {
			// Mismatched-dimension rows are skipped, not fatal — the
			// original backfill logs and continues.
			return true
		}
		if err := idx.Add(vec, id); err != nil {
			addErr = err
			return false
		}
		return true
	})

	return addErr
}

func decodeFloat32s(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
