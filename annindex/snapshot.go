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
	"encoding/gob"
	"math"
	"os"

	"github.com/hsmalley/ghostwire/pkg/errors"
)

// snapshotNode is the gob-friendly projection of node.
type snapshotNode struct {
	ID        int64
	Vector    []float32
	Neighbors [][]int64
}

type snapshotGraph struct {
	Cfg        Config
	Nodes      []snapshotNode
	EntryPoint int32
	MaxLevel   int
}

// Snapshot gob-encodes the full graph (adjacency and vectors) to path,
// so a restart can warm-start instead of rebuilding from the row store.
func (h *HNSW) Snapshot(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := snapshotGraph{
		Cfg:        h.cfg,
		EntryPoint: h.entryPoint,
		MaxLevel:   h.maxLevel,
		Nodes:      make([]snapshotNode, len(h.nodes)),
	}
	for i, n := range h.nodes {
		g.Nodes[i] = snapshotNode{ID: n.id, Vector: n.vector, Neighbors: n.neighbors}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create index snapshot file")
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(&g); err != nil {
		return errors.ErrIndexCorrupt.Wrap(err)
	}
	return nil
}

// Restore replaces the graph in place with the contents of a snapshot
// previously written by Snapshot. Returns ErrIndexCorrupt if the file
// cannot be decoded.
func (h *HNSW) Restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open index snapshot file")
	}
	defer f.Close()

	var g snapshotGraph
	if err := gob.NewDecoder(f).Decode(&g); err != nil {
		return errors.ErrIndexCorrupt.Wrap(err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = g.Cfg
	h.entryPoint = g.EntryPoint
	h.maxLevel = g.MaxLevel
	h.levelMult = 1.0 / math.Log(float64(h.cfg.M))
	h.nodes = make([]*node, len(g.Nodes))
	h.idToNode = make(map[int64]int32, len(g.Nodes))
	for i, sn := range g.Nodes {
		h.nodes[i] = &node{id: sn.ID, vector: sn.Vector, neighbors: sn.Neighbors}
		h.idToNode[sn.ID] = int32(i)
	}
	return nil
}
