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

package health

import "context"

// RowStoreSizer is satisfied by rowstore.Store. SizeOf against an
// empty session id is a cheap, non-mutating round trip to the
// underlying connection and doubles as a liveness probe.
type RowStoreSizer interface {
	SizeOf(ctx context.Context, sessionID string) (int, error)
}

// RowStoreChecker reports whether the turn store is reachable. Unlike
// the cache, the row store is the source of truth: when it can't be
// reached the service can't serve any request, so a failure here is
// unhealthy, not merely degraded.
type RowStoreChecker struct {
	store RowStoreSizer
}

// NewRowStoreChecker wraps a row store as a health Checker.
func NewRowStoreChecker(store RowStoreSizer) *RowStoreChecker {
	return &RowStoreChecker{store: store}
}

func (c *RowStoreChecker) Name() string { return "rowstore" }

func (c *RowStoreChecker) Check(ctx context.Context) CheckResult {
	if _, err := c.store.SizeOf(ctx, ""); err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusUnhealthy,
			Message: "row store unreachable: " + err.Error(),
		}
	}

	return CheckResult{
		Name:   c.Name(),
		Status: StatusHealthy,
	}
}

// IndexSizer is satisfied by annindex.Index.
type IndexSizer interface {
	Size() int
}

// IndexChecker reports the ANN index's current element count. An
// empty index is still healthy — a cold-started service with no turns
// ingested yet is a valid, serving state — so this check never fails
// on its own; it exists to surface index size on /readyz for
// operators, the same way CacheChecker surfaces cache occupancy.
type IndexChecker struct {
	index IndexSizer
}

// NewIndexChecker wraps an ANN index as a health Checker.
func NewIndexChecker(index IndexSizer) *IndexChecker {
	return &IndexChecker{index: index}
}

func (c *IndexChecker) Name() string { return "index" }

func (c *IndexChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Name:   c.Name(),
		Status: StatusHealthy,
		Details: map[string]interface{}{
			"size": c.index.Size(),
		},
	}
}
