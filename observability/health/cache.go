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

import (
	"context"

	"github.com/hsmalley/ghostwire/memcache"
)

// CacheStater is satisfied by memcache.Cache.
type CacheStater interface {
	Stats(ctx context.Context) (memcache.Stats, error)
}

// CacheChecker reports response-cache occupancy. It never reports
// unhealthy on its own — a cache backend outage degrades the service
// (no cached response, falls through to the full pipeline) but doesn't
// make it unable to serve traffic.
type CacheChecker struct {
	cache CacheStater
}

// NewCacheChecker wraps a cache backend as a health Checker.
func NewCacheChecker(cache CacheStater) *CacheChecker {
	return &CacheChecker{cache: cache}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	stats, err := c.cache.Stats(ctx)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusDegraded,
			Message: "cache stats unavailable: " + err.Error(),
		}
	}

	return CheckResult{
		Name:   c.Name(),
		Status: StatusHealthy,
		Details: map[string]interface{}{
			"total_entries":   stats.TotalEntries,
			"expired_entries": stats.ExpiredEntries,
			"active_entries":  stats.ActiveEntries,
		},
	}
}
