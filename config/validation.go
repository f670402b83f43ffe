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

package config

import (
	"fmt"
)

// Validate validates the entire configuration.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateContext(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	validBackends := map[string]bool{"memory": true, "sqlite": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("store backend must be one of: memory, sqlite")
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path must not be empty when backend is sqlite")
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Index.Dim <= 0 {
		return fmt.Errorf("index dimension must be positive")
	}
	if c.Index.MaxElements <= 0 {
		return fmt.Errorf("index max elements must be positive")
	}
	if c.Index.M <= 0 {
		return fmt.Errorf("index M parameter must be positive")
	}
	if c.Index.EfConstruction <= 0 {
		return fmt.Errorf("index ef_construction must be positive")
	}
	return nil
}

func (c *Config) validateContext() error {
	validStrategies := map[string]bool{"recency": true, "relevance": true, "hybrid": true}
	if !validStrategies[c.Context.Strategy] {
		return fmt.Errorf("context strategy must be one of: recency, relevance, hybrid")
	}
	if c.Context.MinItems < 0 || c.Context.MaxItems < c.Context.MinItems {
		return fmt.Errorf("context max_items must be >= min_items")
	}
	if c.Context.MaxTokens <= 0 {
		return fmt.Errorf("context max_tokens must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	validBackends := map[string]bool{"sqlite": true, "redis": true}
	if !validBackends[c.Cache.Backend] {
		return fmt.Errorf("cache backend must be one of: sqlite, redis")
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache similarity threshold must be between 0 and 1")
	}
	return nil
}
