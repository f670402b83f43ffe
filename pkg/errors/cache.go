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

package errors

// Cache layer errors
var (
	// ErrCacheMiss indicates no cache entry satisfied the lookup.
	ErrCacheMiss = &Error{
		Category: CategoryCache,
		Code:     "CACHE_MISS",
		Message:  "no cache entry found",
	}

	// ErrCacheExpired indicates a matching cache entry existed but had already expired.
	ErrCacheExpired = &Error{
		Category: CategoryCache,
		Code:     "CACHE_EXPIRED",
		Message:  "cache entry has expired",
	}

	// ErrCacheWriteFailed indicates a cache entry could not be persisted.
	ErrCacheWriteFailed = &Error{
		Category: CategoryCache,
		Code:     "CACHE_WRITE_FAILED",
		Message:  "failed to write cache entry",
	}
)

// Generation / embedding gateway errors
var (
	// ErrGeneratorUnavailable indicates no configured generation endpoint could be reached.
	ErrGeneratorUnavailable = &Error{
		Category: CategoryLLM,
		Code:     "GENERATOR_UNAVAILABLE",
		Message:  "generation endpoint unavailable",
	}

	// ErrEmbedderExhausted indicates every candidate embedding model failed.
	ErrEmbedderExhausted = &Error{
		Category: CategoryLLM,
		Code:     "EMBEDDER_EXHAUSTED",
		Message:  "all candidate embedding models failed",
	}

	// ErrSessionRequired indicates an operation requires a session identifier.
	ErrSessionRequired = &Error{
		Category: CategoryValidation,
		Code:     "SESSION_REQUIRED",
		Message:  "session_id is required",
	}
)
