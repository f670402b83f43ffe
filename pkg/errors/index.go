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

// Approximate nearest neighbor index errors
var (
	// ErrIndexDimensionMismatch indicates a vector's dimension does not match the index.
	ErrIndexDimensionMismatch = &Error{
		Category: CategoryIndex,
		Code:     "INDEX_DIMENSION_MISMATCH",
		Message:  "vector dimension does not match index dimension",
	}

	// ErrIndexCapacityExceeded indicates the index has reached its configured element capacity.
	ErrIndexCapacityExceeded = &Error{
		Category: CategoryIndex,
		Code:     "INDEX_CAPACITY_EXCEEDED",
		Message:  "index has reached its maximum element capacity",
	}

	// ErrIndexEmpty indicates a query was attempted against an index with no entries.
	ErrIndexEmpty = &Error{
		Category: CategoryIndex,
		Code:     "INDEX_EMPTY",
		Message:  "index contains no entries",
	}

	// ErrIndexCorrupt indicates a persisted index snapshot could not be decoded.
	ErrIndexCorrupt = &Error{
		Category: CategoryIndex,
		Code:     "INDEX_CORRUPT",
		Message:  "index snapshot is corrupt or unreadable",
	}
)
