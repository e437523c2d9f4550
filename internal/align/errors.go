// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package align

import "fmt"

// Invalid or inconsistent alignment parameters. Detected before any parallel work starts.
type ConfigurationError struct {
	Field string // Name of the offending parameter
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Intermediate buffers of an alignment pass would exceed the memory budget
type ResourceError struct {
	What   string
	Needed int64 // Estimated bytes
	Budget int64 // Configured limit in bytes
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s needs %d MB, exceeding the budget of %d MB", e.What, e.Needed>>20, e.Budget>>20)
}
