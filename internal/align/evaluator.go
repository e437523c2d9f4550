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

import (
	"fmt"

	"github.com/klauspost/cpuid"
)

// Choice of tile difference evaluator
type EvaluatorKind int

const (
	EvaluatorAuto    EvaluatorKind = iota // Sliding where supported and its window fits the L1 data cache, generic elsewhere
	EvaluatorGeneric                      // Generic on all levels
	EvaluatorSliding                      // Sliding on all levels, requires search distance 2 everywhere
)

var evaluatorKindNames = []string{"auto", "generic", "sliding"}

func (k EvaluatorKind) String() string {
	if k < 0 || int(k) >= len(evaluatorKindNames) {
		return fmt.Sprintf("EvaluatorKind(%d)", int(k))
	}
	return evaluatorKindNames[k]
}

func ParseEvaluatorKind(s string) (EvaluatorKind, error) {
	for i, n := range evaluatorKindNames {
		if s == n {
			return EvaluatorKind(i), nil
		}
	}
	return EvaluatorAuto, configErrorf("evaluator", "unknown kind '%s'", s)
}

// Size of the L1 data cache in bytes, or <=0 if unknown. Variable for tests
var l1DataCache = cpuid.CPU.Cache.L1D

// Selects the evaluator for a level
func evaluatorFor(kind EvaluatorKind, l Level) (Evaluator, error) {
	switch kind {
	case EvaluatorGeneric:
		return GenericEvaluator{}, nil
	case EvaluatorSliding:
		if l.SearchDist != slidingDist {
			return nil, configErrorf("searchDist", "sliding evaluator supports search distance %d only, got %d", slidingDist, l.SearchDist)
		}
		return SlidingEvaluator{}, nil
	case EvaluatorAuto:
		if l.SearchDist == slidingDist && (l1DataCache <= 0 || slidingWindowBytes(l.TileSize) <= l1DataCache) {
			return SlidingEvaluator{}, nil
		}
		return GenericEvaluator{}, nil
	}
	return nil, configErrorf("evaluator", "unknown kind %d", int(kind))
}
