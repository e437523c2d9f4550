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


package post

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loads an alignment operator from a YAML or JSON file, chosen by suffix.
// Missing entries keep their default values
func LoadOpAlign(fileName string) (*OpAlign, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	op := NewOpAlignDefault()
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &op.AlignConfig); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	case ".json":
		if err := json.Unmarshal(data, op); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	default:
		return nil, fmt.Errorf("unknown configuration file suffix in %s", fileName)
	}
	return op, nil
}

// Writes the settings of an alignment operator as YAML
func SaveAlignConfig(fileName string, ac *AlignConfig) error {
	data, err := yaml.Marshal(ac)
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, data, 0644)
}
