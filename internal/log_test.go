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


package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	var stdout bytes.Buffer
	logStdout = &stdout
	defer func() { logStdout = os.Stdout }()

	fileName := filepath.Join(t.TempDir(), "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogPrintf("%d: aligned\n", 3)
	LogPrintln("done")
	if err := LogClose(); err != nil {
		t.Fatal(err)
	}

	want := "3: aligned\ndone\n"
	if got := stdout.String(); got != want {
		t.Errorf("stdout=%q; want %q", got, want)
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("file=%q; want %q", string(data), want)
	}
}
