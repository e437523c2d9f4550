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


package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/burstalign/internal/synth"
)

func init() { gin.SetMode(gin.TestMode) }

func TestPing(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	NewRouter().ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("ping returned %d %s", w.Code, w.Body.String())
	}
}

func TestIndex(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/align") {
		t.Errorf("index returned %d", w.Code)
	}
}

func TestBadRequest(t *testing.T) {
	for _, path := range []string{"/api/v1/stats", "/api/v1/align"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"filePatterns":`))
		req.Header.Set("Content-Type", "application/json")
		NewRouter().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s returned %d; want %d", path, w.Code, http.StatusBadRequest)
		}
	}
}

// Changes into a temporary directory holding a synthetic three frame burst f0.tif to f2.tif
func chdirBurst(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	burst := synth.NewBurst(synth.BurstConfig{Width: 128, Height: 128, Frames: 3, MaxShift: 2, Seed: 5})
	for i, bf := range burst {
		if err := bf.Image.WriteTIFF16ToFile(fmt.Sprintf("f%d.tif", i), 0, 65535, 1); err != nil {
			t.Fatal(err)
		}
	}
}

func postJSON(path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	NewRouter().ServeHTTP(w, req)
	return w
}

const testLevels = `"levels": [
			{"factor": 1, "tileSize": 16, "searchDist": 2, "l2Weight": 0},
			{"factor": 2, "tileSize": 16, "searchDist": 2, "l2Weight": 1}
		]`

func TestPostAlign(t *testing.T) {
	chdirBurst(t)
	body := `{
		"filePatterns": ["f*.tif"],
		"selectRef": {"mode": 3, "fileID": 1},
		"align": {` + testLevels + `},
		"save": {"active": true, "filePattern": "a%d.tif"}
	}`
	w := postJSON("/api/v1/align", body)

	log := w.Body.String()
	if w.Code != http.StatusOK || strings.Contains(log, "error:") {
		t.Fatalf("align returned %d:\n%s", w.Code, log)
	}
	for _, want := range []string{"Using image 1", "1: Reference frame", "Aligned 3 frames."} {
		if !strings.Contains(log, want) {
			t.Errorf("log lacks %q:\n%s", want, log)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(fmt.Sprintf("a%d.tif", i)); err != nil {
			t.Errorf("output %d missing: %v", i, err)
		}
	}
}

func TestPostAlignWritesOutsideTree(t *testing.T) {
	chdirBurst(t)
	outside := t.TempDir()
	viz := filepath.ToSlash(filepath.Join(outside, "viz%d.png"))
	save := filepath.ToSlash(filepath.Join(outside, "a%d.tif"))
	stats := filepath.ToSlash(filepath.Join(outside, "stats.csv"))

	bodies := map[string]string{
		"fieldViz": `{"filePatterns": ["f*.tif"], "selectRef": {"mode": 3, "fileID": 1},
			"align": {` + testLevels + `, "fieldViz": "` + viz + `"}}`,
		"save": `{"filePatterns": ["f*.tif"], "selectRef": {"mode": 3, "fileID": 1},
			"align": {` + testLevels + `}, "save": {"active": true, "filePattern": "` + save + `"}}`,
		"exportStats": `{"filePatterns": ["f*.tif"], "selectRef": {"mode": 3, "fileID": 1},
			"align": {` + testLevels + `}, "exportStats": {"active": true, "fileName": "` + stats + `"}}`,
		"parent": `{"filePatterns": ["f*.tif"], "selectRef": {"mode": 3, "fileID": 1},
			"align": {` + testLevels + `}, "save": {"active": true, "filePattern": "../a%d.tif"}}`,
	}
	for name, body := range bodies {
		w := postJSON("/api/v1/align", body)
		log := w.Body.String()
		if !strings.Contains(log, "error:") || !strings.Contains(log, "outside current directory tree") {
			t.Errorf("%s: no error streamed:\n%s", name, log)
		}
		if strings.Contains(log, "Aligned 3 frames.") {
			t.Errorf("%s: alignment reported success:\n%s", name, log)
		}
	}

	w := postJSON("/api/v1/stats", `{"filePatterns": ["f*.tif"], "exportStats": {"active": true, "fileName": "`+stats+`"}}`)
	if log := w.Body.String(); !strings.Contains(log, "outside current directory tree") {
		t.Errorf("stats: no error streamed:\n%s", log)
	}

	entries, err := os.ReadDir(outside)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("file %s written outside tree", e.Name())
	}
	if _, err := os.Stat(filepath.Join("..", "a0.tif")); !os.IsNotExist(err) {
		t.Errorf("file written to parent directory: %v", err)
	}
}
