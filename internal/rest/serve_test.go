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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/insarseed/internal/stack"
)

func init() { gin.SetMode(gin.TestMode) }

func request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	NewRouter().ServeHTTP(w, req)
	return w
}

// Changes into a fresh temporary directory for the duration of the test
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestPing(t *testing.T) {
	w := request(t, http.MethodGet, "/api/v1/ping", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestRejectedRequests(t *testing.T) {
	tests := []struct {
		path, body string
	}{
		{"/api/v1/seed", `{"filePatterns":["a.fits"],"seed":{"strategy":"manual"}}`},
		{"/api/v1/seed", `{"filePatterns":["/etc/a.fits"]}`},
		{"/api/v1/seed", `{"filePatterns":["a.fits"],"seed":{"maskFile":"../mask.fits"}}`},
		{"/api/v1/seed", `{"filePatterns":["a.fits"],"seed":{"strategy":"nearest"}}`},
		{"/api/v1/seed", `{"filePatterns":["a.fits"],"seed":{"prefix":"../escaped_"}}`},
		{"/api/v1/reset", `{"filePatterns":["../a.fits"]}`},
		{"/api/v1/refdate", `{"filePatterns":["a.fits"]}`},
		{"/api/v1/refdate", `not json`},
	}
	for _, test := range tests {
		w := request(t, http.MethodPost, test.path, test.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s %s got %d; want 400", test.path, test.body, w.Code)
		}
	}
}

func TestSeedPrefixStaysInTree(t *testing.T) {
	dir := inTempDir(t)
	if err := os.Mkdir("srv", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir("srv"); err != nil {
		t.Fatal(err)
	}
	ds := &stack.Dataset{FileType: "velocity", Width: 2, Height: 2, Attrs: stack.Attributes{}}
	ds.Epochs = []*stack.Epoch{{Key: "velocity", Data: []float64{1, 2, 3, 4}, Width: 2, Height: 2, Attrs: stack.Attributes{}, Bitpix: -32}}
	if err := stack.Save(ds, stack.CreateFITS("velocity.fits", 0, "velocity", false)); err != nil {
		t.Fatal(err)
	}

	w := request(t, http.MethodPost, "/api/v1/seed", `{"filePatterns":["velocity.fits"],"seed":{"prefix":"../escaped_"}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d; want 400", w.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, "escaped_velocity.fits")); err == nil {
		t.Errorf("output written outside the served directory")
	}
}

func TestSeedStreamsLog(t *testing.T) {
	dir := inTempDir(t)
	ds := &stack.Dataset{FileType: "velocity", Width: 2, Height: 2, Attrs: stack.Attributes{}}
	ds.Epochs = []*stack.Epoch{{Key: "velocity", Data: []float64{1, 2, 3, 4}, Width: 2, Height: 2, Attrs: stack.Attributes{}, Bitpix: -32}}
	if err := stack.Save(ds, stack.CreateFITS("velocity.fits", 0, "velocity", false)); err != nil {
		t.Fatal(err)
	}

	w := request(t, http.MethodPost, "/api/v1/seed", `{"filePatterns":["*.fits"],"seed":{"strategy":"input-coord","refY":0,"refX":1}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "1 of 1 files succeeded") {
		t.Errorf("log does not report success:\n%s", body)
	}
	if _, err := os.Stat(filepath.Join(dir, "Seeded_velocity.fits")); err != nil {
		t.Errorf("output missing: %s", err)
	}

	w = request(t, http.MethodPost, "/api/v1/reset", `{"filePatterns":["Seeded_velocity.fits"]}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "reference attributes removed") {
		t.Errorf("reset got %d:\n%s", w.Code, w.Body.String())
	}
}
