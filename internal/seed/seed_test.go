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

package seed

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/mlnoga/insarseed/internal/stack"
	"github.com/valyala/fastrand"
)

// Builds a dataset with one epoch per data slice, all of the given size
func newDataset(width, height int, grouped bool, keys []string, data ...[]float64) *stack.Dataset {
	ds := &stack.Dataset{FileName: "test", FileType: "timeseries", Grouped: grouped,
		Width: width, Height: height, Attrs: stack.Attributes{}}
	for i, d := range data {
		ds.Epochs = append(ds.Epochs, &stack.Epoch{Key: keys[i], Data: append([]float64(nil), d...),
			Width: width, Height: height, Attrs: stack.Attributes{}, Bitpix: -32})
	}
	return ds
}

func scenarioEpoch() *stack.Dataset {
	return newDataset(3, 3, false, []string{"velocity"}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
}

func TestExplicitPointSubtraction(t *testing.T) {
	ds := scenarioEpoch()
	cfg := &Config{Strategy: InputCoord, Point: &Point{1, 1}, RandomFallback: true}
	res, err := Seed(ds, cfg, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if res.Resolution.Strategy != InputCoord || res.Resolution.Point != (Point{1, 1}) {
		t.Errorf("resolution got %+v", res.Resolution)
	}
	want := []float64{-4, -3, -2, -1, 0, 1, 2, 3, 4}
	got := res.Dataset.Epochs[0].Data
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d got %g want %g", i, got[i], want[i])
		}
	}
	for _, attrs := range []stack.Attributes{res.Dataset.Attrs, res.Dataset.Epochs[0].Attrs} {
		if attrs[stack.KeyRefY] != "1" || attrs[stack.KeyRefX] != "1" || attrs[stack.KeyRefMethod] != "input-coord" {
			t.Errorf("attributes got %v", attrs)
		}
		if attrs.Has(stack.KeyRefLat) {
			t.Errorf("ref_lat set on non-geocoded dataset")
		}
	}
	if ds.Epochs[0].Data[0] != 1 || ds.Attrs.Has(stack.KeyRefY) {
		t.Errorf("input dataset was modified")
	}
}

func TestMaskedPointFallsThroughToRandom(t *testing.T) {
	mask := []bool{false, true, true, true, true, true, true, true, true}
	for i := 0; i < 50; i++ {
		log := &bytes.Buffer{}
		cfg := &Config{Strategy: Random, Point: &Point{0, 0}, Mask: mask}
		res, err := Seed(scenarioEpoch(), cfg, 0, log)
		if err != nil {
			t.Fatalf("seed: %s", err)
		}
		if res.Resolution.Strategy != Random {
			t.Fatalf("strategy got %s want random", res.Resolution.Strategy)
		}
		if res.Resolution.Point == (Point{0, 0}) {
			t.Fatalf("masked point accepted")
		}
		if !bytes.Contains(log.Bytes(), []byte("Warning: input-coord")) {
			t.Errorf("missing fall-through warning in log %q", log.String())
		}
	}
}

func TestOutOfBoundsPointFallsThroughToRandom(t *testing.T) {
	for _, p := range []Point{{3, 0}, {0, 3}, {-1, 1}, {1, -1}} {
		cfg := &Config{Strategy: Random, Point: &p}
		res, err := Seed(scenarioEpoch(), cfg, 0, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("seed: %s", err)
		}
		if res.Resolution.Strategy != Random || res.Resolution.Point == p {
			t.Errorf("point %v: got %+v", p, res.Resolution)
		}
	}
}

func TestGlobalAverage(t *testing.T) {
	ds := newDataset(2, 2, true, []string{"A", "B"}, []float64{1, 1, 1, 1}, []float64{2, 2, 2, 2})
	ds.Attrs[stack.KeyRefY], ds.Attrs[stack.KeyRefX] = "0", "0"
	res, err := Seed(ds, &Config{Strategy: GlobalAverage, Point: &Point{0, 0}}, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if !res.Resolution.GlobalAverage {
		t.Errorf("expected global average, got %+v", res.Resolution)
	}
	if res.Values["A"] != 1 || res.Values["B"] != 2 {
		t.Errorf("values got %v", res.Values)
	}
	for _, e := range res.Dataset.Epochs {
		for i, v := range e.Data {
			if v != 0 {
				t.Errorf("epoch %s pixel %d got %g want 0", e.Key, i, v)
			}
		}
		if e.Attrs[stack.KeyRefMethod] != "global-average" {
			t.Errorf("epoch %s method got %q", e.Key, e.Attrs[stack.KeyRefMethod])
		}
	}
	if res.Dataset.Attrs.Has(stack.KeyRefY) || res.Dataset.Attrs.Has(stack.KeyRefX) {
		t.Errorf("point attributes kept for global average: %v", res.Dataset.Attrs)
	}
}

func TestGlobalAverageIgnoresInvalidPixels(t *testing.T) {
	ds := newDataset(2, 2, true, []string{"A", "B"}, []float64{1, 3, math.NaN(), 100}, []float64{2, 4, 6, 8})
	mask := []bool{true, true, true, false}
	res, err := Seed(ds, &Config{Strategy: GlobalAverage, Mask: mask}, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if res.Values["A"] != 2 || res.Values["B"] != 3 {
		t.Errorf("values got %v want A=2 B=3", res.Values)
	}
}

func TestLowQualityFallsThroughToRandom(t *testing.T) {
	quality := make([]float64, 9)
	for i := range quality {
		quality[i] = 0.5
	}
	log := &bytes.Buffer{}
	cfg := &Config{Strategy: MaxCoherence, Quality: quality, MinQuality: DefaultMinQuality, RandomFallback: true}
	res, err := Seed(scenarioEpoch(), cfg, 0, log)
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if res.Resolution.Strategy != Random {
		t.Errorf("strategy got %s want random", res.Resolution.Strategy)
	}
	if !bytes.Contains(log.Bytes(), []byte(ErrNoQualifyingPixel.Error())) {
		t.Errorf("log lacks quality warning: %q", log.String())
	}

	// without random fallback, resolution fails
	cfg.RandomFallback = false
	_, err = Seed(scenarioEpoch(), cfg, 0, &bytes.Buffer{})
	if !errors.Is(err, ErrNoReferencePoint) {
		t.Errorf("got %v want ErrNoReferencePoint", err)
	}
}

func TestMaxCoherencePicksQualifyingPixel(t *testing.T) {
	quality := []float64{0.9, 0.1, 0.95, 0.2, 0.99, 0.3, 0.4, 0.5, math.NaN()}
	mask := []bool{false, true, true, true, true, true, true, true, true}
	for i := 0; i < 50; i++ {
		cfg := &Config{Strategy: MaxCoherence, Quality: quality, MinQuality: 0.85, Mask: mask}
		res, err := Seed(scenarioEpoch(), cfg, 0, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("seed: %s", err)
		}
		p := res.Resolution.Point
		if res.Resolution.Strategy != MaxCoherence || (p != Point{0, 2} && p != Point{1, 1}) {
			t.Fatalf("got %+v, want max-coherence at (0,2) or (1,1)", res.Resolution)
		}
	}
}

func TestResolvedPointIsAlwaysValid(t *testing.T) {
	rng := fastrand.RNG{}
	for iter := 0; iter < 200; iter++ {
		width, height := 1+int(rng.Uint32n(8)), 1+int(rng.Uint32n(8))
		data := make([]float64, width*height)
		mask := make([]bool, width*height)
		anyValid := false
		for i := range data {
			data[i] = float64(rng.Uint32n(100))
			if rng.Uint32n(5) == 0 {
				data[i] = math.NaN()
			}
			mask[i] = rng.Uint32n(3) != 0
			anyValid = anyValid || (mask[i] && !math.IsNaN(data[i]))
		}
		ds := newDataset(width, height, false, []string{"x"}, data)
		p := &Point{int(rng.Uint32n(uint32(height + 2))), int(rng.Uint32n(uint32(width + 2)))}
		quality := make([]float64, width*height)
		for i := range quality {
			quality[i] = float64(rng.Uint32n(100)) / 100
		}
		cfg := &Config{Strategy: MaxCoherence, Point: p, Mask: mask, Quality: quality, MinQuality: 0.5, RandomFallback: true}

		res, err := Seed(ds, cfg, iter, &bytes.Buffer{})
		if !anyValid {
			if !errors.Is(err, ErrEmptyValidity) {
				t.Errorf("iteration %d: got %v want ErrEmptyValidity", iter, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("iteration %d: %s", iter, err)
		}
		q := res.Resolution.Point
		idx := q.Row*width + q.Col
		if q.Row < 0 || q.Row >= height || q.Col < 0 || q.Col >= width || !mask[idx] || math.IsNaN(data[idx]) {
			t.Fatalf("iteration %d: invalid point %v via %s", iter, q, res.Resolution.Strategy)
		}
		if v := res.Dataset.Epochs[0].Data[idx]; v != 0 {
			t.Errorf("iteration %d: value at reference point got %g want 0", iter, v)
		}
	}
}

func TestEmptyMaskRejected(t *testing.T) {
	picker := &fakePicker{}
	cfg := &Config{Strategy: Manual, Mask: make([]bool, 9), Picker: picker, RandomFallback: true}
	_, err := Seed(scenarioEpoch(), cfg, 0, &bytes.Buffer{})
	if !errors.Is(err, ErrEmptyValidity) {
		t.Errorf("got %v want ErrEmptyValidity", err)
	}
	if picker.calls != 0 {
		t.Errorf("picker called %d times before validity check", picker.calls)
	}
}

func TestRemoveKeepsData(t *testing.T) {
	ds := scenarioEpoch()
	ds.SetAttr(stack.KeyRefY, "1")
	ds.SetAttr(stack.KeyRefX, "1")
	before := append([]float64(nil), ds.Epochs[0].Data...)
	if !Remove(ds) {
		t.Errorf("Remove reported no attributes")
	}
	for i := range before {
		if ds.Epochs[0].Data[i] != before[i] {
			t.Errorf("pixel %d changed", i)
		}
	}
	for _, attrs := range []stack.Attributes{ds.Attrs, ds.Epochs[0].Attrs} {
		if attrs.Has(stack.KeyRefY) || attrs.Has(stack.KeyRefX) {
			t.Errorf("reference attributes left: %v", attrs)
		}
	}
	if Remove(ds) {
		t.Errorf("second Remove reported attributes")
	}
}

func TestReapplyingSamePointIsNoop(t *testing.T) {
	cfg := &Config{Strategy: InputCoord, Point: &Point{2, 0}}
	first, err := Seed(scenarioEpoch(), cfg, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("first: %s", err)
	}
	second, err := Seed(first.Dataset, cfg, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("second: %s", err)
	}
	if !second.NoOp {
		t.Errorf("second application not a no-op")
	}
	for i, v := range first.Dataset.Epochs[0].Data {
		if second.Dataset.Epochs[0].Data[i] != v {
			t.Errorf("pixel %d changed from %g to %g", i, v, second.Dataset.Epochs[0].Data[i])
		}
	}

	other := &Config{Strategy: InputCoord, Point: &Point{0, 0}}
	third, err := Seed(first.Dataset, other, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("third: %s", err)
	}
	if third.NoOp {
		t.Errorf("different point treated as no-op")
	}
	if third.Dataset.Attrs[stack.KeyRefY] != "0" || third.Dataset.Epochs[0].At(0, 0) != 0 {
		t.Errorf("different point did not change data and attributes")
	}
	if third.Dataset.Epochs[0].At(2, 0) == 0 {
		t.Errorf("old reference point still zero")
	}
}

func TestApplyValuesCountMismatch(t *testing.T) {
	ds := newDataset(1, 1, true, []string{"a", "b"}, []float64{1}, []float64{2})
	if _, _, err := ApplyValues(ds, []float64{1}, Resolution{Strategy: InputCoord}); !errors.Is(err, ErrEpochCountMismatch) {
		t.Errorf("got %v want ErrEpochCountMismatch", err)
	}
	out, _, err := ApplyValues(ds, []float64{1, 1}, Resolution{Strategy: InputCoord})
	if err != nil {
		t.Fatalf("apply: %s", err)
	}
	if out.Epochs[0].Data[0] != 0 || out.Epochs[1].Data[0] != 1 {
		t.Errorf("got %v %v", out.Epochs[0].Data, out.Epochs[1].Data)
	}
}

type fakePicker struct {
	points []Point
	err    error
	calls  int
}

func (f *fakePicker) Pick(display []float64, width, height int) (Point, error) {
	f.calls++
	if f.err != nil {
		return Point{}, f.err
	}
	p := f.points[0]
	f.points = f.points[1:]
	return p, nil
}

func TestManualPick(t *testing.T) {
	picker := &fakePicker{points: []Point{{2, 2}}}
	res, err := Seed(scenarioEpoch(), &Config{Strategy: Manual, Picker: picker}, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if res.Resolution.Strategy != Manual || res.Resolution.Point != (Point{2, 2}) {
		t.Errorf("got %+v", res.Resolution)
	}

	cancelled := &fakePicker{err: ErrManualPickCancelled}
	_, err = Seed(scenarioEpoch(), &Config{Strategy: Manual, Picker: cancelled, RandomFallback: true}, 0, &bytes.Buffer{})
	if !errors.Is(err, ErrManualPickCancelled) {
		t.Errorf("got %v want ErrManualPickCancelled", err)
	}
}

type fakeMapper struct {
	p   Point
	err error
}

func (f fakeMapper) MapGeoToPixel(lat, lon float64) (Point, error) { return f.p, f.err }

func TestGeoCoordinates(t *testing.T) {
	ds := scenarioEpoch()
	ds.Attrs.SetFloat(stack.KeyXFirst, 100)
	ds.Attrs.SetFloat(stack.KeyYFirst, 40)
	ds.Attrs.SetFloat(stack.KeyXStep, 0.5)
	ds.Attrs.SetFloat(stack.KeyYStep, -0.5)

	res, err := Seed(ds, &Config{Strategy: GeoCoord, Geo: &GeoPoint{Lat: 39.1, Lon: 100.9}}, 0, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	if res.Resolution.Strategy != GeoCoord || res.Resolution.Point != (Point{2, 2}) {
		t.Errorf("got %+v want geo-coord at (2,2)", res.Resolution)
	}
	if res.Dataset.Attrs[stack.KeyRefLat] != "39" || res.Dataset.Attrs[stack.KeyRefLon] != "101" {
		t.Errorf("ref_lat/lon got %q/%q", res.Dataset.Attrs[stack.KeyRefLat], res.Dataset.Attrs[stack.KeyRefLon])
	}

	// sensor geometry goes through the mapper, failures fall through
	radar := scenarioEpoch()
	res, err = Seed(radar, &Config{Strategy: GeoCoord, Geo: &GeoPoint{1, 2}, Mapper: fakeMapper{p: Point{0, 1}}}, 0, &bytes.Buffer{})
	if err != nil || res.Resolution.Point != (Point{0, 1}) {
		t.Errorf("mapper: got %+v, %v", res, err)
	}
	log := &bytes.Buffer{}
	res, err = Seed(radar, &Config{Strategy: GeoCoord, Geo: &GeoPoint{1, 2}, Mapper: fakeMapper{err: errors.New("outside table")}, RandomFallback: true}, 0, log)
	if err != nil || res.Resolution.Strategy != Random {
		t.Errorf("failing mapper: got %+v, %v", res, err)
	}
	if _, err := GeoToPixel(GeoPoint{1, 2}, radar.Attrs, nil); !errors.Is(err, ErrCoordinateMapping) {
		t.Errorf("got %v want ErrCoordinateMapping", err)
	}
}

func TestPixelToGeoInvertsGeoToPixel(t *testing.T) {
	attrs := stack.Attributes{"X_FIRST": "-118.2", "Y_FIRST": "34.5", "X_STEP": "0.000833333", "Y_STEP": "-0.000833333"}
	for _, p := range []Point{{0, 0}, {10, 20}, {1234, 567}} {
		g, ok := PixelToGeo(p, attrs)
		if !ok {
			t.Fatalf("not geocoded")
		}
		back, err := GeoToPixel(g, attrs, nil)
		if err != nil || back != p {
			t.Errorf("point %v -> %v -> %v, %v", p, g, back, err)
		}
	}
}

func TestBuildCandidatesOrder(t *testing.T) {
	cfg := &Config{Strategy: Manual, Point: &Point{}, Geo: &GeoPoint{}, Quality: []float64{1}, Picker: &fakePicker{}, RandomFallback: true}
	cands := BuildCandidates(cfg, 0, &bytes.Buffer{})
	want := []Strategy{InputCoord, GeoCoord, MaxCoherence, Manual, Random}
	if len(cands) != len(want) {
		t.Fatalf("got %d candidates want %d", len(cands), len(want))
	}
	for i := range want {
		if cands[i].Strategy != want[i] {
			t.Errorf("candidate %d got %s want %s", i, cands[i].Strategy, want[i])
		}
	}
	if c := BuildCandidates(&Config{Strategy: GlobalAverage, Point: &Point{}}, 0, &bytes.Buffer{}); len(c) != 1 || c[0].Strategy != GlobalAverage {
		t.Errorf("global average candidates got %v", c)
	}
}

func TestStrategyText(t *testing.T) {
	for i, name := range strategyNames {
		var s Strategy
		if err := s.UnmarshalText([]byte(name)); err != nil || s != Strategy(i) {
			t.Errorf("%s: got %v, %v", name, s, err)
		}
	}
	if _, err := ParseStrategy("nearest"); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}
