package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-envmap-prefilter/pkg/scheduler"
)

var skyColor = color.RGBA{R: 51, G: 102, B: 204, A: 255}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// newTestServer creates a server over a sources directory holding a 16x8
// panorama, a cube face directory, an undecodable image and a stray file
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "sky.png"), 16, 8, skyColor)

	cubeDir := filepath.Join(dir, "room")
	if err := os.Mkdir(cubeDir, 0755); err != nil {
		t.Fatalf("failed to create cube dir: %v", err)
	}
	for _, face := range []string{"px", "nx", "py", "ny", "pz", "nz"} {
		writePNG(t, filepath.Join(cubeDir, face+".png"), 4, 4, skyColor)
	}

	if err := os.Mkdir(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	return NewServer(0, dir)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// parseSSE splits an event stream into events
func parseSSE(body string) []SSEEvent {
	var events []SSEEvent
	for _, block := range strings.Split(body, "\n\n") {
		var event SSEEvent
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event.Type = v
			} else if v, ok := strings.CutPrefix(line, "data: "); ok {
				event.Data = v
			}
		}
		if event.Type != "" {
			events = append(events, event)
		}
	}
	return events
}

func eventsOfType(events []SSEEvent, eventType string) []SSEEvent {
	var out []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/health")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Expected ok status, got %s", rec.Body.String())
	}
}

func TestHandleSources(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/sources")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var sources []SourceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &sources); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	expected := []SourceInfo{
		{Name: "broken.png", Layout: "equirectangular"},
		{Name: "room", Layout: "cubemap"},
		{Name: "sky.png", Layout: "equirectangular"},
	}
	if len(sources) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, sources)
	}
	for i := range expected {
		if sources[i] != expected[i] {
			t.Errorf("Source %d: expected %v, got %v", i, expected[i], sources[i])
		}
	}
}

func TestHandlePrefilter_Convert(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/prefilter?source=sky.png&mode=convert&ids=cube-map-px,sphere-map-pz&size=8&samples=2")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	events := parseSSE(rec.Body.String())
	images := eventsOfType(events, "image")
	if len(images) != 2 {
		t.Fatalf("Expected 2 image events, got %d", len(images))
	}
	if n := len(eventsOfType(events, "jobStats")); n != 2 {
		t.Errorf("Expected 2 jobStats events, got %d", n)
	}
	if n := len(eventsOfType(events, "console")); n == 0 {
		t.Error("Expected console events")
	}

	var update ImageUpdate
	if err := json.Unmarshal([]byte(images[1].Data), &update); err != nil {
		t.Fatalf("failed to decode image event: %v", err)
	}
	if update.ID != "sphere-map-pz" || update.Size != 8 {
		t.Errorf("Expected sphere-map-pz at size 8, got %s at %d", update.ID, update.Size)
	}

	data, err := base64.StdEncoding.DecodeString(update.ImageData)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	r, g, b, _ := img.At(3, 3).RGBA()
	if got := (color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}); got != skyColor {
		t.Errorf("Expected %v, got %v", skyColor, got)
	}

	completes := eventsOfType(events, "complete")
	if len(completes) != 1 {
		t.Fatalf("Expected 1 complete event, got %d", len(completes))
	}
	if events[len(events)-1].Type != "complete" {
		t.Errorf("Expected complete to be the last event, got %s", events[len(events)-1].Type)
	}

	var complete CompleteUpdate
	if err := json.Unmarshal([]byte(completes[0].Data), &complete); err != nil {
		t.Fatalf("failed to decode complete event: %v", err)
	}
	if complete.Completed != 2 || complete.Failed != 0 {
		t.Errorf("Expected 2 completed and 0 failed, got %d and %d", complete.Completed, complete.Failed)
	}
	if complete.RenderID == "" {
		t.Error("Expected a render id")
	}
}

func TestHandlePrefilter_FullSet(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/prefilter?source=room&size=8&diffuseSize=8&kernelSamples=4")

	events := parseSSE(rec.Body.String())
	expected := 6 + scheduler.MipCount(8)*6
	if n := len(eventsOfType(events, "image")); n != expected {
		t.Errorf("Expected %d image events, got %d", expected, n)
	}
}

func TestHandlePrefilter_DefaultDiffuseSize(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/prefilter?mode=diffuse&source=sky.png&kernelSamples=4")

	images := eventsOfType(parseSSE(rec.Body.String()), "image")
	if len(images) != 6 {
		t.Fatalf("Expected 6 image events, got %d", len(images))
	}

	want := scheduler.DefaultConfig().DiffuseSize
	for _, event := range images {
		var update ImageUpdate
		if err := json.Unmarshal([]byte(event.Data), &update); err != nil {
			t.Fatalf("failed to decode image event: %v", err)
		}
		if update.Size != want {
			t.Errorf("%s: expected size %d, got %d", update.ID, want, update.Size)
		}

		data, err := base64.StdEncoding.DecodeString(update.ImageData)
		if err != nil {
			t.Fatalf("failed to decode base64: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("failed to decode png: %v", err)
		}
		if img.Bounds().Dx() != want || img.Bounds().Dy() != want {
			t.Errorf("%s: expected %dx%d, got %v", update.ID, want, want, img.Bounds())
		}
	}
}

func TestHandlePrefilter_DebugWithoutSource(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/prefilter?mode=convert&debug=true&size=8")

	events := parseSSE(rec.Body.String())
	if n := len(eventsOfType(events, "image")); n != 6 {
		t.Errorf("Expected 6 image events, got %d", n)
	}
	if n := len(eventsOfType(events, "error")); n != 0 {
		t.Errorf("Expected no errors, got %d", n)
	}
}

func TestHandlePrefilter_JobFailures(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/prefilter?source=broken.png&mode=convert&ids=cube-map-px,cube-map-nx&size=8")

	events := parseSSE(rec.Body.String())
	failures := eventsOfType(events, "jobFailed")
	if len(failures) != 2 {
		t.Fatalf("Expected 2 jobFailed events, got %d", len(failures))
	}

	var failure JobFailedUpdate
	if err := json.Unmarshal([]byte(failures[0].Data), &failure); err != nil {
		t.Fatalf("failed to decode jobFailed event: %v", err)
	}
	if failure.ID != "cube-map-px" {
		t.Errorf("Expected cube-map-px, got %s", failure.ID)
	}
	if !strings.Contains(failure.Error, scheduler.ErrInputUnavailable.Error()) {
		t.Errorf("Expected input error, got %s", failure.Error)
	}

	var complete CompleteUpdate
	if err := json.Unmarshal([]byte(eventsOfType(events, "complete")[0].Data), &complete); err != nil {
		t.Fatalf("failed to decode complete event: %v", err)
	}
	if complete.Failed != 2 {
		t.Errorf("Expected 2 failed jobs, got %d", complete.Failed)
	}
}

func TestHandlePrefilter_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"size too small", "source=sky.png&size=1"},
		{"bad samples", "source=sky.png&samples=abc"},
		{"bad convention", "source=sky.png&convention=flipped"},
		{"bad debug flag", "source=sky.png&debug=maybe"},
		{"debug outside convert", "mode=diffuse&debug=true"},
		{"missing source", "mode=diffuse"},
		{"unknown source", "source=missing.png"},
		{"path traversal", "source=../sky.png"},
		{"unknown mode", "source=sky.png&mode=blur"},
		{"unknown identifier", "source=sky.png&mode=convert&ids=cylinder-map-px"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := parseSSE(get(t, s, "/api/prefilter?"+tt.query).Body.String())
			if n := len(eventsOfType(events, "error")); n != 1 {
				t.Errorf("Expected 1 error event, got %d", n)
			}
			if n := len(eventsOfType(events, "image")); n != 0 {
				t.Errorf("Expected no images, got %d", n)
			}
		})
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer(t)

	t.Run("equirectangular", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?source=sky.png&id=sphere-map-pz&size=8&x=3&y=4")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp InspectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Color != "#3366cc" {
			t.Errorf("Expected #3366cc, got %s", resp.Color)
		}
		if resp.Layout != "equirectangular" || resp.SourceFace != "" {
			t.Errorf("Expected equirectangular without face, got %s %q", resp.Layout, resp.SourceFace)
		}
		if resp.X != 3 || resp.Y != 4 || resp.ID != "sphere-map-pz" {
			t.Errorf("Expected sphere-map-pz (3, 4), got %s (%d, %d)", resp.ID, resp.X, resp.Y)
		}
	})

	t.Run("cubemap", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?source=room&id=cube-map-ny&size=4&x=1&y=1")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp InspectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.SourceFace != "ny" {
			t.Errorf("Expected source face ny, got %q", resp.SourceFace)
		}
	})

	errorTests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing source", "id=cube-map-px", http.StatusBadRequest},
		{"bad id", "source=sky.png&id=cube-px", http.StatusBadRequest},
		{"x out of range", "source=sky.png&size=4&x=4", http.StatusBadRequest},
		{"undecodable source", "source=broken.png", http.StatusInternalServerError},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/api/inspect?"+tt.query)
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}
