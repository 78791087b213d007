package server

import (
	"fmt"
	"net/http"

	"github.com/df07/go-envmap-prefilter/pkg/envmap"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// InspectResponse represents the JSON response for texel inspection
type InspectResponse struct {
	ID         string     `json:"id"`
	Size       int        `json:"size"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	UV         [2]float64 `json:"uv"`
	Direction  [3]float64 `json:"direction"`
	Layout     string     `json:"layout"`
	SourceFace string     `json:"sourceFace,omitempty"`
	SourceUV   [2]float64 `json:"sourceUV"`
	Color      string     `json:"color"`
	RGB        [3]uint8   `json:"rgb"`
}

// newInspectResponse flattens a texel lookup for JSON
func newInspectResponse(img *envmap.Image, size int, info envmap.TexelInfo) InspectResponse {
	resp := InspectResponse{
		ID:        info.Mode.String(),
		Size:      size,
		X:         info.X,
		Y:         info.Y,
		UV:        [2]float64{info.UV.X, info.UV.Y},
		Direction: [3]float64{info.Direction.X, info.Direction.Y, info.Direction.Z},
		Layout:    img.Layout().String(),
		SourceUV:  [2]float64{info.SourceU, info.SourceV},
		Color:     fmt.Sprintf("#%02x%02x%02x", info.Color.R, info.Color.G, info.Color.B),
		RGB:       [3]uint8{info.Color.R, info.Color.G, info.Color.B},
	}
	if img.Layout() == envmap.Cubemap {
		resp.SourceFace = info.SourceFace.String()
	}
	return resp
}

// handleInspect reports the ray and source lookup behind one output texel
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	p, err := s.provider(query.Get("source"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id := query.Get("id")
	if id == "" {
		id = "cube-map-px"
	}
	mode, err := projection.ParseIdentifier(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid id: " + err.Error()})
		return
	}

	size, err := parseIntParam(query, "size", 128, 1, 8192)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	x, err := parseIntParam(query, "x", 0, 0, size-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	y, err := parseIntParam(query, "y", 0, 0, size-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	img, err := p.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load source: " + err.Error()})
		return
	}

	info, err := img.Inspect(mode, size, x, y)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, newInspectResponse(img, size, info))
}
