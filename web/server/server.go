package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/df07/go-envmap-prefilter/pkg/loaders"
	"github.com/df07/go-envmap-prefilter/pkg/log"
)

var logger = log.New("web")

var (
	errNoSource      = errors.New("no source selected")
	errInvalidSource = errors.New("invalid source name")
)

// Server handles web requests for the environment map prefilter
type Server struct {
	port       int
	sourcesDir string

	mu        sync.Mutex
	providers map[string]*loaders.FileProvider
}

// NewServer creates a new web server serving sources from sourcesDir
func NewServer(port int, sourcesDir string) *Server {
	return &Server{
		port:       port,
		sourcesDir: sourcesDir,
		providers:  make(map[string]*loaders.FileProvider),
	}
}

// SourceInfo describes one selectable source environment
type SourceInfo struct {
	Name   string `json:"name"`
	Layout string `json:"layout"` // "equirectangular" or "cubemap"
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/sources", s.handleSources)
	mux.HandleFunc("/api/prefilter", s.handlePrefilter)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Noticef("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSources lists the panoramas and cube face directories in the
// sources directory
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read sources: " + err.Error()})
		return
	}

	sources := []SourceInfo{}
	for _, e := range entries {
		switch {
		case e.IsDir():
			if _, err := loaders.CubeFacePaths(filepath.Join(s.sourcesDir, e.Name())); err == nil {
				sources = append(sources, SourceInfo{Name: e.Name(), Layout: "cubemap"})
			}
		case loaders.IsSupportedImage(e.Name()):
			sources = append(sources, SourceInfo{Name: e.Name(), Layout: "equirectangular"})
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })

	writeJSON(w, http.StatusOK, sources)
}

// provider returns the cached input provider for a source name. Names are
// plain entries of the sources directory.
func (s *Server) provider(name string) (*loaders.FileProvider, error) {
	if name == "" {
		return nil, errNoSource
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", errInvalidSource, name)
	}

	path := filepath.Join(s.sourcesDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errInvalidSource, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.providers[path]; ok {
		return p, nil
	}

	var p *loaders.FileProvider
	if info.IsDir() {
		p = loaders.NewCubeDirProvider(path)
	} else {
		p = loaders.NewEquirectProvider(path, log.NewPrintfLogger("loaders"))
	}
	s.providers[path] = p
	return p, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return false, nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("Error encoding response: %v", err)
	}
}
