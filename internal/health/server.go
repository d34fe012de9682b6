package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
)

const (
	defaultFaultLimit = 50
	maxFaultBodyBytes = 1 << 20
)

// Server provides HTTP endpoints for health monitoring and fault inspection.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /faults", s.handleFaults)
	mux.HandleFunc("POST /faults", s.handleReport)
	mux.HandleFunc("GET /faults/export", s.handleExport)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.monitor.CheckHealth()

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth())
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	limit := defaultFaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records := s.monitor.source.Recent(limit)
	if records == nil {
		records = []*domain.ErrorRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// reportResponse is the body returned for an accepted fault.
type reportResponse struct {
	Record   *domain.ErrorRecord `json:"record"`
	Severity domain.Severity     `json:"severity"`
}

// handleReport feeds a fault into the pipeline. The body is any JSON value:
// an object with name/message/stack (extra keys become metadata) or a bare
// message string.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFaultBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fault body")
		return
	}

	rec := s.monitor.source.Handle(r.Context(), raw)
	writeJSON(w, http.StatusCreated, reportResponse{
		Record:   rec,
		Severity: s.monitor.source.DetermineSeverity(rec.Name, rec.Message, rec.Context),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	opts, err := parseExportOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.monitor.source.Export(opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if opts.Format == faultlog.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="faults.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseExportOptions(r *http.Request) (faultlog.ExportOptions, error) {
	q := r.URL.Query()
	opts := faultlog.ExportOptions{
		Format:  faultlog.FormatJSON,
		Context: domain.Context(q.Get("context")),
	}
	if f := q.Get("format"); f != "" {
		opts.Format = faultlog.Format(f)
	}

	if raw := q.Get("severity"); raw != "" {
		sev, err := domain.ParseSeverity(raw)
		if err != nil {
			return opts, err
		}
		opts.Severity = &sev
	}

	for key, dst := range map[string]*time.Time{"since": &opts.Since, "until": &opts.Until} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = t
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
