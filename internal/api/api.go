// Package api serves the sequence formatter over HTTP. It holds no state
// between requests.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/cbegin/beepseq-go/internal/notes"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

type Server struct {
	parser *notes.Parser
	logger *slog.Logger
}

func NewServer(parser *notes.Parser, logger *slog.Logger) *Server {
	if parser == nil {
		parser = notes.NewParser(notes.DefaultParserConfig())
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{parser: parser, logger: logger}
}

// Handler returns the router wrapped in a CORS handler for origins.
func (s *Server) Handler(origins []string) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/format", s.handleFormat).Methods(http.MethodPost)
	v1.HandleFunc("/portable", s.handlePortable).Methods(http.MethodPost)
	v1.HandleFunc("/validate", s.handleValidate).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

type textRequest struct {
	Text string `json:"text"`
}

type textResponse struct {
	Text  string `json:"text"`
	Notes int    `json:"notes"`
}

type validateResponse struct {
	Valid      bool  `json:"valid"`
	Notes      int   `json:"notes"`
	DurationMs int64 `json:"duration_ms"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	seq, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: notes.Canonical(seq), Notes: seq.Len()})
}

func (s *Server) handlePortable(w http.ResponseWriter, r *http.Request) {
	seq, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: notes.Portable(seq), Notes: seq.Len()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	seq, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:      true,
		Notes:      seq.Len(),
		DurationMs: seq.TotalDuration().Milliseconds(),
	})
}

// parseRequest decodes the body and parses its text, writing the error
// response itself when either step fails.
func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (*notes.Sequence, bool) {
	var req textRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.logger.Debug("bad request body", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "bad request", Message: err.Error()})
		return nil, false
	}

	seq, err := s.parser.Parse(req.Text)
	if err != nil {
		var pe *notes.ParseError
		if !errors.As(err, &pe) {
			s.logger.Error("parse failed", "path", r.URL.Path, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: err.Error()})
			return nil, false
		}
		s.logger.Debug("rejected sequence", "path", r.URL.Path, "kind", pe.Kind, "line", pe.Line)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Kind:    pe.Kind.String(),
			Line:    pe.Line,
			Column:  pe.Column,
			Key:     pe.Key,
			Value:   pe.Value,
			Message: pe.Msg,
		})
		return nil, false
	}
	s.logger.Debug("parsed sequence", "path", r.URL.Path, "notes", seq.Len())
	return seq, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
