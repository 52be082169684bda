// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_analysis/internal/app"
	"review_analysis/internal/domain"
)

// Analyzer is the upload and filter side of the application.
type Analyzer interface {
	Analyze(ctx context.Context, sessionID string, r io.Reader) (app.AnalysisResult, error)
	Filter(ctx context.Context, sessionID string, f domain.Filter) (app.FilterResult, error)
}

// Asker answers free-form and document-grounded questions.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
	AskDocument(ctx context.Context, sessionID string, dq app.DocumentQuestion) (string, error)
}

type Handlers struct {
	A              Analyzer
	Q              Asker
	MaxUploadBytes int64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Session)
		r.Get("/", h.index)
		r.Post("/AnalyzeReviews", h.analyzeReviews)
		r.Get("/FilterResults", h.filterResults)
		r.Post("/AskQuestion", h.askQuestion)
		r.Post("/AskDocumentQuestion", h.askDocumentQuestion)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ---- pages ----

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "index.html", nil)
}

func (h *Handlers) analyzeReviews(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	file, hdr, err := r.FormFile("excelFile")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "File troppo grande", err.Error())
			return
		}
		writeProblem(w, http.StatusBadRequest, "Nessun file caricato", "")
		return
	}
	defer file.Close()

	sid := SessionID(r.Context())
	log.Info().Str("session", sid).Str("file", hdr.Filename).Int64("size", hdr.Size).Msg("upload received")

	res, err := h.A.Analyze(r.Context(), sid, file)
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			writeProblem(w, http.StatusBadRequest, "File non valido", pe.Error())
			return
		}
		log.Error().Err(err).Str("session", sid).Msg("analysis failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "analysis failed")
		return
	}

	deductions, err := renderDeductions(res.Narrative)
	if err != nil {
		log.Error().Err(err).Msg("render deductions failed")
	}
	render(w, http.StatusOK, "result.html", resultView{
		FileName:    hdr.Filename,
		Categories:  res.Aggregate.Categories(),
		ChartData:   res.Aggregate.ChartData(),
		Overall:     res.Aggregate.Overall(),
		Deductions:  template.HTML(deductions),
		Options:     res.Options,
		ReviewCount: res.ReviewCount,
		ScoredCount: res.ScoredCount,
		NoData:      res.NoData,
	})
}

// ---- JSON endpoints ----

type filterResponse struct {
	ChartData      []float64        `json:"chartData"`
	Categories     []string         `json:"categories"`
	OverallAverage float64          `json:"overallAverage"`
	Narrative      domain.Narrative `json:"narrative"`
	Deductions     string           `json:"deductions"`
	NoData         bool             `json:"noData"`
	Message        string           `json:"message,omitempty"`
}

func (h *Handlers) filterResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.Filter{Area: q.Get("area"), Anzianita: q.Get("anzianita"), Eta: q.Get("eta")}

	res, err := h.A.Filter(r.Context(), SessionID(r.Context()), f)
	if errors.Is(err, domain.ErrNoData) {
		writeJSON(w, http.StatusOK, errorBody{Error: "No data available"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("filter failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "filter failed")
		return
	}

	out := filterResponse{
		ChartData:      res.Aggregate.ChartData(),
		Categories:     res.Aggregate.Categories(),
		OverallAverage: res.Aggregate.Overall(),
		Narrative:      res.Narrative,
		NoData:         res.NoData,
		Message:        res.Message,
	}
	if !res.NoData {
		if out.Deductions, err = renderDeductions(res.Narrative); err != nil {
			log.Error().Err(err).Msg("render deductions failed")
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type questionRequest struct {
	Question  string `json:"question"`
	Area      string `json:"area"`
	Anzianita string `json:"anzianita"`
	Eta       string `json:"eta"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (questionRequest, bool) {
	var req questionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a JSON object")
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeProblem(w, http.StatusBadRequest, "The question cannot be empty.", "")
		return req, false
	}
	return req, true
}

func (h *Handlers) askQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	answer, err := h.Q.Ask(r.Context(), req.Question)
	if err != nil {
		writeAnswerError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

func (h *Handlers) askDocumentQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	answer, err := h.Q.AskDocument(r.Context(), SessionID(r.Context()), app.DocumentQuestion{
		Question: req.Question,
		Filter:   domain.Filter{Area: req.Area, Anzianita: req.Anzianita, Eta: req.Eta},
	})
	if err != nil {
		writeAnswerError(w, err, "No document data available. Please upload a document first.")
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

// writeAnswerError maps question errors onto the Q&A envelope.
func writeAnswerError(w http.ResponseWriter, err error, noData string) {
	var apiErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeProblem(w, http.StatusBadRequest, "The question cannot be empty.", "")
	case errors.Is(err, domain.ErrNotConfigured):
		log.Error().Msg("gemini api key is missing")
		writeProblem(w, http.StatusInternalServerError, "API configuration error", "")
	case errors.Is(err, domain.ErrNoData) && noData != "":
		writeJSON(w, http.StatusOK, errorBody{Error: noData})
	case errors.Is(err, domain.ErrNoAnswer):
		writeJSON(w, http.StatusOK, errorBody{Error: "No answer could be generated."})
	case errors.As(err, &apiErr) && apiErr.StatusCode != 0:
		log.Error().Err(err).Msg("ai service error")
		writeProblem(w, apiErr.StatusCode, "Error from AI service: "+apiErr.Body, "")
	case errors.Is(err, domain.ErrMalformedResponse):
		log.Error().Err(err).Msg("ai response processing failed")
		writeJSON(w, http.StatusOK, errorBody{Error: "Failed to process the AI response."})
	default:
		log.Error().Err(err).Msg("question failed")
		writeProblem(w, http.StatusInternalServerError, "An error occurred while processing your request.", "")
	}
}

// ---- views ----

type resultView struct {
	FileName    string
	Categories  []string
	ChartData   []float64
	Overall     float64
	Deductions  template.HTML // rendered by the deductions template
	Options     domain.FilterOptions
	ReviewCount int
	ScoredCount int
	NoData      bool
}

func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Str("template", name).Msg("write page failed")
	}
}

func renderDeductions(n domain.Narrative) (string, error) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, "deductions", n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
