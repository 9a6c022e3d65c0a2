package server

import (
	"net/http"

	"github.com/spigell/scoreit/internal/apperr"
	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/dataset"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/ranking"

	"github.com/labstack/echo/v4"
)

type TextRequest struct {
	Text string `json:"text"`
}

type ExtractedResponse struct {
	Extracted candidate.Job `json:"extracted"`
}

type SearchRequest struct {
	JobDescription string `json:"job_description"`
	TopK           *int   `json:"top_k,omitempty"`
}

// MatchRequest carries candidates and the job they are compared with.
type MatchRequest struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Job        candidate.Job         `json:"job"`
}

type FeedbackRequest struct {
	Feedback []dataset.FeedbackEntry `json:"feedback"`
}

type CandidatesRequest struct {
	Candidates []candidate.Document `json:"candidates"`
}

type CandidatesResponse struct {
	IDs []string `json:"ids"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleProcessJobDescription(c echo.Context) error {
	var req TextRequest
	if err := bind(c, "process-job-description", &req); err != nil {
		return err
	}

	out, err := s.deps.Search.ProcessJobDescription(c.Request().Context(), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleExtractJobFeatures(c echo.Context) error {
	var req TextRequest
	if err := bind(c, "extract-job-features", &req); err != nil {
		return err
	}

	job, err := s.deps.Search.ExtractJobFeatures(c.Request().Context(), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ExtractedResponse{Extracted: job})
}

func (s *Server) handleSemanticSearch(c echo.Context) error {
	const op = "semantic-search"

	var req SearchRequest
	if err := bind(c, op, &req); err != nil {
		return err
	}

	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 {
			return apperr.InvalidInput(op, "top_k must be between 1 and 1000", nil)
		}
		topK = *req.TopK
	}

	resp, err := s.deps.Search.Search(c.Request().Context(), req.JobDescription, topK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExtractFeatures(c echo.Context) error {
	var req MatchRequest
	if err := bind(c, "extract-features", &req); err != nil {
		return err
	}

	vectors := features.ExtractAll(s.deps.Features, req.Candidates, req.Job)
	if vectors == nil {
		vectors = []features.Vector{}
	}
	return c.JSON(http.StatusOK, vectors)
}

func (s *Server) handleRankCandidates(c echo.Context) error {
	var req MatchRequest
	if err := bind(c, "rank-candidates", &req); err != nil {
		return err
	}

	results, err := s.deps.Ranker.Rank(c.Request().Context(), req.Candidates, req.Job)
	if err != nil {
		return err
	}
	if results == nil {
		results = []ranking.Result{}
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleFeedback(c echo.Context) error {
	const op = "feedback"

	var req FeedbackRequest
	if err := bind(c, op, &req); err != nil {
		return err
	}

	samples, err := dataset.Samples(req.Feedback)
	if err != nil {
		return apperr.InvalidInput(op, err.Error(), err)
	}

	m, err := s.deps.Model.AddFeedback(c.Request().Context(), samples)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleModel(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Model.Status())
}

func (s *Server) handleCandidates(c echo.Context) error {
	var req CandidatesRequest
	if err := bind(c, "candidates", &req); err != nil {
		return err
	}

	ids, err := s.deps.Search.Ingest(c.Request().Context(), req.Candidates)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CandidatesResponse{IDs: ids})
}

func bind(c echo.Context, op string, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.InvalidInput(op, "invalid request body", err)
	}
	return nil
}
