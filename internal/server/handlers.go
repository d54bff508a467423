package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/jobgate/internal/schemas"
	"github.com/marcus/jobgate/internal/stages"
	"github.com/marcus/jobgate/internal/store"
	"github.com/marcus/jobgate/internal/types"
)

// submitPostingRequest is the ingest payload for POST /postings.
type submitPostingRequest struct {
	Source       string     `json:"source"`
	SourceID     string     `json:"source_id"`
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Body         string     `json:"body"`
	Location     string     `json:"location"`
	Remote       bool       `json:"remote"`
	Compensation *float64   `json:"compensation,omitempty"`
	DiscoveredAt *time.Time `json:"discovered_at,omitempty"`
}

func (r *submitPostingRequest) validate() string {
	switch {
	case r.Source == "":
		return "source is required"
	case r.SourceID == "":
		return "source_id is required"
	case r.Title == "":
		return "title is required"
	case r.Body == "":
		return "body is required"
	}
	return ""
}

// submitPostingResponse reports the gate's verdict and, for distinct
// postings, the freshly registered run.
type submitPostingResponse struct {
	Posting  types.PostingKey         `json:"posting"`
	Decision *types.DuplicateDecision `json:"decision"`
	Run      *runView                 `json:"run,omitempty"`
}

// runView is the wire shape of a run: its id plus the compatibility
// record layout.
type runView struct {
	ID string `json:"id"`
	types.RunRecord
}

func newRunView(run *types.PipelineRun) *runView {
	return &runView{ID: run.ID.String(), RunRecord: run.Record()}
}

// handleSubmitPosting gates a discovered posting and registers a pipeline
// run when it is distinct.
func (s *Server) handleSubmitPosting(w http.ResponseWriter, r *http.Request) {
	var req submitPostingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		s.errorResponse(w, http.StatusBadRequest, msg)
		return
	}

	posting := &types.Posting{
		Key:          types.PostingKey{Source: req.Source, SourceID: req.SourceID},
		Title:        req.Title,
		Organization: req.Organization,
		Body:         req.Body,
		Location:     req.Location,
		Remote:       req.Remote,
		Compensation: req.Compensation,
		DiscoveredAt: s.now(),
	}
	if req.DiscoveredAt != nil {
		posting.DiscoveredAt = *req.DiscoveredAt
	}

	candidates, err := s.store.RecentPostings(r.Context(), s.now().Add(-s.window))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load candidate pool")
		return
	}

	if err := s.store.CreatePosting(r.Context(), posting); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.errorResponse(w, http.StatusConflict, "posting already exists")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to store posting")
		return
	}

	decision, err := s.gate.Evaluate(r.Context(), posting, candidates)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "duplicate evaluation failed")
		return
	}

	resp := submitPostingResponse{Posting: posting.Key, Decision: decision}
	if decision.IsDuplicate() {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	run, err := s.store.CreateRun(r.Context(), posting.Key)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to register run")
		return
	}
	resp.Run = newRunView(run)
	s.jsonResponse(w, http.StatusCreated, resp)
}

// handleGetPosting returns a stored posting with its group membership.
func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	key := types.PostingKey{Source: r.PathValue("source"), SourceID: r.PathValue("id")}

	posting, err := s.store.GetPosting(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "posting not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to load posting")
		return
	}

	s.jsonResponse(w, http.StatusOK, posting)
}

// handleListRuns returns runs newest first, optionally filtered by
// ?status= and bounded by ?limit= (default 50).
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	views := make([]*runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": views})
}

// handleGetRun returns one run in the record layout.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDFromPath(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	s.jsonResponse(w, http.StatusOK, newRunView(run))
}

// handleStartRun executes an eligible run inline and reports the status
// it landed on.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDFromPath(w, r)
	if !ok {
		return
	}

	status, err := s.orchestrator.Start(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "run not found")
			return
		}
		// Not eligible: report the state it is actually in.
		s.jsonResponse(w, http.StatusConflict, map[string]string{
			"error":  err.Error(),
			"status": status,
		})
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": status})
}

// resumeRequest optionally carries an operator verdict for a run parked
// in manual review.
type resumeRequest struct {
	Review string `json:"review,omitempty"`
}

// handleResumeRun records an optional review verdict, then resumes a
// pending-manual run from its checkpoint.
func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDFromPath(w, r)
	if !ok {
		return
	}

	var req resumeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if req.Review != "" {
		if s.reviews == nil {
			s.errorResponse(w, http.StatusBadRequest, "review verdicts are not accepted")
			return
		}
		switch stages.ReviewDecision(req.Review) {
		case stages.ReviewApproved, stages.ReviewRejected:
			s.reviews.Record(runID.String(), stages.ReviewDecision(req.Review))
		default:
			s.errorResponse(w, http.StatusBadRequest, "review must be approved or rejected")
			return
		}
	}

	// Check the persisted record against the wire contract before
	// re-entering execution.
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	record, err := json.Marshal(run.Record())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to serialize run record")
		return
	}
	if err := schemas.ValidateRunRecord(string(record)); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "run record failed schema validation")
		return
	}

	status, err := s.orchestrator.Resume(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "run not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to resume run")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) runIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return runID, true
}
