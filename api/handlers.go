package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/metrics"
	"github.com/oakmontlabs/stereobench/internal/predictions"
	"github.com/oakmontlabs/stereobench/internal/store"
)

type evaluateRequest struct {
	GoldPath        string `json:"gold_path"`
	PredictionsPath string `json:"predictions_path"`
	Save            bool   `json:"save"`
}

type evaluateResponse struct {
	Report *metrics.Report `json:"report"`
	RunID  string          `json:"run_id,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleBestByModel(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	track := strings.ToLower(strings.TrimSpace(c.Query("track")))
	if track == "" {
		track = "intrasentence"
	}
	if track != "intrasentence" && track != "intersentence" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid track %q", track))
		return
	}

	best, err := s.store.BestByModel(c.Request.Context(), track)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if best == nil {
		best = []store.ModelBest{}
	}

	c.JSON(http.StatusOK, best)
}

// handleEvaluate aggregates a predictions file on disk against a gold file
// and returns the metrics report, optionally persisting it as a run.
func (s *Server) handleEvaluate(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.GoldPath) == "" || strings.TrimSpace(req.PredictionsPath) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing gold_path or predictions_path"))
		return
	}

	ds, err := dataset.Load(req.GoldPath)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	f, err := predictions.Read(req.PredictionsPath)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	rep, err := metrics.Compute(ds, f)
	if err != nil {
		var merr *metrics.MissingRecordsError
		if errors.As(err, &merr) {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	resp := evaluateResponse{Report: rep}
	if req.Save {
		run := store.NewRun(req.GoldPath, req.PredictionsPath, rep)
		if err := s.store.Save(c.Request.Context(), run); err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		resp.RunID = run.ID
	}

	c.JSON(http.StatusOK, resp)
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}
