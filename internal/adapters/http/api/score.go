package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	service "github.com/okian/xscaffold/internal/app"
	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/scoring"
	"github.com/okian/xscaffold/internal/domain/types"
)

// ScoreHandler serves the scoring and classification endpoints.
type ScoreHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies, maxBody int64) *ScoreHandler {
	return &ScoreHandler{deps: deps, maxBody: maxBody}
}

// scoreResponse is an assessment with the weighted components behind it.
type scoreResponse struct {
	types.Assessment
	Components scoring.Components `json:"components"`
}

// batchItem is one entry of a batch response. Error is set instead of the
// assessment when the record was not scored.
type batchItem struct {
	Index int `json:"index"`
	*types.Assessment
	StudentID string `json:"student_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
	Scored  int         `json:"scored"`
	Failed  int         `json:"failed"`
}

type batchRequest struct {
	Students []json.RawMessage `json:"students"`
}

type classifyRequest struct {
	Score *float64 `json:"score"`
}

// decodeRecord reads the student id and the 11 named features from one
// flat JSON object.
func decodeRecord(raw []byte) (service.BatchRecord, error) {
	var rec service.BatchRecord
	var meta struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	rec.ID = meta.StudentID
	if err := json.Unmarshal(raw, &rec.Features); err != nil {
		return rec, err
	}
	return rec, nil
}

func (h *ScoreHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

// HandleScore handles POST /score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"

	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := decodeRecord(body)
	if err != nil {
		if errors.Is(err, model.ErrInvalidFeature) {
			status, code, kerr := classify(op, err)
			writeError(w, status, code, kerr)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Score(r.Context(), rec.Features)
	if err != nil {
		status, code, kerr := classify(op, err)
		writeError(w, status, code, kerr)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		Assessment: types.NewAssessment(rec.ID, res.Score, res.Level),
		Components: res.Components,
	})
}

// HandleBatch handles POST /score/batch requests.
func (h *ScoreHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_batch"

	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Students) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, service.ErrEmptyBatch))
		return
	}

	// records that do not decode are reported without reaching the service
	resp := batchResponse{Results: make([]batchItem, len(req.Students))}
	records := make([]service.BatchRecord, 0, len(req.Students))
	positions := make([]int, 0, len(req.Students))
	for i, raw := range req.Students {
		resp.Results[i].Index = i
		rec, err := decodeRecord(raw)
		if err != nil {
			resp.Results[i].StudentID = rec.ID
			resp.Results[i].Error = err.Error()
			continue
		}
		records = append(records, rec)
		positions = append(positions, i)
	}

	if len(records) > 0 {
		results, err := h.deps.ScoreBatch(r.Context(), records)
		if err != nil {
			status, code, kerr := classify(op, err)
			writeError(w, status, code, kerr)
			return
		}
		for k, res := range results {
			item := &resp.Results[positions[k]]
			item.StudentID = res.ID
			if res.Err != nil {
				item.Error = res.Err.Error()
				continue
			}
			a := types.NewAssessment(res.ID, res.Score, res.Level)
			item.Assessment = &a
		}
	}

	for _, item := range resp.Results {
		if item.Error != "" {
			resp.Failed++
		} else {
			resp.Scored++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleClassify handles POST /classify requests.
func (h *ScoreHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.classify"

	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req classifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Score == nil || math.IsNaN(*req.Score) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing score")))
		return
	}

	level, err := h.deps.Classify(r.Context(), *req.Score)
	if err != nil {
		status, code, kerr := classify(op, err)
		writeError(w, status, code, kerr)
		return
	}
	writeJSON(w, http.StatusOK, types.NewAssessment("", *req.Score, level))
}
