// Package api serves table API access and storage bucket reads over HTTP for
// `studio serve`.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db"
	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/sqlexec"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest           = "bad_request"
	CodeUnknownProject       = "unknown_project"
	CodeConfirmationRequired = "confirmation_required"
	CodeExecutionFailed      = "execution_failed"
)

// Backend resolves projects and builds the per-project bucket query.
type Backend interface {
	Project(ref string) (privileges.ProjectVars, error)
	Buckets(project privileges.ProjectVars) *buckets.LargestSizeLimitsQuery
}

// Handlers implements the HTTP endpoints.
type Handlers struct {
	backend Backend
	access  *privileges.Service
	mutator *privileges.Mutator
}

// NewHandlers creates the handlers. The mutator's failures are reported in
// responses, so it needs no notifier.
func NewHandlers(backend Backend, access *privileges.Service, mutator *privileges.Mutator) *Handlers {
	return &Handlers{backend: backend, access: access, mutator: mutator}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIAccessResponse answers an API access read.
type APIAccessResponse struct {
	RelationID uint32 `json:"relation_id,omitempty"`
	Schema     string `json:"schema,omitempty"`
	Table      string `json:"table,omitempty"`
	privileges.APIAccess
}

// SetAPIAccessRequest is the body of an API access change.
type SetAPIAccessRequest struct {
	Enabled   *bool  `json:"enabled"`
	TableName string `json:"table_name,omitempty"`
}

// SetAPIAccessResponse confirms an API access change.
type SetAPIAccessResponse struct {
	RelationID uint32 `json:"relation_id"`
	Enabled    bool   `json:"enabled"`
}

// EstimateResponse carries the bucket count estimate.
type EstimateResponse struct {
	Estimate     *int64               `json:"estimate"`
	Threshold    int64                `json:"threshold"`
	RunCondition buckets.RunCondition `json:"run_condition"`
}

// LargestBucketsResponse carries the scan result. Exceeding is present when
// a limit was given.
type LargestBucketsResponse struct {
	Buckets   []models.Bucket `json:"buckets"`
	Exceeding []models.Bucket `json:"exceeding,omitempty"`
}

// GetTableAPIAccess handles GET /projects/{ref}/tables/api-access.
func (h *Handlers) GetTableAPIAccess(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	vars := privileges.TableAPIAccessVariables{
		ProjectRef:       project.ProjectRef,
		ConnectionString: project.ConnectionString,
		Schema:           q.Get("schema"),
		TableName:        q.Get("table"),
	}
	if raw := q.Get("relation_id"); raw != "" {
		id, err := parseRelationID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		vars.RelationID = id
	}
	if !vars.Enabled() {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "relation_id or schema and table are required")
		return
	}

	read := h.access.TableAPIAccess
	if q.Get("refresh") == "true" {
		read = h.access.RefetchTableAPIAccess
	}
	result, err := read(r.Context(), vars, true)
	if err != nil {
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIAccessResponse{
		RelationID: vars.RelationID,
		Schema:     vars.Schema,
		Table:      vars.TableName,
		APIAccess:  *result.Data,
	})
}

// SetTableAPIAccess handles POST /projects/{ref}/tables/{relationID}/api-access.
func (h *Handlers) SetTableAPIAccess(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	relationID, err := parseRelationID(chi.URLParam(r, "relationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	var req SetAPIAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, `"enabled" is required`)
		return
	}

	var failure error
	_, err = h.mutator.Set(r.Context(), *req.Enabled, privileges.MutationVariables{
		ProjectRef:       project.ProjectRef,
		ConnectionString: project.ConnectionString,
		RelationID:       relationID,
		TableName:        req.TableName,
	}, privileges.MutationOptions{
		OnError: func(err error, _ privileges.MutationVariables) { failure = err },
	})
	if err != nil {
		if failure == nil {
			failure = err
		}
		writeExecError(w, failure)
		return
	}

	writeJSON(w, http.StatusOK, SetAPIAccessResponse{RelationID: relationID, Enabled: *req.Enabled})
}

// GetBucketEstimate handles GET /projects/{ref}/storage/buckets/size-limit-estimate.
func (h *Handlers) GetBucketEstimate(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	q := h.backend.Buckets(project)
	estimate := q.Estimate(r.Context())
	writeJSON(w, http.StatusOK, EstimateResponse{
		Estimate:     estimate,
		Threshold:    q.Threshold(),
		RunCondition: buckets.ClassifyRunCondition(estimate, q.Threshold()),
	})
}

// RunLargestBuckets handles POST /projects/{ref}/storage/buckets/largest.
// Without confirm=true the scan only runs when the estimate allows it.
func (h *Handlers) RunLargestBuckets(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	var limit *int64
	if raw := params.Get("limit_bytes"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit_bytes must be a non-negative integer")
			return
		}
		limit = &n
	}

	q := h.backend.Buckets(project)
	if params.Get("refresh") == "true" {
		if err := q.Invalidate(r.Context()); err != nil {
			logger.Warn("Bucket cache invalidation failed", "project", project.ProjectRef, "error", err)
		}
	}

	if params.Get("confirm") != "true" && q.RunCondition(r.Context()) == buckets.RunConfirm {
		writeError(w, http.StatusConflict, CodeConfirmationRequired,
			"the bucket count is unknown or above the threshold; repeat with confirm=true")
		return
	}

	list, err := q.Run(r.Context())
	if err != nil {
		writeExecError(w, err)
		return
	}

	resp := LargestBucketsResponse{Buckets: list}
	if resp.Buckets == nil {
		resp.Buckets = []models.Bucket{}
	}
	if limit != nil {
		resp.Exceeding = buckets.ExceedingLimit(list, *limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) project(w http.ResponseWriter, r *http.Request) (privileges.ProjectVars, bool) {
	project, err := h.backend.Project(chi.URLParam(r, "ref"))
	if err != nil {
		if errors.Is(err, db.ErrUnknownProject) {
			writeError(w, http.StatusNotFound, CodeUnknownProject, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		}
		return privileges.ProjectVars{}, false
	}
	return project, true
}

func parseRelationID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("relation id must be a positive integer")
	}
	return uint32(id), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeExecError maps a failed read or change to a response. Missing
// preconditions are the caller's fault; everything the database or network
// reported is a bad gateway.
func writeExecError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sqlexec.ErrProjectRefRequired), errors.Is(err, sqlexec.ErrConnectionStringRequired):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, db.ErrUnknownProject):
		writeError(w, http.StatusNotFound, CodeUnknownProject, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, CodeExecutionFailed, err.Error())
	default:
		code := CodeExecutionFailed
		if execErr, ok := sqlexec.AsExecError(err); ok && execErr.Code != "" {
			code = execErr.Code
		}
		writeError(w, http.StatusBadGateway, code, err.Error())
	}
}
