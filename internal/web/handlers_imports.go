package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Luuk00/eco-costa-track/internal/core"
	"github.com/Luuk00/eco-costa-track/internal/statement"
)

// multipartOverhead is allowed on top of the statement size for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// maxJSONBody caps edit and commit request bodies.
const maxJSONBody = 1 << 20

var errBadRequest = errors.New("invalid request body")

// recordPatchRequest is the JSON body of record edits.
//
//	{"costCenterId": "…", "projectId": "…", "direction": "Saída", "clear": ["project"]}
type recordPatchRequest struct {
	CostCenterID *uuid.UUID      `json:"costCenterId"`
	ProjectID    *uuid.UUID      `json:"projectId"`
	Direction    *core.Direction `json:"direction"`
	Clear        []string        `json:"clear"`
}

func (p recordPatchRequest) toPatch() (core.RecordPatch, error) {
	patch := core.RecordPatch{
		CostCenterID: p.CostCenterID,
		ProjectID:    p.ProjectID,
		Direction:    p.Direction,
	}
	for _, field := range p.Clear {
		switch field {
		case "costCenter", "costCenterId":
			patch.ClearCostCenter = true
		case "project", "projectId":
			patch.ClearProject = true
		case "direction":
			patch.ClearDirection = true
		default:
			return core.RecordPatch{}, fmt.Errorf("%w: unknown clear field %q", errBadRequest, field)
		}
	}
	return patch, nil
}

type linkRequest struct {
	Indices []int `json:"indices"`
	recordPatchRequest
}

type commitRequest struct {
	ConfirmUnlinked bool `json:"confirmUnlinked"`
}

// handleOpenImport parses an uploaded statement into a new import session.
func (s *Server) handleOpenImport(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, statement.ErrFileTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	view, err := s.service.OpenSession(r.Context(), tenant, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// handleGetImport returns the session snapshot.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.service.Session(tenant, chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleUpdateRecord edits one staged row.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", core.ErrIndexOutOfRange, err))
		return
	}

	var req recordPatchRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(w, r, err)
		return
	}

	rec, err := s.service.UpdateRecord(r.Context(), tenant, chi.URLParam(r, "sessionID"), index, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleLinkRecords applies one patch to several rows at once.
func (s *Server) handleLinkRecords(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Indices) == 0 {
		respondError(w, r, fmt.Errorf("%w: indices are required", errBadRequest))
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.service.LinkRecords(r.Context(), tenant, chi.URLParam(r, "sessionID"), req.Indices, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleCommit runs the commit gate. A commit with unlinked rows answers
// 409 with the unlinked count until it is repeated with confirmUnlinked.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req commitRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Commit(r.Context(), tenant, chi.URLParam(r, "sessionID"), req.ConfirmUnlinked)
	if errors.Is(err, core.ErrConfirmationRequired) {
		resp := newErrorResponse(err)
		resp.Unlinked = result.Unlinked
		respondErrorWith(w, r, err, http.StatusConflict, resp)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCancelImport discards an import session.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.service.CancelSession(r.Context(), tenant, chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func tenantFrom(r *http.Request) (core.Tenant, error) {
	tenant, ok := core.TenantFromContext(r.Context())
	if !ok {
		return core.Tenant{}, core.ErrMissingTenant
	}
	return tenant, nil
}

// decodeJSON reads a bounded JSON body into v. With allowEmpty an empty
// body leaves v at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
