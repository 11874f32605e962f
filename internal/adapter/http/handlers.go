package http

import (
	"net/http"

	"github.com/VoteVerify/voteguard/internal/domain/promise"
	"github.com/VoteVerify/voteguard/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Promises   *service.PromiseService
	Validation *service.ValidationService
}

// ListPromises handles GET /api/v1/promises
func (h *Handlers) ListPromises(w http.ResponseWriter, r *http.Request) {
	promises, err := h.Promises.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if promises == nil {
		promises = []promise.Promise{}
	}
	writeJSON(w, http.StatusOK, promises)
}

// GetPromise handles GET /api/v1/promises/{id}
func (h *Handlers) GetPromise(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	p, err := h.Promises.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "promise not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePromise handles POST /api/v1/promises
func (h *Handlers) CreatePromise(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[promise.CreateRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Promises.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "promise creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePromise handles PUT /api/v1/promises/{id}
func (h *Handlers) UpdatePromise(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	req, ok := readJSON[promise.UpdateRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Promises.Update(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, err, "promise not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePromise handles DELETE /api/v1/promises/{id}
func (h *Handlers) DeletePromise(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Promises.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "promise not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListValidationRuns handles GET /api/v1/promises/{id}/runs
func (h *Handlers) ListValidationRuns(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	runs, err := h.Promises.Runs(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "promise not found")
		return
	}
	if runs == nil {
		runs = []promise.ValidationRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// ValidatePromise handles POST /api/v1/promises/{id}/validate.
// It runs the full generate-evaluate-reloop pipeline synchronously and
// returns the persisted audit record plus the final outcome.
func (h *Handlers) ValidatePromise(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	run, outcome, err := h.Validation.ValidatePromise(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "promise not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"outcome": outcome,
	})
}

// quickCheckRequest is the body for POST /api/v1/quickcheck.
type quickCheckRequest struct {
	Content any    `json:"content"`
	Context string `json:"context,omitempty"`
	Multi   bool   `json:"multi,omitempty"`
}

// QuickCheck handles POST /api/v1/quickcheck. It evaluates arbitrary content
// through the quality gate in a single pass, without reloop or persistence.
func (h *Handlers) QuickCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[quickCheckRequest](w, r)
	if !ok {
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	result := h.Validation.QuickCheck(r.Context(), req.Content, req.Context, req.Multi)
	writeJSON(w, http.StatusOK, result)
}
