// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"policy-monitor/internal/common/config"
	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/document"
	"policy-monitor/internal/models"
	"policy-monitor/internal/submission"
)

const maxJSONBody = 1 << 20 // intake payloads are small

// SerialLister exposes the serial audit view.
type SerialLister interface {
	List(ctx context.Context) ([]models.Serial, error)
}

// Pinger is a health-checkable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers binds the HTTP surface to the submission service.
type Handlers struct {
	service *submission.Service
	serials SerialLister
	uploads config.UploadConfig
	pg      Pinger
	rdb     Pinger
	logger  logger.Logger
}

func NewHandlers(
	service *submission.Service,
	serials SerialLister,
	uploads config.UploadConfig,
	pg, rdb Pinger,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		service: service,
		serials: serials,
		uploads: uploads,
		pg:      pg,
		rdb:     rdb,
		logger:  log,
	}
}

// GET /api/serial-numbers/available/{policyType}
func (h *Handlers) availableSerial(w http.ResponseWriter, r *http.Request) {
	policyType := r.PathValue("policyType")

	res, err := h.service.AvailableSerial(r.Context(), policyType)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"requiresSerial": res.RequiresSerial,
		"serialNumber":   res.SerialNumber,
	})
}

// POST /api/monitoring/submit
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		respondError(w, apperrors.NewValidationError("cannot read request body", err.Error()))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, apperrors.NewValidationError("request body must be JSON", err.Error()))
		return
	}
	if err := validateSubmitPayload(payload); err != nil {
		respondError(w, err)
		return
	}

	var req submission.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, apperrors.NewValidationError("request body must be JSON", err.Error()))
		return
	}

	sub, err := h.service.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, sub)
}

// GET /api/submissions/details/{serialNumber}
func (h *Handlers) details(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.DetailsBySerial(r.Context(), r.PathValue("serialNumber"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, details)
}

// POST /api/form-submissions (multipart)
func (h *Handlers) attachDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, apperrors.NewValidationError("request must be multipart form data", err.Error()))
		return
	}

	serialNumber := r.FormValue("serialNumber")
	if serialNumber == "" {
		respondError(w, apperrors.NewValidationError("serialNumber is required", ""))
		return
	}

	formData := map[string]interface{}{}
	if raw := r.FormValue("formData"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &formData); err != nil {
			respondError(w, apperrors.NewValidationError("formData must be JSON", err.Error()))
			return
		}
	}

	req := &submission.AttachRequest{
		FormType: stringField(formData, "formType"),
		FormData: formData,
	}
	req.ModeOfPayment = stringField(formData, "modeOfPayment")
	req.PolicyDate = stringField(formData, "policyDate")

	files, err := h.collectFiles(r)
	if err != nil {
		respondError(w, err)
		return
	}
	req.Files = files

	sub, failures, err := h.service.AttachDocuments(r.Context(), serialNumber, req)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(failures) > 0 {
		respondPartial(w, sub, failures)
		return
	}
	respondOK(w, sub)
}

// collectFiles drains every file part. Each file is read against the
// size cap plus one byte so an oversize upload is detected without
// buffering the whole thing past the limit.
func (h *Handlers) collectFiles(r *http.Request) ([]document.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var files []document.File
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, apperrors.NewValidationError("cannot read uploaded file", fh.Filename)
			}
			content, err := io.ReadAll(io.LimitReader(f, h.uploads.MaxFileSize+1))
			f.Close()
			if err != nil {
				return nil, apperrors.NewValidationError("cannot read uploaded file", fh.Filename)
			}
			files = append(files, document.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        int64(len(content)),
				Content:     content,
			})
		}
	}
	return files, nil
}

// GET /api/monitoring/all
func (h *Handlers) listAll(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, subs)
}

// GET /api/form-submissions
func (h *Handlers) listWithForms(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListWithForms(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, subs)
}

// PATCH /api/form-submissions/{id}/status
func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		respondError(w, apperrors.NewValidationError("request body must be JSON", err.Error()))
		return
	}

	sub, err := h.service.SetStatus(r.Context(), r.PathValue("id"), models.Status(body.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, sub)
}

// POST /api/submissions/{id}/pay
func (h *Handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.RecordPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Payment recorded",
		Data:    map[string]interface{}{"nextDate": sub.NextPaymentDate},
	})
}

// GET /api/submissions/{id}/payments
func (h *Handlers) paymentHistory(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.PaymentHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, payments)
}

// GET /api/customers
func (h *Handlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, customers)
}

// GET /api/customers/{id}
func (h *Handlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, customer)
}

// GET /api/serial-numbers
func (h *Handlers) serialHistory(w http.ResponseWriter, r *http.Request) {
	serials, err := h.serials.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, serials)
}

// GET /api/health
func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	if h.pg != nil {
		components["postgres"] = "ok"
		if err := h.pg.Ping(r.Context()); err != nil {
			components["postgres"] = err.Error()
			healthy = false
		}
	}
	if h.rdb != nil {
		components["redis"] = "ok"
		if err := h.rdb.Ping(r.Context()); err != nil {
			components["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"success":    healthy,
		"components": components,
	})
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
