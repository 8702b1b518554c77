package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/processors"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// reportEnvelope wraps a tax report with per-response metadata. The report
// itself stays deterministic so ETag comparison works across runs; only the
// envelope carries run-scoped fields.
type reportEnvelope struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Report      *models.TaxReport `json:"report"`
}

// HandleGetTaxReport serves GET /api/tax-report?year=YYYY&method=FIFO.
func (h *ReportHandler) HandleGetTaxReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	year, err := parseYearParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		method = processors.MethodFIFO
	}

	report, err := h.reportService.GetTaxReport(r.Context(), userID, year, method)
	if err != nil {
		if errors.Is(err, processors.ErrUnsupportedMethod) || errors.Is(err, processors.ErrInvalidYear) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to compute tax report", "userID", userID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to compute tax report", http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == currentETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", currentETag)
	} else {
		logger.L.Warn("Failed to generate ETag for tax report", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reportEnvelope{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Report:      report,
	})
}

// HandleGetHoldings serves GET /api/holdings?year=YYYY, returning the open
// lots remaining at the end of the requested year.
func (h *ReportHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	year, err := parseYearParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := h.reportService.GetHoldings(r.Context(), userID, year)
	if err != nil {
		logger.L.Error("Failed to compute holdings", "userID", userID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to compute holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.AcquisitionLot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

func parseYearParam(r *http.Request) (int, error) {
	yearStr := r.URL.Query().Get("year")
	if yearStr == "" {
		return time.Now().UTC().Year(), nil
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year <= 0 {
		return 0, errors.New("invalid 'year' query parameter")
	}
	return year, nil
}
