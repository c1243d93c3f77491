package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/xwines/xwines/internal/auth"
	"github.com/xwines/xwines/internal/reports"
)

func handleListReports(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports.List()})
}

func handleRunReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REPORTS_NOT_CONFIGURED", "store dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	report, result, err := reports.Run(r.Context(), deps.Store, id)
	if err != nil {
		if errors.Is(err, reports.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "REPORT_NOT_FOUND", "report was not found", false, map[string]any{"id": id})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to run report", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":    report,
		"columns":   result.Columns,
		"rows":      result.Rows,
		"row_count": result.Len(),
	})
}
