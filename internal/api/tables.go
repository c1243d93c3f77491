package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/xwines/xwines/internal/auth"
	"github.com/xwines/xwines/internal/browser"
	"github.com/xwines/xwines/internal/config"
)

const maxPageSize = 500

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Browser == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "BROWSER_NOT_CONFIGURED", "browser dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tables, err := deps.Browser.Tables(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	items := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		descriptor := deps.Browser.Describe(table)
		items = append(items, map[string]any{
			"table_name":     descriptor.Name,
			"primary_key":    descriptor.PrimaryKey,
			"positional":     descriptor.Positional,
			"display_column": descriptor.DisplayColumn,
			"relations":      descriptor.Relations,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": items})
}

func handleListRows(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Browser == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "BROWSER_NOT_CONFIGURED", "browser dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tableName := strings.TrimSpace(r.PathValue("table"))
	if tableName == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table path parameter is required", false, nil)
		return
	}

	query := r.URL.Query()
	// A malformed page falls back to the first one rather than failing.
	page, err := intParam(query.Get("page"), 1)
	if err != nil {
		page = 1
	}
	pageSize, err := intParam(query.Get("page_size"), cfg.Browser.PageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PAGE_SIZE", "page_size must be between 1 and "+strconv.Itoa(maxPageSize), false, nil)
		return
	}

	listing, err := deps.Browser.ListRows(r.Context(), tableName, page, pageSize, query.Get("q"))
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{"table_name": tableName})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list rows", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func handleGetRow(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Browser == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "BROWSER_NOT_CONFIGURED", "browser dependency is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tableName := strings.TrimSpace(r.PathValue("table"))
	key := r.PathValue("key")
	if tableName == "" || key == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "KEY_REQUIRED", "table and key path parameters are required", false, nil)
		return
	}

	detail, err := deps.Browser.GetDetail(r.Context(), tableName, key)
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "ROW_NOT_FOUND", "row was not found", false, map[string]any{"table_name": tableName, "key": key})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to get row", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
