package api

import (
	"fmt"
	"net/http"

	"github.com/okian/rinktrack/internal/adapters/export"
)

// PersistenceHandler serves local saves, remote sync and CSV export.
type PersistenceHandler struct {
	deps Dependencies
}

// HandleSave handles POST /sessions/{id}/save.
func (h *PersistenceHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Save(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSync handles POST /sessions/{id}/sync. A superseded sync is not an
// error; the report says so.
func (h *PersistenceHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.deps.Sync(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleExport handles GET /sessions/{id}/export?kind=events|shifts|all.
func (h *PersistenceHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	table, err := h.deps.Export(r.Context(), id, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-"+string(kind)+".csv"))
	w.WriteHeader(http.StatusOK)
	_ = export.WriteCSV(w, table)
}
