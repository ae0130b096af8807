package api

import (
	"net/http"

	"github.com/okian/rinktrack/internal/adapters/dataaccess"
)

// DataHandler serves dashboard reads through the data-access interface.
type DataHandler struct {
	deps Dependencies
}

// HandleEntities handles GET /data.
func (h *DataHandler) HandleEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entities": h.deps.Entities()})
}

// HandleQuery handles GET /data/{entity}. Each query parameter becomes a
// filter entry; repeated parameters keep the first value.
func (h *DataHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	f := dataaccess.Filter{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			f[k] = vs[0]
		}
	}
	rows, err := h.deps.Query(r.Context(), r.PathValue("entity"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []dataaccess.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
