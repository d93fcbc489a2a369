package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// lookupLimit caps autocomplete results.
const lookupLimit = 20

type lookupResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type lookupResponse struct {
	Results []lookupResult `json:"results"`
}

// handleLookup answers autocomplete widgets with objects whose label
// contains ?term=.
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !canView(staffFromRequest(r), ma.Model) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission denied"})
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	choices, err := h.store.SearchChoices(r.Context(), ma.Model, term, lookupLimit)
	if err != nil {
		log.Printf("lookup %s: %v", ma.Model, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	resp := lookupResponse{Results: make([]lookupResult, 0, len(choices))}
	for _, c := range choices {
		resp.Results = append(resp.Results, lookupResult{ID: strconv.FormatInt(c.ID, 10), Text: c.Label})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write json: %v", err)
	}
}
