package zakat

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/zakat-tracker/internal/httpx"
	"github.com/ayush/zakat-tracker/internal/models"
)

var exportHeader = []string{"id", "date", "category", "amount", "zakat_amount", "description"}

// WriteCSV renders entries in the export column order.
func WriteCSV(entries []models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		desc := ""
		if e.Description != nil {
			desc = *e.Description
		}
		row := []string{
			e.ID,
			e.Date.UTC().Format(time.RFC3339),
			e.Category,
			strconv.FormatFloat(e.Amount, 'f', -1, 64),
			strconv.FormatFloat(e.ZakatAmount, 'f', -1, 64),
			desc,
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// Export streams the caller's entries as CSV. When a file store is configured
// a copy is archived under exports/<user_id>/.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	entries, err := h.entries.ListByUser(r.Context(), user.ID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	data, err := WriteCSV(entries)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	if h.files != nil {
		key := fmt.Sprintf("exports/%s/%s.csv", user.ID, uuid.NewString())
		if err := h.files.Upload(r.Context(), key, data, "text/csv"); err != nil {
			h.log.Warn("export archive failed", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			w.Header().Set("X-Export-Key", key)
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=zakat-entries.csv")
	w.Write(data)
}
