package httpapi

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"leadtracker/internal/audit"
	"leadtracker/internal/leads"
	"leadtracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// csvColumns is the export column order. Every lead field is included.
var csvColumns = []leads.Field{
	leads.FieldLeadDate,
	leads.FieldName,
	leads.FieldSalespersonName,
	leads.FieldLeadSource,
	leads.FieldOtherSource,
	leads.FieldPhone,
	leads.FieldEmail,
	leads.FieldCountry,
	leads.FieldCity,
	leads.FieldClientType,
	leads.FieldServicePitch,
	leads.FieldFirstMessageSent,
	leads.FieldReplyReceived,
	leads.FieldSeen,
	leads.FieldInterested,
	leads.FieldFollowUpNeeded,
	leads.FieldFollowUpDate,
	leads.FieldScreenshotURL,
	leads.FieldScreenshotFileName,
	leads.FieldNotes,
	leads.FieldStatus,
	leads.FieldDealValue,
	leads.FieldReasonLost,
	leads.FieldOtherReasonLost,
}

// ExportCSV streams the caller's leads for ?window= as CSV.
func (h Handlers) ExportCSV(c *gin.Context) {
	w, ok := parseWindow(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	reports := h.reports()
	dash := reports.Dashboard(s.Repo.Leads(), w)

	name := fmt.Sprintf("leads-%s-%s.csv", dash.Window, reports.Now().UTC().Format(leads.DateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := writeLeadsCSV(c.Writer, dash.Leads); err != nil {
		logger.FromGin(c).Error("csv export failed", "err", err)
		return
	}
	h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadsExported, Message: fmt.Sprintf("%d leads, window %s", len(dash.Leads), dash.Window)})
}

func writeLeadsCSV(out io.Writer, rows []leads.Lead) error {
	w := csv.NewWriter(out)
	header := make([]string, 0, len(csvColumns)+3)
	header = append(header, "id")
	for _, f := range csvColumns {
		header = append(header, string(f))
	}
	header = append(header, "created_at", "updated_at")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, l := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, l.ID)
		for _, f := range csvColumns {
			rec = append(rec, csvValue(l.Value(f)))
		}
		rec = append(rec, csvTime(l.CreatedAt), csvTime(l.UpdatedAt))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
