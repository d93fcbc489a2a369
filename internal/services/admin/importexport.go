package admin

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/resources"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	textcases "golang.org/x/text/cases"
)

// Import form field names.
const (
	importFileField    = "import_file"
	importFormatField  = "format"
	importPayloadField = "payload"
	importConfirmField = "confirm"
)

// handleExport downloads the rows matching the changelist params.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	if ma.Resource == nil {
		h.renderNotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !h.requirePerm(w, r, canView(staffFromRequest(r), ma.Model)) {
		return
	}
	loc, _ := h.localizer(w, r)

	query := r.URL.Query()
	format, err := resources.ParseFormat(query.Get(importFormatField))
	if err != nil {
		http.Error(w, loc.Sprintf("import.unsupported_format", query.Get(importFormatField)), eoderrors.HTTPStatus(err))
		return
	}
	query.Del(importFormatField)
	cl := parseChangeList(ma, query)

	var buf bytes.Buffer
	if err := resources.Export(r.Context(), &buf, ma.Resource, h.store, cl.listQuery(ma), format); err != nil {
		switch code := eoderrors.GetCode(err); code {
		case eoderrors.CodeInvalidFilter:
			http.Error(w, loc.Sprintf("changelist.invalid_filter"), code.HTTPStatus())
			return
		case eoderrors.CodeInvalidLookup:
			http.Error(w, loc.Sprintf("changelist.invalid_lookup"), code.HTTPStatus())
			return
		}
		log.Printf("export %s: %v", ma.Model, err)
		http.Error(w, loc.Sprintf("error.server"), http.StatusInternalServerError)
		return
	}

	name := resources.Filename(exportModelName(ma.Model), h.now(), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("write export %s: %v", ma.Model, err)
	}
}

// exportModelName title-cases the model name for file names.
func exportModelName(model cases.Model) string {
	return textcases.Title(language.English).String(string(model))
}

// handleImport shows the upload form, previews an uploaded file as a dry run
// and applies a confirmed payload.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	if ma.Resource == nil {
		h.renderNotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	staff := staffFromRequest(r)
	if !h.requirePerm(w, r, staff.HasPerm(permCodename(permAdd, ma.Model)) && staff.HasPerm(permCodename(permChange, ma.Model))) {
		return
	}

	if r.Method != http.MethodPost {
		page, loc := h.pageContext(w, r)
		h.render(w, r, http.StatusOK, templates.ImportPage(page, importView(loc, ma, "")))
		return
	}

	loc, _ := h.localizer(w, r)
	if !parsePost(w, r, loc) {
		return
	}
	confirm := r.PostForm.Get(importConfirmField) != ""
	formatValue := r.PostForm.Get(importFormatField)
	view := importView(loc, ma, formatValue)

	format, err := resources.ParseFormat(formatValue)
	if err != nil {
		view.Errors = append(view.Errors, templates.T(loc, "import.unsupported_format", formatValue))
		h.renderImport(w, r, view)
		return
	}

	var payload []byte
	if confirm {
		payload, err = base64.StdEncoding.DecodeString(r.PostForm.Get(importPayloadField))
	} else {
		payload, err = readUpload(r)
	}
	if err != nil || len(payload) == 0 {
		view.Errors = append(view.Errors, templates.T(loc, "import.missing_file"))
		h.renderImport(w, r, view)
		return
	}

	dataset, err := resources.Decode(bytes.NewReader(payload), format)
	if err != nil {
		view.Errors = append(view.Errors, templates.T(loc, "import.invalid_file", err.Error()))
		h.renderImport(w, r, view)
		return
	}

	ctx := r.Context()
	result, err := resources.Import(ctx, ma.Resource, h.store, dataset, !confirm)
	if err != nil {
		if eoderrors.IsCode(err, eoderrors.CodeImportInvalidRow) {
			view.Errors = append(view.Errors, templates.T(loc, "import.missing_id", resources.IDField))
			h.renderImport(w, r, view)
			return
		}
		h.renderServerError(w, r, "import "+string(ma.Model), err)
		return
	}

	if result.Committed {
		for _, row := range result.Rows {
			switch row.Type {
			case resources.RowNew:
				h.logAction(ctx, adminstorage.LogAddition, ma.Model, row.ObjectID, row.ObjectRepr, "")
			case resources.RowUpdate:
				h.logAction(ctx, adminstorage.LogChange, ma.Model, row.ObjectID, row.ObjectRepr, "import")
			}
		}
		totals := result.Totals()
		setFlash(w, r, templates.Message{
			Level: templates.LevelSuccess,
			Text: templates.T(loc, "import.done",
				totals[resources.RowNew], totals[resources.RowUpdate], totals[resources.RowSkip]),
		})
		http.Redirect(w, r, routepath.ChangeList(cases.AppLabel, string(ma.Model)), http.StatusSeeOther)
		return
	}

	view.Result = importResultView(loc, result)
	if !result.HasErrors() {
		view.Payload = base64.StdEncoding.EncodeToString(payload)
		view.Format = string(format)
	}
	h.renderImport(w, r, view)
}

func (h *Handler) renderImport(w http.ResponseWriter, r *http.Request, view templates.ImportView) {
	page, _ := h.pageContext(w, r)
	h.render(w, r, http.StatusOK, templates.ImportPage(page, view))
}

// readUpload returns the uploaded import file.
func readUpload(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile(importFileField)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxFormBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty upload")
	}
	return data, nil
}

func importView(loc *message.Printer, ma *ModelAdmin, selected string) templates.ImportView {
	view := templates.ImportView{
		Heading: templates.PageHeading{
			Title:       templates.T(loc, "import.title", modelPlural(loc, ma.Model)),
			Breadcrumbs: modelBreadcrumbs(loc, ma.Model),
		},
		Action: routepath.Import(cases.AppLabel, string(ma.Model)),
	}
	view.Heading.Trail(templates.T(loc, "changelist.import"))
	for i, f := range resources.Formats() {
		view.Formats = append(view.Formats, templates.Option{
			Value:    string(f),
			Label:    strings.ToUpper(string(f)),
			Selected: string(f) == selected || (selected == "" && i == 0),
		})
	}
	return view
}

func importResultView(loc *message.Printer, result resources.Result) *templates.ImportResultView {
	view := &templates.ImportResultView{
		Headers:   result.Headers,
		HasErrors: result.HasErrors(),
		Committed: result.Committed,
	}
	totals := result.Totals()
	for _, rowType := range resources.RowTypes() {
		view.Totals = append(view.Totals, templates.ImportTotal{
			Label: templates.T(loc, "import.row_"+string(rowType)),
			Count: totals[rowType],
		})
	}
	for _, row := range result.Rows {
		rv := templates.ImportRowView{
			Number:    row.Number,
			Type:      string(row.Type),
			TypeLabel: templates.T(loc, "import.row_"+string(row.Type)),
			Object:    row.ObjectRepr,
			Values:    row.Values,
		}
		fields := make([]string, 0, len(row.Errors))
		for field := range row.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			for _, msg := range row.Errors[field] {
				rv.Errors = append(rv.Errors, field+": "+templates.T(loc, msg))
			}
		}
		view.Rows = append(view.Rows, rv)
	}
	return view
}
