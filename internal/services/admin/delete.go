package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"golang.org/x/text/message"
)

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, ma *ModelAdmin, id int64) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !h.requirePerm(w, r, staffFromRequest(r).HasPerm(permCodename(permDelete, ma.Model))) {
		return
	}
	if r.Method == http.MethodPost {
		loc, _ := h.localizer(w, r)
		if !parsePost(w, r, loc) {
			return
		}
	}
	h.deleteObjects(w, r, ma, []int64{id}, routepath.Change(cases.AppLabel, string(ma.Model), id))
}

// deletePlan is what deleting a set of objects touches.
type deletePlan struct {
	objects   []Object
	cascade   []string
	protected []string
}

// planDelete loads ids and the dependents that would cascade or block.
func (h *Handler) planDelete(ctx context.Context, loc *message.Printer, ma *ModelAdmin, ids []int64) (deletePlan, error) {
	var plan deletePlan
	for _, id := range ids {
		obj, err := ma.source.get(ctx, h.store, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return plan, fmt.Errorf("get %s %d: %w", ma.Model, id, err)
		}
		plan.objects = append(plan.objects, obj)

		for _, dep := range ma.source.dependents() {
			depSource := sources[dep.model]
			page, err := depSource.list(ctx, h.store, storage.ListQuery{
				Lookups: []storage.Lookup{{Path: dep.lookup, Value: strconv.FormatInt(id, 10)}},
				OrderBy: []storage.Order{{Field: "id"}},
				Limit:   storage.NoLimit,
			})
			if err != nil {
				return plan, fmt.Errorf("list %s of %s %d: %w", dep.model, ma.Model, id, err)
			}
			for _, item := range page.Items {
				label := objectLabel(loc, dep.model, item)
				if dep.protect {
					plan.protected = append(plan.protected, label)
				} else {
					plan.cascade = append(plan.cascade, label)
				}
			}
		}
	}
	return plan, nil
}

// deleteObjects shows the confirmation page, or deletes once the form was
// confirmed. back is where cancel links point.
func (h *Handler) deleteObjects(w http.ResponseWriter, r *http.Request, ma *ModelAdmin, ids []int64, back string) {
	page, loc := h.pageContext(w, r)
	ctx := r.Context()
	listURL := routepath.ChangeList(cases.AppLabel, string(ma.Model))

	plan, err := h.planDelete(ctx, loc, ma, ids)
	if err != nil {
		h.renderServerError(w, r, "plan delete", err)
		return
	}
	if len(plan.objects) == 0 {
		if len(ids) == 1 {
			h.renderNotFound(w, r)
			return
		}
		setFlash(w, r, templates.Message{Level: templates.LevelWarning, Text: templates.T(loc, "changelist.no_selection")})
		http.Redirect(w, r, listURL, http.StatusSeeOther)
		return
	}

	confirmed := r.Method == http.MethodPost && r.PostForm.Get(confirmParam) == "yes"
	if confirmed && len(plan.protected) == 0 {
		deleted := 0
		for _, obj := range plan.objects {
			err := ma.source.remove(ctx, h.store, obj.PK())
			switch {
			case err == nil:
				deleted++
				h.logAction(ctx, adminstorage.LogDeletion, ma.Model, obj.PK(), obj.String(), "")
			case errors.Is(err, storage.ErrProtected):
				plan.protected = append(plan.protected, objectLabel(loc, ma.Model, obj))
			case errors.Is(err, storage.ErrNotFound):
			default:
				h.renderServerError(w, r, "delete "+string(ma.Model), err)
				return
			}
		}
		if len(plan.protected) == 0 {
			text := templates.T(loc, "delete.done", modelName(loc, ma.Model), plan.objects[0].String())
			if len(plan.objects) > 1 {
				text = templates.T(loc, "delete.done_many", deleted, modelPlural(loc, ma.Model))
			}
			setFlash(w, r, templates.Message{Level: templates.LevelSuccess, Text: text})
			http.Redirect(w, r, listURL, http.StatusSeeOther)
			return
		}
	}

	view := templates.DeleteView{
		Heading: templates.PageHeading{
			Title:       templates.T(loc, "delete.title"),
			Breadcrumbs: modelBreadcrumbs(loc, ma.Model),
		},
		Action:    r.URL.RequestURI(),
		Cascade:   plan.cascade,
		Protected: plan.protected,
		CancelURL: back,
	}
	for _, obj := range plan.objects {
		view.Objects = append(view.Objects, objectLabel(loc, ma.Model, obj))
	}
	if len(ids) > 1 || r.PostForm.Get(actionParam) == actionDeleteSelected {
		view.Action = back
		for _, obj := range plan.objects {
			view.IDs = append(view.IDs, obj.PK())
		}
	} else {
		view.Heading.Breadcrumbs = append(view.Heading.Breadcrumbs, templates.Breadcrumb{
			Label: plan.objects[0].String(),
			URL:   routepath.Change(cases.AppLabel, string(ma.Model), plan.objects[0].PK()),
		})
	}
	view.Heading.Trail(templates.T(loc, "delete.title"))
	h.render(w, r, http.StatusOK, templates.DeleteConfirmPage(page, view))
}
