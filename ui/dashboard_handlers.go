package ui

import (
	"html"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"studykit/app"
	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/internal/configexplorer"
	"studykit/internal/errors"
	"studykit/internal/monitor"
)

func (a *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	a.render(w, status, "error.html", page{Title: "Error", Study: chi.URLParam(r, "study"), Error: err.Error()})
}

func (a *App) studyParam(w http.ResponseWriter, r *http.Request) (core.StudyName, bool) {
	name, err := core.ParseStudyName(chi.URLParam(r, "study"))
	if err != nil {
		a.renderError(w, r, errors.InvalidInput(err.Error()))
		return "", false
	}
	return name, true
}

type indexPage struct {
	page
	Studies []app.StudySummary
	Monitor *monitor.Status
	Signal  bool
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	studies, err := a.c.Studies.List(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	data := indexPage{page: page{Title: "Studies"}, Studies: studies}
	if a.monitor != nil {
		if status, err := a.monitor.Status(); err == nil {
			data.Monitor = status
		}
		if action, err := a.monitor.ConsumeSignal(); err == nil && action == monitor.ActionDeleted {
			data.Signal = true
		}
	}
	a.render(w, http.StatusOK, "index.html", data)
}

func (a *App) handleRunTagging(w http.ResponseWriter, r *http.Request) {
	name, ok := a.studyParam(w, r)
	if !ok {
		return
	}
	if _, err := a.c.Tagging.Tag(r.Context(), name); err != nil {
		a.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/studies/"+url.PathEscape(name.String())+"/timeline", http.StatusSeeOther)
}

type timelinePage struct {
	page
	Ranges      []string
	Range       string
	Participant string
	Result      *app.TimelineResult
	Checked     map[string]bool
}

func (a *App) handleTimelinePage(w http.ResponseWriter, r *http.Request) {
	name, ok := a.studyParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := app.TimelineRequest{
		Study:       name,
		Range:       q.Get("range"),
		Participant: q.Get("participant"),
		Timezone:    q.Get("tz"),
	}
	// a submitted form with nothing ticked means every tag
	if q.Get("tags_set") != "" {
		req.Tags = append([]string{}, q["tag"]...)
	}

	data := timelinePage{
		page:        page{Title: name.String() + " timeline", Study: name.String()},
		Range:       req.Range,
		Participant: req.Participant,
		Checked:     map[string]bool{},
	}
	for _, rg := range timelineRanges {
		data.Ranges = append(data.Ranges, string(rg))
	}
	result, err := a.c.Timeline.Timeline(r.Context(), req)
	if err != nil {
		data.Error = err.Error()
		a.render(w, errors.HTTPStatus(err), "timeline.html", data)
		return
	}
	data.Result = result
	data.Range = string(result.Range)
	for _, tag := range result.Selected {
		data.Checked[tag] = true
	}
	a.render(w, http.StatusOK, "timeline.html", data)
}

type paymentsPage struct {
	page
	Participants []string
	Files        *app.PaymentFiles
	Participant  string
	Start        string
	RateFile     string
	SchemaFile   string
	Report       *payment.Report
}

func (a *App) handlePaymentsPage(w http.ResponseWriter, r *http.Request) {
	name, ok := a.studyParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	data := paymentsPage{
		page:        page{Title: name.String() + " payments", Study: name.String()},
		Participant: q.Get("participant"),
		Start:       q.Get("start"),
		RateFile:    q.Get("rate_file"),
		SchemaFile:  q.Get("schema_file"),
	}

	ids, err := a.c.Payments.Participants(r.Context(), name)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	data.Participants = ids
	if files, err := a.c.Payments.Files(r.Context(), name); err == nil {
		data.Files = files
	} else {
		data.Error = err.Error()
	}

	if data.Participant == "" || data.Start == "" {
		a.render(w, http.StatusOK, "payments.html", data)
		return
	}
	start, err := core.ParseDate(data.Start)
	if err != nil {
		data.Error = "invalid start date " + data.Start
		a.render(w, http.StatusBadRequest, "payments.html", data)
		return
	}
	report, err := a.c.Payments.Report(r.Context(), app.PaymentRequest{
		Study:       name,
		Participant: data.Participant,
		RateFile:    data.RateFile,
		SchemaFile:  data.SchemaFile,
		Start:       start,
		Timezone:    q.Get("tz"),
	})
	if err != nil {
		data.Error = err.Error()
		a.render(w, errors.HTTPStatus(err), "payments.html", data)
		return
	}
	data.Report = report
	a.render(w, http.StatusOK, "payments.html", data)
}

type configSection struct {
	Workflow string
	Files    []*configexplorer.Described
}

type configsPage struct {
	page
	Sections []configSection
}

func (a *App) handleConfigsPage(w http.ResponseWriter, r *http.Request) {
	name, ok := a.studyParam(w, r)
	if !ok {
		return
	}
	files, err := a.c.Explorer.List(name)
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	data := configsPage{page: page{Title: name.String() + " configuration", Study: name.String()}}
	byWorkflow := make(map[string][]*configexplorer.Described)
	for _, f := range files {
		described, err := a.c.Explorer.Describe(f.Workflow, name, f.Name)
		if err != nil {
			// a broken table still gets listed with its parse error
			described = &configexplorer.Described{
				ConfigFile:  f,
				Explanation: configexplorer.Explanation{HTML: "<p class=\"error\">" + html.EscapeString(err.Error()) + "</p>"},
			}
		}
		byWorkflow[f.Workflow] = append(byWorkflow[f.Workflow], described)
	}
	for _, wf := range configexplorer.Workflows {
		data.Sections = append(data.Sections, configSection{Workflow: wf, Files: byWorkflow[wf]})
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		data.Error = msg
	}
	a.render(w, http.StatusOK, "configs.html", data)
}

func (a *App) handleConfigUpload(w http.ResponseWriter, r *http.Request) {
	name, ok := a.studyParam(w, r)
	if !ok {
		return
	}
	back := "/studies/" + url.PathEscape(name.String()) + "/configs"

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Redirect(w, r, back+"?error="+url.QueryEscape("choose a file to upload"), http.StatusSeeOther)
		return
	}
	defer file.Close()
	body, err := io.ReadAll(file)
	if err != nil {
		a.renderError(w, r, errors.Wrap(err, "read upload"))
		return
	}
	if _, err := a.c.Explorer.Save(chi.URLParam(r, "workflow"), name, header.Filename, body); err != nil {
		http.Redirect(w, r, back+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (a *App) monitorAction(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.monitor == nil {
			a.renderError(w, r, errors.NotFound("retention monitor"))
			return
		}
		if err := fn(); err != nil {
			a.renderError(w, r, err)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (a *App) extendDelete() error {
	_, err := a.monitor.ExtendDelete()
	return err
}

func (a *App) extendQuit() error {
	_, err := a.monitor.ExtendQuit()
	return err
}

func (a *App) deleteNow() error {
	_, err := a.monitor.DeleteNow()
	return err
}
