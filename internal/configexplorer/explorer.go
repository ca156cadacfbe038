// Package configexplorer identifies uploaded configuration tables, explains
// them in plain language and files them under the right study directory.
package configexplorer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"studykit/adapters/tabular"
	"studykit/domain/core"
	"studykit/internal"
	"studykit/internal/errors"
)

// Workflows that own a config directory, in display order.
var Workflows = []string{tabular.DownloadDir, tabular.TaggingDir, tabular.PaymentsDir}

// ParseWorkflow accepts download, tagging or payments in any case.
func ParseWorkflow(s string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(s))
	for _, known := range Workflows {
		if w == known {
			return w, nil
		}
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown config workflow %q (want download, tagging or payments)", s))
}

// Explanation describes one table.
type Explanation struct {
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Example     string `json:"example,omitempty"`
	Recognized  bool   `json:"recognized"`
	Markdown    string `json:"markdown"`
	HTML        string `json:"html"`
}

// Explain identifies the table from its headers and builds an example
// sentence from its first row, which may be nil.
func Explain(headers []string, first tabular.Row) Explanation {
	tpl, ok := Identify(headers)
	if !ok {
		md := "### Unrecognized configuration file, no info available.\n"
		return Explanation{Markdown: md, HTML: render(md)}
	}

	example := "N/A"
	if first != nil {
		example = tpl.example(first)
	}
	md := fmt.Sprintf("#### This appears to be %s\n%s\n#### Example:\n%s\n", tpl.Name, tpl.Explanation, example)
	return Explanation{
		Type:        tpl.Key,
		Name:        tpl.Name,
		Explanation: tpl.Explanation,
		Example:     example,
		Recognized:  true,
		Markdown:    md,
		HTML:        render(md),
	}
}

// ExplainTable explains a parsed table.
func ExplainTable(t *tabular.Table) Explanation {
	var first tabular.Row
	if len(t.Rows) > 0 {
		first = t.Rows[0]
	}
	return Explain(t.Headers, first)
}

func render(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML | html.Safelink})
	return string(markdown.ToHTML([]byte(md), p, r))
}

// ConfigFile is one existing config table.
type ConfigFile struct {
	Workflow string `json:"workflow"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// Described is an existing file with its explanation and a short preview.
type Described struct {
	ConfigFile
	Explanation Explanation   `json:"explanation"`
	Headers     []string      `json:"headers"`
	Preview     []tabular.Row `json:"preview"`
}

// Saved reports where an upload went.
type Saved struct {
	Path        string      `json:"path"`
	Overwrote   bool        `json:"overwrote"`
	Explanation Explanation `json:"explanation"`
}

// PreviewRows is how many rows Describe returns.
const PreviewRows = 5

// Explorer reads and writes config/<workflow>/<study>/.
type Explorer struct {
	store  *tabular.ConfigStore
	logger *internal.Logger
}

// New creates an explorer over store.
func New(store *tabular.ConfigStore) *Explorer {
	return &Explorer{store: store, logger: internal.DefaultLogger.Named("config")}
}

// List returns every table of a study grouped by workflow.
func (e *Explorer) List(name core.StudyName) ([]ConfigFile, error) {
	var out []ConfigFile
	for _, w := range Workflows {
		files, err := e.store.ListFiles(w, name)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			cf := ConfigFile{Workflow: w, Name: f}
			if info, err := os.Stat(filepath.Join(e.store.Dir(w, name), f)); err == nil {
				cf.Size = info.Size()
			}
			out = append(out, cf)
		}
	}
	return out, nil
}

// path resolves an existing file, accepting only names List would return.
func (e *Explorer) path(workflow string, name core.StudyName, file string) (string, error) {
	w, err := ParseWorkflow(workflow)
	if err != nil {
		return "", err
	}
	files, err := e.store.ListFiles(w, name)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f == file {
			return filepath.Join(e.store.Dir(w, name), f), nil
		}
	}
	return "", errors.NotFound(fmt.Sprintf("%s config %q for study %s", w, file, name))
}

// Describe explains an existing file and previews its first rows.
func (e *Explorer) Describe(workflow string, name core.StudyName, file string) (*Described, error) {
	path, err := e.path(workflow, name, file)
	if err != nil {
		return nil, err
	}
	t, err := tabular.ReadTable(path)
	if err != nil {
		return nil, err
	}
	d := &Described{
		ConfigFile:  ConfigFile{Workflow: strings.ToLower(workflow), Name: file},
		Explanation: ExplainTable(t),
		Headers:     t.Headers,
		Preview:     t.Rows,
	}
	if len(d.Preview) > PreviewRows {
		d.Preview = d.Preview[:PreviewRows]
	}
	if info, err := os.Stat(path); err == nil {
		d.Size = info.Size()
	}
	return d, nil
}

// Read returns the raw bytes of an existing file.
func (e *Explorer) Read(workflow string, name core.StudyName, file string) ([]byte, error) {
	path, err := e.path(workflow, name, file)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ValidFileName rejects names that are not a plain .csv or .xlsx file name.
func ValidFileName(file string) error {
	if file == "" || file != filepath.Base(file) || strings.ContainsAny(file, `/\`) ||
		file == "." || file == ".." || strings.HasPrefix(file, ".") {
		return errors.InvalidInput(fmt.Sprintf("invalid config file name %q", file))
	}
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".csv" && ext != ".xlsx" {
		return errors.InvalidInput(fmt.Sprintf("config files must be .csv or .xlsx, got %q", file))
	}
	return nil
}

// Save stores an upload under config/<workflow>/<study>/<file>, replacing
// any file of the same name. The body must parse as a table.
func (e *Explorer) Save(workflow string, name core.StudyName, file string, body []byte) (*Saved, error) {
	w, err := ParseWorkflow(workflow)
	if err != nil {
		return nil, err
	}
	if _, err := core.ParseStudyName(name.String()); err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if err := ValidFileName(file); err != nil {
		return nil, err
	}
	t, err := tabular.ParseTable(file, body)
	if err != nil {
		return nil, err
	}

	dir := e.store.Dir(w, name)
	dest := filepath.Join(dir, file)
	if rel, err := filepath.Rel(dir, dest); err != nil || rel != file {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid config file name %q", file))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	_, statErr := os.Stat(dest)
	overwrote := statErr == nil

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "write upload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "write upload")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "store upload")
	}

	if overwrote {
		e.logger.Warn("%s already existed and was overwritten", dest)
	} else {
		e.logger.Info("saved %s", dest)
	}
	return &Saved{Path: dest, Overwrote: overwrote, Explanation: ExplainTable(t)}, nil
}
