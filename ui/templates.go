package ui

import (
	"bytes"
	"log"
	"net/http"
)

// render executes a template into a buffer; on a template error nothing
// of the page is written and the response is a 500.
func (a *App) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[Dashboard] template error for %s: %v", name, err)
		log.Printf("[Dashboard] template data type: %T", data)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[Dashboard] write %s: %v", name, err)
	}
}
