package ui

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardIndex(t *testing.T) {
	c := newPilot(t)
	a, err := NewApp(c, newTestMonitor(t, c))
	require.NoError(t, err)

	rec := serve(a.Handler(), http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pilot")
	assert.Contains(t, body, "Downloaded data is on disk")
	assert.NotContains(t, body, "example", "example studies are hidden")
}

func TestDashboardTagAndTimeline(t *testing.T) {
	a, err := NewApp(newPilot(t), nil)
	require.NoError(t, err)
	h := a.Handler()

	rec := serve(h, http.MethodPost, "/studies/pilot/tag", nil, "")
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/studies/pilot/timeline", rec.Header().Get("Location"))

	rec = serve(h, http.MethodGet, "/studies/pilot/timeline", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "4 tagged sessions")

	rec = serve(h, http.MethodGet, "/studies/pilot/timeline?tags_set=1&tag=No+risk", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 tagged sessions")

	rec = serve(h, http.MethodGet, "/studies/pilot/timeline?range=decade", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardPayments(t *testing.T) {
	a, err := NewApp(newPilot(t), nil)
	require.NoError(t, err)
	h := a.Handler()

	rec := serve(h, http.MethodGet, "/studies/pilot/payments", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ppt-1001")
	assert.NotContains(t, rec.Body.String(), "Compensation")

	rec = serve(h, http.MethodGet, "/studies/pilot/payments?participant=1001&start=2025-05-01", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Daily EMA")
	assert.Contains(t, rec.Body.String(), "$10.00")

	rec = serve(h, http.MethodGet, "/studies/pilot/payments?participant=1001&start=May", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardConfigs(t *testing.T) {
	a, err := NewApp(newPilot(t), nil)
	require.NoError(t, err)
	h := a.Handler()

	rec := serve(h, http.MethodGet, "/studies/pilot/configs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tags.csv")
	assert.Contains(t, rec.Body.String(), "<h4")

	body, ct := multipartFile(t, "notes.txt", "hello")
	rec = serve(h, http.MethodPost, "/studies/pilot/configs/tagging", body, ct)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=")

	body, ct = multipartFile(t, "tags_v2.csv", "id,title,color,explanation\nt1,Calm,#00ff00,Low ratings\n")
	rec = serve(h, http.MethodPost, "/studies/pilot/configs/tagging", body, ct)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/studies/pilot/configs", rec.Header().Get("Location"))
}

func TestDashboardMonitorDisabled(t *testing.T) {
	a, err := NewApp(newPilot(t), nil)
	require.NoError(t, err)

	rec := serve(a.Handler(), http.MethodPost, "/monitor/delete", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
