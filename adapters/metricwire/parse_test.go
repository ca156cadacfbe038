package metricwire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNormalizeOffset(t *testing.T) {
	tests := map[string]string{
		"-5:00":  "-05:00",
		"+5:30":  "+05:30",
		"-05:00": "-05:00",
		"10:00":  "+10:00",
		"":       "+00:00",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeOffset(in), in)
	}
}

func TestParseAnswerTime(t *testing.T) {
	got, err := parseAnswerTime("31/12/2025", "23:59:30", "-5:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, time.January, 1, 4, 59, 30, 0, time.UTC), got.UTC())

	none, err := parseAnswerTime("", "", "-5:00")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseAnswerTime("2025-12-31", "23:59:30", "-5:00")
	assert.Error(t, err)
}

func TestAnswerContent(t *testing.T) {
	doc := gjson.Parse(`{"s":"text","n":4.5,"a":["x","y"],"z":null,"b":true}`)
	assert.Equal(t, "text", answerContent(doc.Get("s")))
	assert.Equal(t, "4.5", answerContent(doc.Get("n")))
	assert.Equal(t, `["x","y"]`, answerContent(doc.Get("a")))
	assert.Equal(t, "", answerContent(doc.Get("z")))
	assert.Equal(t, "", answerContent(doc.Get("missing")))
	assert.Equal(t, "true", answerContent(doc.Get("b")))
}

func TestParseResponsesMarksNotSeen(t *testing.T) {
	sub := gjson.Parse(`{"responseId":"r1","questionValues":{
		"q1":{"response":"CONDITION_SKIPPED"},
		"q2":{"response":"DYNAMIC_CONDITION_SKIPPED"},
		"q3":{"response":"NO_ANSWER"}}}`)
	catalogue := flattenQuestions(gjson.Parse(`[{"id":"q1","variableName":"a"},{"id":"q2","variableName":"b"},{"id":"q3","variableName":"c"}]`), Survey{ID: "sv"}, "")
	index := indexQuestions(catalogue)

	responses, err := parseResponses(sub, index, map[string]bool{"a": true, "b": true, "c": true})
	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.True(t, responses[0].NotSeen)
	assert.True(t, responses[1].NotSeen)
	assert.True(t, responses[2].Skipped)
	assert.Equal(t, "NO_ANSWER", responses[2].Content)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.Zero(t, rl.reserve())
	now = now.Add(30 * time.Second)
	assert.Zero(t, rl.reserve())

	wait := rl.reserve()
	assert.InDelta(t, float64(30*time.Second), float64(wait), float64(10*time.Millisecond))

	now = now.Add(31 * time.Second)
	assert.Zero(t, rl.reserve(), "the first call has left the window")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, DefaultConfig().Validate(), "credentials are required")
	assert.NoError(t, DefaultConfig().WithCredentials("id", "secret").Validate())

	cfg := DefaultConfig().WithCredentials("id", "secret")
	cfg.BaseURL = "ftp://example"
	var verr *ValidationError
	require.ErrorAs(t, cfg.Validate(), &verr)
	assert.Equal(t, "BaseURL", verr.Field)
}
