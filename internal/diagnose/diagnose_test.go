package diagnose

import (
	"strings"
	"testing"

	"github.com/nemaniarjun/storyengine/internal/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCountsEventsAndFailures(t *testing.T) {
	log := eventlog.NewLog()
	log.RecordDispatch(eventlog.EventDispatchStarted, "s1", "1", "", "")
	log.RecordDispatch(eventlog.EventDispatchCompleted, "s1", "1", "", "")
	log.RecordDispatch(eventlog.EventDispatchFailed, "s1", "2", "boom", "ConfigError")
	log.RecordDispatch(eventlog.EventDispatchFailed, "s2", "1", "nope", "TransportError")

	report := Analyze(log)
	assert.Equal(t, 4, report.TotalEvents)
	assert.Equal(t, 1, report.ByErrorKind["ConfigError"])
	assert.Equal(t, 1, report.ByErrorKind["TransportError"])
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "s1", report.Failures[0].Story)
	assert.Equal(t, "ConfigError", report.Failures[0].ErrorKind)
}

func TestAnalyzeFindsNoisiestStoryBreakingTiesAlphabetically(t *testing.T) {
	log := eventlog.NewLog()
	log.RecordDispatch(eventlog.EventDispatchStarted, "zeta", "1", "", "")
	log.RecordDispatch(eventlog.EventDispatchStarted, "zeta", "2", "", "")
	log.RecordDispatch(eventlog.EventDispatchStarted, "alpha", "1", "", "")
	log.RecordDispatch(eventlog.EventDispatchStarted, "alpha", "2", "", "")

	report := Analyze(log)
	assert.Equal(t, "alpha", report.NoisiestStory)
}

func TestAnalyzeJSONLParsesLineDelimitedEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"seq":1,"kind":"dispatch.started","story":"s1","line":"1","message":""}`,
		"",
		`{"seq":2,"kind":"dispatch.failed","story":"s1","line":"2","message":"boom","error_kind":"ConfigError"}`,
	}, "\n")

	report, err := AnalyzeJSONL(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalEvents)
	assert.Equal(t, 1, report.ByErrorKind["ConfigError"])
}

func TestAnalyzeJSONLRejectsMalformedLine(t *testing.T) {
	_, err := AnalyzeJSONL(strings.NewReader(`not json`))
	require.Error(t, err)
}

func TestReportStringRendersSortedErrorKinds(t *testing.T) {
	r := Report{
		TotalEvents:   5,
		NoisiestStory: "checkout",
		ByErrorKind:   map[string]int{"TransportError": 2, "ConfigError": 1},
	}
	out := r.String()
	assert.Contains(t, out, "5 events")
	assert.Contains(t, out, "noisiest story: checkout")

	configIdx := strings.Index(out, "ConfigError")
	transportIdx := strings.Index(out, "TransportError")
	require.NotEqual(t, -1, configIdx)
	require.NotEqual(t, -1, transportIdx)
	assert.Less(t, configIdx, transportIdx)
}
