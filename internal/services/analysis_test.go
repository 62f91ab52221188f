package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	calls    int
	response string
	err      error
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ *Snapshot) (string, error) {
	a.calls++
	return a.response, a.err
}

func TestAnalysisIsCachedUntilRefresh(t *testing.T) {
	f := newFixture(t)
	seedMarch(f)
	stub := &stubAnalyzer{response: `{"recommendations":["more events"]}`}
	svc := NewAnalysisService(f.store, f.performanceService(), stub, time.Second, f.log)

	first, err := svc.Analysis(f.ctx, "2024-03", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.JSONEq(t, stub.response, string(first.Analysis))

	stub.response = `{"recommendations":["fewer events"]}`
	cached, err := svc.Analysis(f.ctx, "2024-03", false)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.JSONEq(t, `{"recommendations":["more events"]}`, string(cached.Analysis))
	assert.Equal(t, 1, stub.calls)

	refreshed, err := svc.Analysis(f.ctx, "2024-03", true)
	require.NoError(t, err)
	assert.JSONEq(t, stub.response, string(refreshed.Analysis))
	assert.Equal(t, 2, stub.calls)
}

func TestAnalysisFailureLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	seedMarch(f)
	stub := &stubAnalyzer{response: `{"ok":true}`}
	svc := NewAnalysisService(f.store, f.performanceService(), stub, time.Second, f.log)

	_, err := svc.Analysis(f.ctx, "2024-03", false)
	require.NoError(t, err)

	stub.err = errors.New("quota exceeded")
	_, err = svc.Analysis(f.ctx, "2024-03", true)
	require.Error(t, err)

	stored, err := f.store.Analyses.GetByMonth(f.ctx, "2024-03")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(stored.Analysis))
}

func TestAnalysisStoresFallbackOnInvalidJSON(t *testing.T) {
	f := newFixture(t)
	seedMarch(f)
	stub := &stubAnalyzer{response: "The team did great this month!"}
	svc := NewAnalysisService(f.store, f.performanceService(), stub, time.Second, f.log)

	res, err := svc.Analysis(f.ctx, "2024-03", false)
	require.NoError(t, err)

	var doc AnalysisDocument
	require.NoError(t, json.Unmarshal(res.Analysis, &doc))
	assert.Equal(t, "alice", doc.TopPerformer.Name)
	assert.NotEmpty(t, doc.Error)
	assert.Equal(t, stub.response, doc.RawResponse)
	assert.NotEmpty(t, doc.Recommendations)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```JSON\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```Json {\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFence(`  {"a":1} `))
}

func TestLocalAnalyzerProducesDocument(t *testing.T) {
	f := newFixture(t)
	seedMarch(f)
	snap, err := f.performanceService().Snapshot(f.ctx, "2024-03")
	require.NoError(t, err)

	raw, err := LocalAnalyzer{}.Analyze(f.ctx, snap)
	require.NoError(t, err)
	var doc AnalysisDocument
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "alice", doc.TopPerformer.Name)
	assert.Contains(t, doc.TeamInsights.Challenges, "1 agents had no event this month")
}

func TestAnalysisPromptCarriesSnapshot(t *testing.T) {
	snap := &Snapshot{Month: "2024-03", Agents: []AgentPerformance{{AgentID: 1, Name: "alice", Score: 87.5}}}
	prompt, err := analysisPrompt(snap)
	require.NoError(t, err)
	assert.Contains(t, prompt, "2024-03")
	assert.Contains(t, prompt, `"score": 87.5`)
}
