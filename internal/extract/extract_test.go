// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/report-extract/internal/httputil"
	"github.com/pdiddy/report-extract/pkg/types"
)

// --- mock backends ---

type mockBackend struct {
	replies []string // one reply per call, last one repeats
	chunks  []string
	err     error
}

func (m *mockBackend) Extract(_ context.Context, chunk string) (Response, error) {
	m.chunks = append(m.chunks, chunk)
	if m.err != nil {
		return Response{}, m.err
	}
	if len(m.replies) == 0 {
		return Response{}, nil
	}
	i := min(len(m.chunks), len(m.replies)) - 1
	return ParseResponse(m.replies[i])
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	reply     string
}

func (f *failNTimesBackend) Extract(_ context.Context, _ string) (Response, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return Response{}, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return ParseResponse(f.reply)
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func testConfig() types.ExtractionConfig {
	return types.ExtractionConfig{
		AIConfig: types.AIConfig{Model: "test-model", MaxRetries: intPtr(3)},
	}
}

func intPtr(n int) *int { return &n }

const gearheadReply = `{
  "kpis": [
    {"name": "Overall Equipment Effectiveness (OEE)", "value": 78.5, "unit": "%", "confidence": 0.95},
    {"name": "On-Time Delivery (OTD)", "value": 94.2, "unit": "%", "confidence": 0.9},
    {"name": "First Pass Yield", "value": 96.8, "unit": "%", "confidence": 0.9}
  ],
  "dates": [
    {"text": "Week 45", "type": "reporting_period", "normalized": "2025-W45", "confidence": 0.9},
    {"text": "November 20, 2025", "type": "event", "normalized": "2025-11-20", "confidence": 0.85}
  ],
  "organizations": [
    {"name": "Gearhead Cycles", "role": "company", "confidence": 0.95}
  ]
}`

// --- chunkText ---

func TestChunkText(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{
			name: "fits in one chunk",
			text: "a\n\nb\n\nc",
			size: 100,
			want: []string{"a\n\nb\n\nc"},
		},
		{
			name: "splits at blank lines",
			text: "aaaa\n\nbbbb\n\ncccc",
			size: 10,
			want: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name: "oversized block is cut",
			text: "abcdefghij\n\nxy",
			size: 4,
			want: []string{"abcd", "efgh", "ij", "xy"},
		},
		{
			name: "blank blocks do not produce chunks",
			text: "\n\n  \n\nonly",
			size: 10,
			want: []string{"only"},
		},
		{
			name: "size counts characters",
			text: "ééé\n\nüüü",
			size: 3,
			want: []string{"ééé", "üüü"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkText(tt.text, tt.size))
		})
	}
}

func TestChunkText_NoChunkExceedsSize(t *testing.T) {
	var blocks []string
	for i := 0; i < 50; i++ {
		blocks = append(blocks, strings.Repeat("x", i*7%40+1))
	}
	for _, c := range chunkText(strings.Join(blocks, "\n\n"), 64) {
		assert.LessOrEqual(t, len([]rune(c)), 64)
	}
}

// --- callWithRetry ---

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantErr    bool
		wantCalls  int
	}{
		{"succeeds first try", 0, 3, false, 1},
		{"succeeds after 2 failures", 2, 3, false, 3},
		{"fails after exhausting retries", 4, 3, true, 4},
		{"succeeds on last retry", 3, 3, false, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failNTimesBackend{failures: tt.failures, reply: gearheadReply}

			_, err := callWithRetry(context.Background(), backend, "test chunk", tt.maxRetries, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "after 3 retries")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, backend.callCount)
		})
	}
}

func TestCallWithRetry_ContextCancelled(t *testing.T) {
	old := backoffBase
	backoffBase = time.Second
	defer func() { backoffBase = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := callWithRetry(ctx, &failNTimesBackend{failures: 10}, "x", 3, zap.NewNop())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- ExtractEntities ---

func TestExtractEntities_BlankTextSkipsBackend(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		backend := &mockBackend{replies: []string{gearheadReply}}

		got, err := ExtractEntities(context.Background(), backend, text, testConfig())
		require.NoError(t, err)
		assert.Empty(t, backend.chunks)
		assert.NotNil(t, got.KPIs)
		assert.NotNil(t, got.Dates)
		assert.NotNil(t, got.Organizations)
		assert.Zero(t, got.Total())
	}
}

func TestExtractEntities(t *testing.T) {
	backend := &mockBackend{replies: []string{gearheadReply}}

	got, err := ExtractEntities(context.Background(), backend, "Gearhead Cycles weekly report", testConfig())
	require.NoError(t, err)

	require.Len(t, got.KPIs, 3)
	assert.Equal(t, "Overall Equipment Effectiveness (OEE)", got.KPIs[0].Name)
	assert.InDelta(t, 78.5, got.KPIs[0].Value, 1e-9)
	assert.Equal(t, "%", got.KPIs[0].Unit)
	require.Len(t, got.Dates, 2)
	assert.Equal(t, types.DateReportingPeriod, got.Dates[0].Type)
	require.Len(t, got.Organizations, 1)
	assert.Equal(t, "Gearhead Cycles", got.Organizations[0].Name)
	assert.Equal(t, []string{"Gearhead Cycles weekly report"}, backend.chunks)
}

func TestExtractEntities_InvalidItems(t *testing.T) {
	reply := `{
	  "kpis": [
	    {"name": "OEE", "value": 78.5, "unit": "%", "confidence": 0.9},
	    {"name": "Scrap Rate", "value": "2%", "unit": "%", "confidence": 0.9},
	    {"name": "Downtime", "value": 4, "confidence": 0.7},
	    {"name": "Yield", "value": 96.8, "unit": "%", "confidence": 1.4}
	  ],
	  "dates": [
	    {"text": "Week 45", "confidence": 0.9},
	    {"type": "event", "confidence": 0.9}
	  ],
	  "organizations": [
	    {"name": "Gearhead Cycles", "confidence": -0.1},
	    {"name": "Apex Alloys Ltd", "confidence": 0.8}
	  ]
	}`

	t.Run("lenient drops and logs", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		got, err := ExtractEntities(context.Background(), &mockBackend{replies: []string{reply}}, "text", testConfig(), WithLogger(zap.New(core)))
		require.NoError(t, err)

		require.Len(t, got.KPIs, 1)
		assert.Equal(t, "OEE", got.KPIs[0].Name)
		require.Len(t, got.Dates, 1)
		require.Len(t, got.Organizations, 1)
		assert.Equal(t, "Apex Alloys Ltd", got.Organizations[0].Name)
		assert.Equal(t, 5, logs.FilterMessage("dropping invalid item").Len())
	})

	t.Run("strict fails", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strict = true
		_, err := ExtractEntities(context.Background(), &mockBackend{replies: []string{reply}}, "text", cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidResponse))
		assert.Contains(t, err.Error(), "kpi 1")
	})
}

func TestExtractEntities_MergesChunks(t *testing.T) {
	first := `{"kpis":[{"name":"OEE","value":78.5,"unit":"%","confidence":0.6}],
	  "dates":[{"text":"Week 45","confidence":0.9}],
	  "organizations":[{"name":"Gearhead Cycles","confidence":0.9}]}`
	second := `{"kpis":[{"name":"oee","value":78.6,"unit":"%","confidence":0.8},{"name":"OTD","value":94.2,"unit":"%","confidence":0.9}],
	  "dates":[{"text":"week  45","confidence":0.5}],
	  "organizations":[{"name":"GEARHEAD CYCLES","confidence":0.4}]}`

	backend := &mockBackend{replies: []string{first, second}}
	cfg := testConfig()
	cfg.ChunkSize = 10

	got, err := ExtractEntities(context.Background(), backend, "chunk one\n\nchunk two", cfg)
	require.NoError(t, err)
	assert.Len(t, backend.chunks, 2)

	require.Len(t, got.KPIs, 2)
	assert.Equal(t, "oee", got.KPIs[0].Name, "higher confidence record replaces the earlier one")
	assert.InDelta(t, 0.8, got.KPIs[0].Confidence, 1e-9)
	assert.Equal(t, "OTD", got.KPIs[1].Name)

	require.Len(t, got.Dates, 1)
	assert.Equal(t, "Week 45", got.Dates[0].Text)
	require.Len(t, got.Organizations, 1)
	assert.Equal(t, "Gearhead Cycles", got.Organizations[0].Name)
}

func TestExtractEntities_BackendFailure(t *testing.T) {
	backend := &mockBackend{err: errors.New("503 upstream")}
	cfg := testConfig()
	cfg.MaxRetries = intPtr(2)

	_, err := ExtractEntities(context.Background(), backend, "some text", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1/1")
	assert.Contains(t, err.Error(), "503 upstream")
	assert.Len(t, backend.chunks, 3)
}

func TestExtractEntities_RetryCount(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries *int
		wantCalls  int
	}{
		{name: "unset uses default", maxRetries: nil, wantCalls: DefaultMaxRetries + 1},
		{name: "zero disables retries", maxRetries: intPtr(0), wantCalls: 1},
		{name: "negative uses default", maxRetries: intPtr(-1), wantCalls: DefaultMaxRetries + 1},
		{name: "explicit count", maxRetries: intPtr(1), wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{err: errors.New("503 upstream")}
			cfg := testConfig()
			cfg.MaxRetries = tt.maxRetries

			_, err := ExtractEntities(context.Background(), backend, "some text", cfg)
			require.Error(t, err)
			assert.Len(t, backend.chunks, tt.wantCalls)
		})
	}
}

func TestExtractEntities_UnknownDateTypeBecomesOther(t *testing.T) {
	reply := `{"kpis":[],"dates":[{"text":"Q3 2025","type":"Quarter","confidence":0.7},{"text":"Nov 20","type":"EVENT","confidence":0.7}],"organizations":[]}`

	got, err := ExtractEntities(context.Background(), &mockBackend{replies: []string{reply}}, "x", testConfig())
	require.NoError(t, err)
	require.Len(t, got.Dates, 2)
	assert.Equal(t, types.DateOther, got.Dates[0].Type)
	assert.Equal(t, types.DateEvent, got.Dates[1].Type)
}

// --- ParseResponse ---

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantKPIs int
		wantErr  bool
	}{
		{name: "bare object", reply: gearheadReply, wantKPIs: 3},
		{name: "code fence", reply: "```json\n" + gearheadReply + "\n```", wantKPIs: 3},
		{name: "leading prose", reply: "Here are the entities:\n" + gearheadReply, wantKPIs: 3},
		{name: "missing lists", reply: `{}`, wantKPIs: 0},
		{name: "no object", reply: "I could not find anything.", wantErr: true},
		{name: "malformed", reply: `{"kpis": [}`, wantErr: true},
		{name: "wrong list type", reply: `{"kpis": "none"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidResponse))
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.KPIs, tt.wantKPIs)
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt("OEE reached 78.5% in Week 45.")
	require.NoError(t, err)
	assert.Contains(t, prompt, "OEE reached 78.5% in Week 45.")
	for _, key := range []string{`"kpis"`, `"dates"`, `"organizations"`, "confidence"} {
		assert.Contains(t, prompt, key)
	}
}
