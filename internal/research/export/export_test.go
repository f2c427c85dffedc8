package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func sampleRun() *types.PipelineRun {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.PipelineRun{
		RunID:             "run-1",
		RequestedKeywords: []string{"running shoes", "trail shoes", "bad"},
		Country:           "us",
		Language:          "en",
		Categories:        []types.Category{types.CategoryKeywordMetrics, types.CategorySerp},
		Results: []types.KeywordResult{
			{
				Keyword:   "running shoes",
				Status:    types.StatusOK,
				CacheHits: []types.Category{types.CategoryKeywordMetrics},
				Metrics:   &types.KeywordRecord{Keyword: "running shoes", SearchVolume: 90500, Difficulty: 72, CPC: 1.25, Competition: 0.8},
				Serp: &types.SerpResult{
					Query: "running shoes",
					OrganicResults: []types.OrganicResult{
						{Rank: 2, URL: "https://b.example/", Title: "B, second"},
						{Rank: 1, URL: "https://a.example/", Title: "A"},
						{Rank: 3, URL: "https://c.example/", Title: "C"},
					},
				},
			},
			{
				Keyword: "trail shoes",
				Status:  types.StatusPartial,
				Metrics: &types.KeywordRecord{Keyword: "trail shoes", SearchVolume: 12000},
				Errors:  []types.CategoryError{{Category: types.CategorySerp, Kind: types.KindBlocked, Message: "captcha"}},
			},
			{
				Keyword: "bad",
				Status:  types.StatusFailed,
				Errors: []types.CategoryError{
					{Category: types.CategoryKeywordMetrics, Kind: types.KindTimeout},
					{Category: types.CategorySerp, Kind: types.KindTimeout},
				},
			},
		},
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
	}
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}

func TestExportRunCSV_KeepsRowAndRankOrder(t *testing.T) {
	b, err := Export(sampleRun(), FormatCSV)
	require.NoError(t, err)
	rows := readCSV(t, b)

	require.Len(t, rows, 1+3+1+1)
	assert.Equal(t, runHeader, rows[0])

	assert.Equal(t, []string{"run-1", "running shoes", "ok", "90500", "72", "1.25", "0.8", "1", "https://a.example/", "A", "", "keyword_metrics"}, rows[1])
	assert.Equal(t, "2", rows[2][7])
	assert.Equal(t, "B, second", rows[2][9])
	assert.Equal(t, "3", rows[3][7])

	assert.Equal(t, []string{"run-1", "trail shoes", "partial", "12000", "0", "0", "0", "", "", "", "serp:blocked", ""}, rows[4])
	assert.Equal(t, "keyword_metrics:timeout;serp:timeout", rows[5][10])
	assert.Equal(t, "", rows[5][3])

	again, err := Export(*sampleRun(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestExportRunJSON_FullFidelity(t *testing.T) {
	run := sampleRun()
	b, err := Export(run, FormatJSON)
	require.NoError(t, err)

	var back types.PipelineRun
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, run.Results[0].Serp.OrganicResults, back.Results[0].Serp.OrganicResults)
	assert.True(t, run.CompletedAt.Equal(back.CompletedAt))

	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(again))
}

func TestExportClustersCSV(t *testing.T) {
	res := &types.ClusterResult{
		GenerationID: "gen-1",
		Algorithm:    types.AlgorithmCentroid,
		Clusters: []types.Cluster{
			{ID: "cl_a", Label: "buy shoes", Keywords: []string{"cheap shoes", "buy shoes"}, Intent: types.IntentTransactional, ConfidenceScore: 0.91, Cohesion: 0.95},
			{ID: "cl_b", Label: "shoe sizes", Keywords: []string{"shoe sizes"}, Intent: types.IntentInformational, ConfidenceScore: 1, Cohesion: 1},
		},
	}

	b, err := Export(res, FormatCSV)
	require.NoError(t, err)
	rows := readCSV(t, b)
	require.Len(t, rows, 4)
	assert.Equal(t, clusterHeader, rows[0])
	assert.Equal(t, []string{"gen-1", "cl_a", "buy shoes", "transactional", "0.91", "0.95", "2", "buy shoes"}, rows[1])
	assert.Equal(t, "cheap shoes", rows[2][7])
	assert.Equal(t, "cl_b", rows[3][1])

	b, err = Export(res.Clusters, FormatCSV)
	require.NoError(t, err)
	rows = readCSV(t, b)
	assert.Equal(t, "", rows[1][0])
}

func TestExportScore(t *testing.T) {
	s := types.SeoScore{
		URL:             "https://example.com/",
		OverallScore:    81.5,
		Grade:           types.GradeB,
		SubScores:       map[string]float64{"title": 100, "content": 65, "zz_custom": 1},
		Recommendations: []string{"Declare a canonical URL."},
	}

	b, err := Export(s, FormatCSV)
	require.NoError(t, err)
	rows := readCSV(t, b)
	assert.Equal(t, [][]string{
		{"url", "field", "value"},
		{"https://example.com/", "overall_score", "81.5"},
		{"https://example.com/", "grade", "B"},
		{"https://example.com/", "sub_score.title", "100"},
		{"https://example.com/", "sub_score.content", "65"},
		{"https://example.com/", "sub_score.zz_custom", "1"},
		{"https://example.com/", "recommendation", "Declare a canonical URL."},
	}, rows)

	b, err = Export(&s, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"grade": "B"`)
}

func TestExportRejects(t *testing.T) {
	_, err := Export("nope", FormatJSON)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	_, err = Export(42, FormatCSV)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	_, err = Export(sampleRun(), Format("xml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportNilValues(t *testing.T) {
	values := map[string]any{
		"untyped nil":    nil,
		"nil run":        (*types.PipelineRun)(nil),
		"nil clustering": (*types.ClusterResult)(nil),
		"nil score":      (*types.SeoScore)(nil),
	}
	for name, v := range values {
		for _, f := range []Format{FormatJSON, FormatCSV} {
			t.Run(name+"/"+string(f), func(t *testing.T) {
				var (
					out []byte
					err error
				)
				require.NotPanics(t, func() { out, err = Export(v, f) })
				assert.Nil(t, out)
				assert.ErrorIs(t, err, ErrNilValue)
				assert.ErrorIs(t, err, types.ErrInvalidInput)
			})
		}
	}
}
