// Package export serializes research results as JSON or CSV. Every function
// here is pure.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/seo-research-backend/internal/research/scoring"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var (
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	ErrUnsupportedValue  = errors.New("export: unsupported value")
	// ErrNilValue is also types.ErrInvalidInput.
	ErrNilValue = fmt.Errorf("export: nil value: %w", types.ErrInvalidInput)
)

// ParseFormat accepts "json" or "csv" in any case. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Export encodes a PipelineRun, a cluster list, a ClusterResult or a
// SeoScore. JSON keeps every field; CSV flattens a fixed subset with a
// deterministic row order.
func Export(v any, f Format) ([]byte, error) {
	if isNil(v) {
		return nil, fmt.Errorf("%w: %T", ErrNilValue, v)
	}
	switch f {
	case FormatJSON:
		switch v.(type) {
		case *types.PipelineRun, types.PipelineRun, []types.Cluster,
			*types.ClusterResult, types.ClusterResult, *types.SeoScore, types.SeoScore:
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
		}
		return json.MarshalIndent(v, "", "  ")
	case FormatCSV:
		rows, err := csvRows(v)
		if err != nil {
			return nil, err
		}
		return writeCSV(rows)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func csvRows(v any) ([][]string, error) {
	switch t := v.(type) {
	case *types.PipelineRun:
		return runRows(t), nil
	case types.PipelineRun:
		return runRows(&t), nil
	case []types.Cluster:
		return clusterRows("", t), nil
	case *types.ClusterResult:
		return clusterRows(t.GenerationID, t.Clusters), nil
	case types.ClusterResult:
		return clusterRows(t.GenerationID, t.Clusters), nil
	case *types.SeoScore:
		return scoreRows(t), nil
	case types.SeoScore:
		return scoreRows(&t), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *types.PipelineRun:
		return t == nil
	case *types.ClusterResult:
		return t == nil
	case *types.SeoScore:
		return t == nil
	}
	return false
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("export: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

var runHeader = []string{
	"run_id", "keyword", "status", "search_volume", "difficulty", "cpc", "competition",
	"serp_rank", "serp_url", "serp_title", "errors", "cache_hits",
}

// runRows emits one row per organic result of each keyword, in request
// order then rank order. A keyword without organic results gets one row.
func runRows(r *types.PipelineRun) [][]string {
	rows := [][]string{runHeader}
	for _, res := range r.Results {
		base := []string{r.RunID, res.Keyword, string(res.Status), "", "", "", ""}
		if m := res.Metrics; m != nil {
			base[3] = strconv.FormatInt(m.SearchVolume, 10)
			base[4] = formatFloat(m.Difficulty)
			base[5] = formatFloat(m.CPC)
			base[6] = formatFloat(m.Competition)
		}
		tail := []string{categoryErrors(res.Errors), joinCategories(res.CacheHits)}

		var organic []types.OrganicResult
		if res.Serp != nil {
			organic = append(organic, res.Serp.OrganicResults...)
			sort.SliceStable(organic, func(i, j int) bool { return organic[i].Rank < organic[j].Rank })
		}
		if len(organic) == 0 {
			rows = append(rows, concat(base, []string{"", "", ""}, tail))
			continue
		}
		for _, o := range organic {
			rows = append(rows, concat(base, []string{strconv.Itoa(o.Rank), o.URL, o.Title}, tail))
		}
	}
	return rows
}

var clusterHeader = []string{
	"generation_id", "cluster_id", "label", "intent", "confidence_score", "cohesion", "size", "keyword",
}

// clusterRows emits one row per member keyword. Clusters keep their order and
// members are sorted, since membership is a set.
func clusterRows(generation string, clusters []types.Cluster) [][]string {
	rows := [][]string{clusterHeader}
	for _, c := range clusters {
		members := append([]string(nil), c.Keywords...)
		sort.Strings(members)
		for _, kw := range members {
			rows = append(rows, []string{
				generation, c.ID, c.Label, string(c.Intent),
				formatFloat(c.ConfidenceScore), formatFloat(c.Cohesion),
				strconv.Itoa(len(c.Keywords)), kw,
			})
		}
	}
	return rows
}

// scoreRows emits url/field/value triples: the overall score and grade, the
// sub-scores, then each recommendation.
func scoreRows(s *types.SeoScore) [][]string {
	rows := [][]string{
		{"url", "field", "value"},
		{s.URL, "overall_score", formatFloat(s.OverallScore)},
		{s.URL, "grade", string(s.Grade)},
	}

	known := make(map[string]bool, len(scoring.SubScoreOrder))
	for _, name := range scoring.SubScoreOrder {
		known[name] = true
		if v, ok := s.SubScores[name]; ok {
			rows = append(rows, []string{s.URL, "sub_score." + name, formatFloat(v)})
		}
	}
	var extra []string
	for name := range s.SubScores {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		rows = append(rows, []string{s.URL, "sub_score." + name, formatFloat(s.SubScores[name])})
	}

	for _, rec := range s.Recommendations {
		rows = append(rows, []string{s.URL, "recommendation", rec})
	}
	return rows
}

func categoryErrors(errs []types.CategoryError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, string(e.Category)+":"+string(e.Kind))
	}
	return strings.Join(parts, ";")
}

func joinCategories(cats []types.Category) string {
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
