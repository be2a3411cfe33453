package predict

import (
	"context"
	"fmt"
	"sort"

	"github.com/contextd/contextd/internal/graph"
)

// fromGraph emits the direct followed_by successors of the current activity's
// graph node. No node id means the source stays quiet.
func (p *Predictor) fromGraph(current CurrentActivity, topK int) []Candidate {
	if p.graph == nil || current.ActivityID == "" {
		return nil
	}

	var out []Candidate
	for _, next := range p.graph.NextActivities(current.ActivityID, topK) {
		out = append(out, Candidate{
			Source:       SourceGraph,
			Confidence:   next.Probability,
			Data:         attrsToData(next.Attrs),
			ActivityType: next.ActivityType,
			Reason:       fmt.Sprintf("Historically follows current activity (%.2f)", next.Probability),
		})
	}
	return out
}

// fromSemantics queries the similarity index with the activity description.
// Matches below 0.5 are dropped by the index itself.
func (p *Predictor) fromSemantics(ctx context.Context, description string, n int) ([]Candidate, error) {
	if p.search == nil {
		return nil, nil
	}

	matches, err := p.search.SearchSimilar(ctx, description, n, 0.5)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, m := range matches {
		out = append(out, Candidate{
			Source:     SourceSemantic,
			Confidence: m.Similarity,
			Data:       m.Metadata,
			Text:       m.Text,
			Reason:     fmt.Sprintf("Semantically similar (score: %.2f)", m.Similarity),
		})
	}
	return out, nil
}

// fromTimePatterns surfaces what the user typically does at this hour on this
// weekday, scored as a fraction of all qualifying history.
func (p *Predictor) fromTimePatterns(n int) ([]Candidate, error) {
	if p.history == nil {
		return nil, nil
	}

	records, err := p.history.Recent(1000, 24*7)
	if err != nil {
		return nil, err
	}

	now := p.now()
	hour := now.Hour()
	weekday := now.Weekday()

	var qualifying []ActivityRecord
	for _, r := range records {
		dh := r.Timestamp.Hour() - hour
		if dh < 0 {
			dh = -dh
		}
		if dh <= 1 && r.Timestamp.Weekday() == weekday {
			qualifying = append(qualifying, r)
		}
	}

	// Records are newest first; count among the most recent 3N qualifiers.
	if len(qualifying) > n*3 {
		qualifying = qualifying[:n*3]
	}

	type pair struct{ app, window string }
	counts := make(map[pair]int)
	var order []pair
	for _, r := range qualifying {
		k := pair{r.AppName, r.WindowTitle}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil, nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}

	var out []Candidate
	for _, k := range order {
		count := counts[k]
		out = append(out, Candidate{
			Source:     SourceTemporal,
			Confidence: float64(count) / float64(total),
			Data: map[string]string{
				"app_name":     k.app,
				"window_title": k.window,
			},
			Reason: fmt.Sprintf("Common activity at this time (%d occurrences)", count),
		})
	}
	return out, nil
}

// fromContinuation scores the apps and files touched in the last hour as
// likely continuations, capped at 0.9 so recency never produces certainty.
func (p *Predictor) fromContinuation(n int) ([]Candidate, error) {
	if p.history == nil {
		return nil, nil
	}

	recent, err := p.history.Recent(20, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	appCounts := make(map[string]int)
	fileCounts := make(map[string]int)
	var appOrder, fileOrder []string
	for _, r := range recent {
		if r.AppName != "" {
			if appCounts[r.AppName] == 0 {
				appOrder = append(appOrder, r.AppName)
			}
			appCounts[r.AppName]++
		}
		if r.FilePath != "" {
			if fileCounts[r.FilePath] == 0 {
				fileOrder = append(fileOrder, r.FilePath)
			}
			fileCounts[r.FilePath]++
		}
	}

	total := float64(len(recent))
	var out []Candidate

	sort.SliceStable(appOrder, func(i, j int) bool {
		return appCounts[appOrder[i]] > appCounts[appOrder[j]]
	})
	if len(appOrder) > n {
		appOrder = appOrder[:n]
	}
	for _, app := range appOrder {
		count := appCounts[app]
		out = append(out, Candidate{
			Source:     SourceContinuation,
			Confidence: min(0.9, float64(count)/total),
			Data:       map[string]string{"app_name": app},
			Reason:     fmt.Sprintf("Recent focus (%d recent activities)", count),
		})
	}

	sort.SliceStable(fileOrder, func(i, j int) bool {
		return fileCounts[fileOrder[i]] > fileCounts[fileOrder[j]]
	})
	if len(fileOrder) > n {
		fileOrder = fileOrder[:n]
	}
	for _, file := range fileOrder {
		count := fileCounts[file]
		out = append(out, Candidate{
			Source:     SourceContinuation,
			Confidence: min(0.9, float64(count)/total),
			Data:       map[string]string{"file_path": file},
			Reason:     fmt.Sprintf("Recently accessed (%d times)", count),
		})
	}

	return out, nil
}

// attrsToData flattens node attributes into a prediction payload. Empty
// fields are omitted so payload keys stay comparable across sources.
func attrsToData(a graph.Attrs) map[string]string {
	data := make(map[string]string)
	if a.AppName != "" {
		data["app_name"] = a.AppName
	}
	if a.WindowTitle != "" {
		data["window_title"] = a.WindowTitle
	}
	if a.FilePath != "" {
		data["file_path"] = a.FilePath
	}
	if a.URL != "" {
		data["url"] = a.URL
	}
	for k, v := range a.Extra {
		data[k] = v
	}
	return data
}
