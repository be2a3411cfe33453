package predict

import (
	"sort"
	"strings"
)

// payloadKey renders a candidate's data payload as an order-independent key.
// Two candidates merge iff their payload sets are exactly equal.
func payloadKey(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(data[k])
		b.WriteByte('\x1f')
	}
	return b.String()
}

type fused struct {
	cand  Candidate
	count int
}

// Fuse merges candidates sharing a payload, ranks by confidence, truncates to
// maxResults, and finally drops everything below minConfidence. Truncation
// happens before thresholding, so fewer than maxResults items can come back.
func Fuse(candidates []Candidate, maxResults int, minConfidence float64) []Candidate {
	merged := make(map[string]*fused)
	var order []string

	for _, c := range candidates {
		key := payloadKey(c.Data)
		f, ok := merged[key]
		if !ok {
			merged[key] = &fused{cand: c, count: 1}
			order = append(order, key)
			continue
		}
		// Running average weighted by how many candidates merged so far.
		f.cand.Confidence = (f.cand.Confidence*float64(f.count) + c.Confidence) / float64(f.count+1)
		f.count++
		if !strings.Contains(f.cand.Reason, c.Reason) {
			f.cand.Reason += "; " + c.Reason
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key].cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}

	filtered := out[:0]
	for _, c := range out {
		if c.Confidence >= minConfidence {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
