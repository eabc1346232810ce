package intelligence

import (
	"sort"

	"github.com/ignite/leadintel/internal/domain"
)

// AnalyzeEngagement derives response rate, average response time, trend and
// thread shape from a thread collection.
func AnalyzeEngagement(threads []domain.EmailThread) (domain.EngagementAnalysis, domain.ResponsePatterns) {
	if len(threads) == 0 {
		return domain.EngagementAnalysis{Trend: domain.TrendNone}, domain.ResponsePatterns{}
	}

	var (
		multi, single int
		totalMsgs     int
		respSum       float64
		respN         int
	)
	for _, t := range threads {
		n := len(t.Messages)
		totalMsgs += n
		if n > 1 {
			multi++
		} else {
			single++
		}
		if d, ok := firstResponseDelay(t.Messages); ok {
			respSum += d
			respN++
		}
	}

	ea := domain.EngagementAnalysis{
		ResponseRate: float64(multi) / float64(len(threads)),
		Trend:        engagementTrend(threads),
	}
	if respN > 0 {
		ea.AverageResponseTime = respSum / float64(respN)
	}

	rp := domain.ResponsePatterns{
		AverageThreadLength: float64(totalMsgs) / float64(len(threads)),
		InitiatedThreads:    single,
		RespondedThreads:    multi,
	}
	return ea, rp
}

// firstResponseDelay is the gap in milliseconds between the first and
// second message by send time.
func firstResponseDelay(msgs []domain.Message) (float64, bool) {
	if len(msgs) < 2 {
		return 0, false
	}
	times := make([]int64, len(msgs))
	for i, m := range msgs {
		times[i] = m.SentAt.UnixMilli()
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return float64(times[1] - times[0]), true
}

// engagementTrend compares mean messages per thread of the more recent
// ceil(n/2) threads against the rest. Comparisons are done on integers so
// the 1.2 and 0.8 boundaries are exact.
func engagementTrend(threads []domain.EmailThread) domain.EngagementTrend {
	n := len(threads)
	if n == 0 {
		return domain.TrendNone
	}
	ordered := sortedByRecency(threads)
	recentN := (n + 1) / 2
	olderN := n - recentN
	if olderN == 0 {
		return domain.TrendStable
	}

	var recentSum, olderSum int
	for i, t := range ordered {
		if i < recentN {
			recentSum += len(t.Messages)
		} else {
			olderSum += len(t.Messages)
		}
	}

	// recent/recentN vs older/olderN scaled by 10
	lhs := recentSum * olderN * 10
	switch {
	case lhs > olderSum*recentN*12:
		return domain.TrendIncreasing
	case lhs < olderSum*recentN*8:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func sortedByRecency(threads []domain.EmailThread) []domain.EmailThread {
	out := make([]domain.EmailThread, len(threads))
	copy(out, threads)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
