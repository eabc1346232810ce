package intelligence

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/leadintel/internal/domain"
)

var (
	amountRe      = regexp.MustCompile(`(?i)\$\s?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s?(k|m|mm|million|thousand)?\b`)
	preApprovedRe = regexp.MustCompile(`(?i)\bpre-?\s?approv(?:ed|al)\b`)
	financingRe   = regexp.MustCompile(`(?i)\b(?:mortgage|financing|lender|loan|down payment|interest rate)s?\b`)
)

// minBudgetAmount filters incidental dollar figures (fees, small costs) out
// of price mentions.
const minBudgetAmount = 10000

type phrase struct {
	re    *regexp.Regexp
	label string
}

// Extractor finds pain points, competitor mentions and price cues in
// message bodies with fixed dictionaries. Results are sorted, so message
// order never changes the output.
type Extractor struct {
	painPoints  []phrase
	competitors []phrase
}

// NewExtractor compiles the phrase → label pain point dictionary and the
// competitor name list.
func NewExtractor(painPoints map[string]string, competitors []string) *Extractor {
	e := &Extractor{}
	keys := make([]string, 0, len(painPoints))
	for k := range painPoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		e.painPoints = append(e.painPoints, phrase{re: wholePhrase(k), label: painPoints[k]})
	}
	for _, c := range competitors {
		if strings.TrimSpace(c) == "" {
			continue
		}
		e.competitors = append(e.competitors, phrase{re: wholePhrase(c), label: c})
	}
	return e
}

// wholePhrase matches p case-insensitively when not embedded in a longer word.
func wholePhrase(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])` + regexp.QuoteMeta(strings.TrimSpace(p)) + `(?:$|[^\pL\pN])`)
}

// Extract scans the bodies.
func (e *Extractor) Extract(bodies []string) (painPoints, competitors []string, price domain.PriceSignals) {
	pains := map[string]bool{}
	comps := map[string]bool{}
	mentions := map[string]bool{}

	for _, body := range bodies {
		for _, p := range e.painPoints {
			if p.re.MatchString(body) {
				pains[p.label] = true
			}
		}
		for _, c := range e.competitors {
			if c.re.MatchString(body) {
				comps[c.label] = true
			}
		}
		for _, m := range amountRe.FindAllStringSubmatch(body, -1) {
			amount, ok := parseAmount(m[1], m[2])
			if !ok || amount < minBudgetAmount {
				continue
			}
			mentions[strings.TrimSpace(m[0])] = true
			if price.BudgetMin == 0 || amount < price.BudgetMin {
				price.BudgetMin = amount
			}
			if amount > price.BudgetMax {
				price.BudgetMax = amount
			}
		}
		if preApprovedRe.MatchString(body) {
			price.PreApproved = true
			price.FinancingMentioned = true
		}
		if financingRe.MatchString(body) {
			price.FinancingMentioned = true
		}
	}

	price.Mentions = sortedKeys(mentions)
	return sortedKeys(pains), sortedKeys(comps), price
}

func parseAmount(num, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k", "thousand":
		v *= 1e3
	case "m", "mm", "million":
		v *= 1e6
	}
	return v, true
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
