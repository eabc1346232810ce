package intelligence

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Template names.
const (
	tplInsightEngagementTitle  = "insight.high_engagement.title"
	tplInsightEngagementDesc   = "insight.high_engagement.description"
	tplInsightUrgencyTitle     = "insight.time_sensitive.title"
	tplInsightUrgencyDesc      = "insight.time_sensitive.description"
	tplInsightConversionTitle  = "insight.high_conversion.title"
	tplInsightConversionDesc   = "insight.high_conversion.description"
	tplPredictionConversion    = "prediction.conversion"
	tplPredictionNextAction    = "prediction.next_action"
	tplRecommendPrioritize     = "recommend.prioritize"
	tplRecommendSwitchChannel  = "recommend.switch_channel"
	tplRecommendPersonalize    = "recommend.personalize"
	tplRecommendRespondQuickly = "recommend.respond_quickly"
)

var defaultTemplates = map[string]string{
	tplInsightEngagementTitle:  `High Engagement Detected`,
	tplInsightEngagementDesc:   `{{ name }} is highly engaged, with an engagement score of {{ engagement }}/100 across email, tasks and meetings.`,
	tplInsightUrgencyTitle:     `Time-Sensitive Opportunity`,
	tplInsightUrgencyDesc:      `Urgency score {{ urgency }}/100: recent activity, hot categories or overdue follow-ups need attention now.`,
	tplInsightConversionTitle:  `High Conversion Likelihood`,
	tplInsightConversionDesc:   `{{ name }} has an estimated {{ probability | percent }} probability of converting.`,
	tplPredictionConversion:    `{{ name }} is {{ probability | percent }} likely to convert ({{ timeframe | humanize }}).`,
	tplPredictionNextAction:    `Next likely step: {{ action }}.`,
	tplRecommendPrioritize:     `Prioritize immediate outreach: engagement ({{ engagement }}) and urgency ({{ urgency }}) are both high.`,
	tplRecommendSwitchChannel:  `Switch channels: only {{ response_rate | percent }} of email threads get a reply, try a phone call or text.`,
	tplRecommendPersonalize:    `Personalize outreach: value score is {{ value }} but engagement is only {{ engagement }}.`,
	tplRecommendRespondQuickly: `Respond within 2 hours: urgency score is {{ urgency }}.`,
}

// Renderer turns narrative templates into text. Templates are Liquid, parsed
// once and cached; rendering the same bindings always gives the same text.
type Renderer struct {
	engine    *liquid.Engine
	templates map[string]string
	cache     sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with the built-in templates. overrides
// replaces individual templates by name.
func NewRenderer(overrides map[string]string) *Renderer {
	engine := liquid.NewEngine()

	// {{ 0.42 | percent }} → 42%
	engine.RegisterFilter("percent", func(value interface{}) string {
		switch v := value.(type) {
		case float64:
			return fmt.Sprintf("%.0f%%", v*100)
		case int:
			return fmt.Sprintf("%d%%", v*100)
		default:
			return fmt.Sprintf("%v", value)
		}
	})
	// {{ "short_term" | humanize }} → short term
	engine.RegisterFilter("humanize", func(value interface{}) string {
		return strings.ReplaceAll(fmt.Sprintf("%v", value), "_", " ")
	})

	tpls := make(map[string]string, len(defaultTemplates)+len(overrides))
	for k, v := range defaultTemplates {
		tpls[k] = v
	}
	for k, v := range overrides {
		tpls[k] = v
	}
	return &Renderer{engine: engine, templates: tpls}
}

// Render renders the named template with the given bindings.
func (r *Renderer) Render(name string, bindings map[string]interface{}) (string, error) {
	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}
	out, rerr := tpl.RenderString(bindings)
	if rerr != nil {
		return "", fmt.Errorf("render %s: %w", name, rerr)
	}
	return strings.TrimSpace(out), nil
}

func (r *Renderer) template(name string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(name); ok {
		return cached.(*liquid.Template), nil
	}
	src, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	actual, _ := r.cache.LoadOrStore(name, tpl)
	return actual.(*liquid.Template), nil
}

// narrator renders a batch of templates against one binding set and keeps
// the first error, so callers can render several texts and check once.
type narrator struct {
	r        *Renderer
	bindings map[string]interface{}
	err      error
}

func (n *narrator) text(name string, extra ...interface{}) string {
	if n.err != nil {
		return ""
	}
	b := n.bindings
	if len(extra) > 0 {
		b = make(map[string]interface{}, len(n.bindings)+len(extra)/2)
		for k, v := range n.bindings {
			b[k] = v
		}
		for i := 0; i+1 < len(extra); i += 2 {
			b[fmt.Sprint(extra[i])] = extra[i+1]
		}
	}
	out, err := n.r.Render(name, b)
	if err != nil {
		n.err = err
	}
	return out
}
