// Package detector screens chat messages against the active violation rules.
package detector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"

	"github.com/samber/lo"
)

// RuleSource provides the active rule set.
type RuleSource interface {
	GetActiveRules(ctx context.Context) ([]models.ViolationRule, error)
}

type compiledRule struct {
	rule    models.ViolationRule
	pattern *regexp.Regexp
}

// Detector evaluates text against a cached snapshot of the rules. A rule change
// becomes visible at most one TTL later.
type Detector struct {
	source RuleSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	rules    []compiledRule
	loaded   bool
	loadedAt time.Time
}

// New returns a Detector caching rules for ttl. A zero ttl reloads on every call.
func New(source RuleSource, ttl time.Duration) *Detector {
	return &Detector{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Compile builds the case-insensitive whole-word pattern of a rule. Words are
// pattern fragments, so a phrase or an alternation is allowed.
func Compile(rule models.ViolationRule) (*regexp.Regexp, error) {
	words := lo.FilterMap(rule.Words, func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(w)
		return w, w != ""
	})
	if len(words) == 0 {
		return nil, fmt.Errorf("rule %q has no words", rule.Type)
	}
	return regexp.Compile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

// Evaluate returns one violation per matching rule. An empty result means clean.
func (d *Detector) Evaluate(ctx context.Context, text string) ([]models.Violation, error) {
	rules, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	violations := lo.FilterMap(rules, func(r compiledRule, _ int) (models.Violation, bool) {
		return models.Violation{Type: r.rule.Type, Message: r.rule.Message}, r.pattern.MatchString(text)
	})
	return violations, nil
}

func (d *Detector) snapshot(ctx context.Context) ([]compiledRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded && d.ttl > 0 && d.now().Sub(d.loadedAt) < d.ttl {
		return d.rules, nil
	}

	raw, err := d.source.GetActiveRules(ctx)
	if err != nil {
		if d.loaded {
			logx.Warn("Rule reload failed, using cached rules", "error", err.Error(), "rules", len(d.rules))
			return d.rules, nil
		}
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	rules := make([]compiledRule, 0, len(raw))
	for _, rule := range raw {
		pattern, err := Compile(rule)
		if err != nil {
			logx.Warn("Skipping invalid rule", "rule_id", rule.ID, "type", rule.Type, "error", err.Error())
			continue
		}
		rules = append(rules, compiledRule{rule: rule, pattern: pattern})
	}

	d.rules = rules
	d.loaded = true
	d.loadedAt = d.now()
	return rules, nil
}
