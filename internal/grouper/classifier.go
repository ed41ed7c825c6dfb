package grouper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Classifier decides whether the subtask at index depends on earlier work.
type Classifier interface {
	HasDependency(index int, text string) bool
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(index int, text string) bool

// HasDependency calls f.
func (f ClassifierFunc) HasDependency(index int, text string) bool {
	return f(index, text)
}

// SignalKind names which rule flagged a dependency.
type SignalKind string

const (
	SignalNone       SignalKind = ""
	SignalStepRef    SignalKind = "step_reference"
	SignalKeyword    SignalKind = "dependency_keyword"
	SignalSequential SignalKind = "sequential_indicator"
)

// DependencySignal explains a classification.
type DependencySignal struct {
	// Dependent is true when the subtask must wait for the preceding group.
	Dependent bool
	// Kind is the rule that fired.
	Kind SignalKind
	// Matched is the text that triggered the rule.
	Matched string
}

// KeywordClassifier flags dependencies using step references and phrase lists.
type KeywordClassifier struct {
	stepPatterns []*regexp.Regexp
	dependency   *phraseMatcher
	sequential   *phraseMatcher
}

// NewKeywordClassifier compiles a vocabulary. It fails only on invalid step
// patterns.
func NewKeywordClassifier(kw DependencyKeywords) (*KeywordClassifier, error) {
	c := &KeywordClassifier{
		dependency: newPhraseMatcher(kw.Dependency),
		sequential: newPhraseMatcher(kw.Sequential),
	}
	for _, p := range kw.StepPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile step pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("step pattern %q has no capture group", p)
		}
		c.stepPatterns = append(c.stepPatterns, re)
	}
	return c, nil
}

// MustKeywordClassifier is NewKeywordClassifier for vocabularies known to be valid.
func MustKeywordClassifier(kw DependencyKeywords) *KeywordClassifier {
	c, err := NewKeywordClassifier(kw)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultClassifier returns a classifier for the English and Vietnamese
// vocabularies combined.
func DefaultClassifier() *KeywordClassifier {
	return MustKeywordClassifier(MergeKeywords(DefaultDependencyKeywords, VietnameseDependencyKeywords))
}

// HasDependency implements Classifier.
func (c *KeywordClassifier) HasDependency(index int, text string) bool {
	return c.Classify(index, text).Dependent
}

// Classify reports whether text at index depends on earlier subtasks and why.
// Rules are checked in order: backward step references, dependency keywords,
// sequential indicators. References to the same or a later step are ignored.
func (c *KeywordClassifier) Classify(index int, text string) DependencySignal {
	lower := strings.ToLower(text)

	for _, re := range c.stepPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			ordinal, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			// Ordinals are 1-based; step N lives at index N-1.
			if ordinal >= 1 && ordinal-1 < index {
				return DependencySignal{Dependent: true, Kind: SignalStepRef, Matched: m[0]}
			}
		}
	}

	if kw, ok := c.dependency.match(lower); ok {
		return DependencySignal{Dependent: true, Kind: SignalKeyword, Matched: kw}
	}

	if kw, ok := c.sequential.match(lower); ok {
		return DependencySignal{Dependent: true, Kind: SignalSequential, Matched: kw}
	}

	return DependencySignal{}
}

// phraseMatcher finds whole-word phrases. Word boundaries are Unicode-aware so
// Vietnamese phrases are not matched inside longer words.
type phraseMatcher struct {
	re *regexp.Regexp
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	var alts []string
	for _, p := range phrases {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		quoted := regexp.QuoteMeta(p)
		alts = append(alts, strings.Join(strings.Fields(quoted), `\s+`))
	}
	if len(alts) == 0 {
		return &phraseMatcher{}
	}
	pattern := `(?:^|[^\p{L}\p{N}_])(` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}_])`
	return &phraseMatcher{re: regexp.MustCompile(pattern)}
}

func (m *phraseMatcher) match(lower string) (string, bool) {
	if m.re == nil {
		return "", false
	}
	sub := m.re.FindStringSubmatch(lower)
	if sub == nil {
		return "", false
	}
	return sub[1], true
}
