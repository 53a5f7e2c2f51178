package monitor

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// placeholderKeyword is the reserved value that compiles to the empty
// match-everything keyword. The rule file cannot express an empty
// string unambiguously in every position, so rules use "*" instead.
const placeholderKeyword = "*"

// Overrides carries the per-rule fields that can also appear under
// globalDefaults. A nil pointer means "not set here".
type Overrides struct {
	SearchKey     *string  `mapstructure:"searchKey"`
	FilterWords   []string `mapstructure:"filterWords"`
	MinPrice      *float64 `mapstructure:"minPrice"`
	MaxPrice      *float64 `mapstructure:"maxPrice"`
	LowCommentNum *int     `mapstructure:"lowCommentNum"`
	LowWorthyNum  *int     `mapstructure:"lowWorthyNum"`
}

// rawRule is one structured entry under keywords.
type rawRule struct {
	Keyword   string `mapstructure:"keyword"`
	Overrides `mapstructure:",squash"`
}

// RawConfig is the untyped rule source handed to Compile. Entries may
// be bare strings (shorthand for {keyword: s}) or structured objects.
type RawConfig struct {
	Entries    []any
	Defaults   map[string]any
	SatisfyNum int
}

// Compile normalizes the raw rule source into an immutable RuleSet,
// merging each entry over the global defaults. It fails when an entry
// or the defaults block cannot be decoded; the caller decides whether
// that is fatal (startup) or ignored (reload).
func Compile(raw RawConfig) (*RuleSet, error) {
	var defs Overrides
	if raw.Defaults != nil {
		if err := mapstructure.Decode(raw.Defaults, &defs); err != nil {
			return nil, fmt.Errorf("decode globalDefaults: %w", err)
		}
	}

	rules := make([]Rule, 0, len(raw.Entries))
	for i, entry := range raw.Entries {
		var rr rawRule
		switch v := entry.(type) {
		case string:
			rr.Keyword = v
		case map[string]any:
			if err := mapstructure.Decode(v, &rr); err != nil {
				return nil, fmt.Errorf("decode keywords[%d]: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("keywords[%d]: expected string or object, got %T", i, entry)
		}
		rules = append(rules, mergeRule(defs, rr))
	}

	return &RuleSet{Rules: rules, SatisfyNum: raw.SatisfyNum}, nil
}

// mergeRule resolves one rule against the global defaults. Precedence
// is rule value when present, else default, else zero. FilterWords is
// the ordered union of the default list and the rule's own list.
func mergeRule(defs Overrides, rr rawRule) Rule {
	r := Rule{Keyword: rr.Keyword}
	if r.Keyword == placeholderKeyword {
		r.Keyword = ""
	}

	r.FilterWords = mergeWords(defs.FilterWords, rr.FilterWords)

	r.SearchKey = rr.SearchKey
	if r.SearchKey == nil {
		r.SearchKey = defs.SearchKey
	}
	r.MinPrice = coalesceFloat(rr.MinPrice, defs.MinPrice)
	r.MaxPrice = coalesceFloat(rr.MaxPrice, defs.MaxPrice)
	r.LowCommentNum = coalesceInt(rr.LowCommentNum, defs.LowCommentNum)
	r.LowWorthyNum = coalesceInt(rr.LowWorthyNum, defs.LowWorthyNum)
	return r
}

func mergeWords(defaults, own []string) []string {
	merged := make([]string, 0, len(defaults)+len(own))
	seen := make(map[string]struct{}, len(defaults)+len(own))
	for _, w := range defaults {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		merged = append(merged, w)
	}
	for _, w := range own {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		merged = append(merged, w)
	}
	return merged
}

func coalesceFloat(own, def *float64) *float64 {
	if own != nil {
		return own
	}
	return def
}

func coalesceInt(own, def *int) int {
	if own != nil {
		return *own
	}
	if def != nil {
		return *def
	}
	return 0
}
