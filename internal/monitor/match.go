package monitor

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// regexMarker prefixes keywords that should be treated as regular
// expressions; an inline (?i) flag in the pattern body is honored.
const regexMarker = "re:"

// freshnessWindow is how far back publish dates are still considered
// new. Older items never notify, even when unseen.
const freshnessWindow = 48 * time.Hour

// literalRunPattern finds the first maximal CJK/alphanumeric run of a
// regex body, used to derive a literal upstream query term.
var literalRunPattern = regexp.MustCompile(`[\p{Han}a-zA-Z0-9]+`)

// Decide reports whether item is a genuine new hit for rule. Checks
// short-circuit in a fixed order: dedup, recency, excluded words,
// title match, numeric thresholds.
func Decide(item Item, rule Rule, hist History, now time.Time, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}

	if hist.Seen(item.ID) {
		return false
	}
	if item.PublishedAt < now.Add(-freshnessWindow).Unix() {
		return false
	}
	for _, w := range rule.FilterWords {
		if strings.Contains(item.Title, w) {
			return false
		}
	}
	if !isTitleMatch(item.Title, rule, logger) {
		return false
	}

	price := ParsePrice(item.PriceText)
	if rule.MinPrice != nil && price < *rule.MinPrice {
		return false
	}
	if rule.MaxPrice != nil && price > *rule.MaxPrice {
		return false
	}
	if ParseCount(item.CommentText) < rule.LowCommentNum {
		return false
	}
	if ParseCount(item.WorthyText) < rule.LowWorthyNum {
		return false
	}
	return true
}

// isTitleMatch applies the rule keyword to a title. Empty keywords
// accept everything. A malformed regex degrades to "no match" with a
// logged diagnostic; it never propagates past this boundary.
func isTitleMatch(title string, rule Rule, logger *zap.Logger) bool {
	kw := rule.Keyword
	if kw == "" {
		return true
	}
	if strings.HasPrefix(kw, regexMarker) {
		re, err := regexp.Compile(strings.TrimPrefix(kw, regexMarker))
		if err != nil {
			logger.Warn("invalid rule regex, treating as non-match",
				zap.String("keyword", kw), zap.Error(err))
			return false
		}
		return re.MatchString(title)
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(kw))
}

// SearchKeyFor derives the literal query string sent upstream for a
// rule. An explicit searchKey wins verbatim, including an explicitly
// empty one. Regex rules are narrowed to the first literal run of the
// pattern body since the endpoint only accepts literal queries; the
// full regex still runs client-side in isTitleMatch.
func SearchKeyFor(rule Rule) string {
	if rule.SearchKey != nil {
		return *rule.SearchKey
	}
	if strings.HasPrefix(rule.Keyword, regexMarker) {
		body := strings.TrimPrefix(rule.Keyword, regexMarker)
		body = strings.ReplaceAll(body, "(?i)", "")
		return literalRunPattern.FindString(body)
	}
	return rule.Keyword
}
