// Package hashtag extracts hashtags from post content. Tag following and
// discovery live in an external service; the mutation pipeline only needs
// the extraction step so links can be recomputed whenever content changes.
package hashtag

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var tagPattern = regexp.MustCompile(`(^|\s)#([\p{L}\p{N}_]+)`)

// Extract returns the distinct, lowercased hashtags in content, in order of
// first appearance.
func Extract(content string) []string {
	matches := tagPattern.FindAllStringSubmatch(content, -1)
	tags := lo.Map(matches, func(m []string, _ int) string {
		return strings.ToLower(m[2])
	})
	return lo.Uniq(tags)
}
