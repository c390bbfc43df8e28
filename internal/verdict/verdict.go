// Package verdict extracts the gatekeeper's rating from free text.
package verdict

import (
	"regexp"

	"boardroom/internal/domain"
)

var marker = regexp.MustCompile(`VERDICT:\s+(TRASH|MID|VIABLE|FIRE)\b`)

// Parse returns the first "VERDICT: <token>" rating in text. Matching is
// case-sensitive and the token must stand alone, so "VERDICT: FIREWORKS"
// yields nothing.
func Parse(text string) (domain.Verdict, bool) {
	m := marker.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return domain.Verdict(m[1]), true
}
