package clarifier

import (
	"regexp"
	"strings"
)

// goalKeywords are action verbs that mark a message as naming something to
// automate, rather than just background chatter.
var goalKeywords = []string{
	"notify", "alert", "remind", "send", "create", "generate", "summarize",
	"monitor", "track", "fetch", "build", "automate", "schedule", "post",
	"check", "watch", "report",
}

// outcomeKeywords mark a message as naming what should happen once the
// goal condition is met.
var outcomeKeywords = []string{
	"then", "so that", "result", "notify me", "send me", "email me",
	"message me", "post to", "save to", "update",
}

var (
	quotedRe     = regexp.MustCompile(`"[^"]+"`)
	numberRe     = regexp.MustCompile(`\d`)
	emailOrURLRe = regexp.MustCompile(`https?://|@[a-zA-Z0-9.]+`)
)

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// hasConcreteInput reports whether the conversation names a concrete value
// to act on: a number, a quoted string, an email/URL, or simply a message
// long enough to plausibly carry a named subject.
func hasConcreteInput(combined string) bool {
	return numberRe.MatchString(combined) || quotedRe.MatchString(combined) ||
		emailOrURLRe.MatchString(combined) || len(combined) > 60
}
