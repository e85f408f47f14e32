package core

import "regexp"

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// extractMentions returns the @handles referenced in a note, in order of
// first appearance with duplicates removed.
func extractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		handle := m[1]
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		out = append(out, handle)
	}
	return out
}
