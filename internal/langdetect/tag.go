package langdetect

import "strings"

// PrimaryCode reduces a declared language tag such as "en-US" or "pt_BR" to
// its two-letter primary subtag. Anything else yields "".
func PrimaryCode(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return ""
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	primary, _, _ := strings.Cut(tag, "-")
	if len(primary) != 2 {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}
