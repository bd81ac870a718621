package matcher

import (
	"strconv"
	"strings"
)

// Queries builds the marketplace search strings for an item, most specific
// first. Series that the market lists under legacy names get one query per name.
func Queries(title, issue string, year *int) []string {
	title = strings.TrimSpace(title)
	issue = strings.TrimSpace(issue)
	y := ""
	if year != nil && *year > 0 {
		y = strconv.Itoa(*year)
	}

	base := []string{join(title, issue)}
	switch Normalize(title) {
	case "mighty thor":
		base = []string{
			join("Journey into Mystery", issue, y),
			join("Thor", issue, y),
			join("Mighty Thor", issue, y),
			join("Journey into Mystery", issue),
			join("Mighty Thor", issue),
		}
	case "x men":
		base = []string{
			join("X-Men", issue, y),
			join("The X-Men", issue, y),
			join("X-Men", issue),
		}
	default:
		if y != "" {
			base = []string{join(title, issue, y), join(title, issue)}
		}
	}

	seen := make(map[string]bool, len(base))
	var out []string
	for _, q := range base {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func join(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
