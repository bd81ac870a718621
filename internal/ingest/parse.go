package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var missingMarkers = map[string]bool{"NFS": true, "NA": true, "N/A": true, "NONE": true, "-": true}

// ParsePrice reads a spreadsheet money cell ("$1,250.00"). Blank cells and
// markers such as NFS or N/A yield nil.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
	if s == "" || missingMarkers[strings.ToUpper(s)] {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-06",
	"2 Jan 2006",
}

// ParseDate rewrites a date cell as YYYY-MM-DD so stored dates sort
// chronologically. Cells in no known layout are returned trimmed.
func ParseDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// ParseInt reads an integer cell, truncating decimals ("1963.0" -> 1963).
func ParseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

var truthy = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "qualified": true, "q": true}

// Boolish reads a yes/no cell. Anything unrecognized is false.
func Boolish(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

// SoldIDMissing reports whether a catalog id cell is effectively empty.
func SoldIDMissing(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == "#N/A"
}
