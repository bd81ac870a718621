package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ItemStatus represents the lifecycle state of an inventory item.
type ItemStatus string

const (
	ItemStatusUnlisted ItemStatus = "unlisted"
	ItemStatusDrafted  ItemStatus = "drafted"
	ItemStatusSold     ItemStatus = "sold"
)

// GradeClass groups items by how much grading evidence exists for them.
type GradeClass string

const (
	GradeClassSlabbed        GradeClass = "slabbed"
	GradeClassRawCommunity   GradeClass = "raw_community"
	GradeClassRawNoCommunity GradeClass = "raw_no_community"
)

// Item is a single inventory book.
type Item struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"external_id,omitempty"` // catalog id from the inventory sheet
	SourceRow    int        `json:"source_row,omitempty"`
	Title        string     `json:"title"`
	Issue        string     `json:"issue"`
	IssueSort    *int       `json:"issue_sort,omitempty"`
	Year         *int       `json:"year,omitempty"`
	GradeNumeric *float64   `json:"grade_numeric,omitempty"` // nil = raw, grade unknown
	CertID       string     `json:"cert_id,omitempty"`       // grading-house certificate
	CommunityURL string     `json:"community_url,omitempty"` // community grading thread
	Qualified    bool       `json:"qualified"`
	Status       ItemStatus `json:"status"`
	SoldPrice    *float64   `json:"sold_price,omitempty"`
	SoldDate     string     `json:"sold_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsSlabbed reports whether the item carries a grading-house certificate.
func (i Item) IsSlabbed() bool {
	return strings.TrimSpace(i.CertID) != ""
}

// GradeClass derives the grade class from certificate and community evidence.
func (i Item) GradeClass() GradeClass {
	if i.IsSlabbed() {
		return GradeClassSlabbed
	}
	if strings.TrimSpace(i.CommunityURL) != "" {
		return GradeClassRawCommunity
	}
	return GradeClassRawNoCommunity
}

// IsSold reports whether the item has left inventory.
func (i Item) IsSold() bool {
	return i.Status == ItemStatusSold || i.SoldPrice != nil
}

// Key is the natural identity used when re-importing an inventory sheet: the
// catalog id when present, otherwise title, issue, certificate and sheet row.
func (i Item) Key() string {
	if id := strings.TrimSpace(i.ExternalID); id != "" {
		return "ext:" + id
	}
	return fmt.Sprintf("row:%d:%s:%s:%s", i.SourceRow,
		strings.ToLower(strings.TrimSpace(i.Title)),
		strings.ToLower(strings.TrimSpace(i.Issue)),
		strings.TrimSpace(i.CertID))
}

var leadingDigits = regexp.MustCompile(`^\s*(\d+)`)

// IssueSortKey returns the leading integer of an issue identifier ("20A" -> 20).
func IssueSortKey(issue string) *int {
	m := leadingDigits.FindStringSubmatch(issue)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
