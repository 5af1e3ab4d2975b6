package consent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"consent-backend/internal/recipients"
)

// DocumentPredicate is one conjunctive condition over documents.
type DocumentPredicate interface {
	MatchDocument(Document) bool
	documentSQL(w *whereClause)
}

// RecordPredicate is one conjunctive condition over records.
type RecordPredicate interface {
	MatchRecord(Record) bool
	recordSQL(w *whereClause)
}

// SearchTerm matches file name or reference on documents and signer name on records.
type SearchTerm struct {
	Text string
}

func (p SearchTerm) MatchDocument(d Document) bool {
	return containsFold(d.FileName, p.Text) || containsFold(d.FileReference, p.Text)
}

func (p SearchTerm) documentSQL(w *whereClause) {
	pattern := likePattern(p.Text)
	w.add("(file_name ILIKE ? OR file_reference ILIKE ?)", pattern, pattern)
}

func (p SearchTerm) MatchRecord(r Record) bool {
	return containsFold(r.ConsentedName, p.Text)
}

func (p SearchTerm) recordSQL(w *whereClause) {
	w.add("consented_name ILIKE ?", likePattern(p.Text))
}

// ActiveIs matches documents by their active flag.
type ActiveIs struct {
	Active bool
}

func (p ActiveIs) MatchDocument(d Document) bool { return d.IsActive == p.Active }

func (p ActiveIs) documentSQL(w *whereClause) { w.add("is_active = ?", p.Active) }

// StatusIs matches records in one status.
type StatusIs struct {
	Status Status
}

func (p StatusIs) MatchRecord(r Record) bool { return r.Status == p.Status }

func (p StatusIs) recordSQL(w *whereClause) { w.add("status = ?", string(p.Status)) }

// RecipientTypeIs matches records addressed to one recipient type.
type RecipientTypeIs struct {
	Type recipients.Type
}

func (p RecipientTypeIs) MatchRecord(r Record) bool { return r.RecipientType == p.Type }

func (p RecipientTypeIs) recordSQL(w *whereClause) { w.add("recipient_type = ?", string(p.Type)) }

// OnDay matches one UTC calendar day, inclusive start and exclusive next day.
// Documents compare created_at, records compare sent_at.
type OnDay struct {
	Day time.Time
}

// ParseDay parses YYYY-MM-DD.
func ParseDay(raw string) (OnDay, error) {
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return OnDay{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return OnDay{Day: day}, nil
}

func (p OnDay) bounds() (time.Time, time.Time) {
	start := time.Date(p.Day.Year(), p.Day.Month(), p.Day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (p OnDay) contains(t time.Time) bool {
	start, end := p.bounds()
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

func (p OnDay) MatchDocument(d Document) bool { return p.contains(d.CreatedAt) }

func (p OnDay) documentSQL(w *whereClause) {
	start, end := p.bounds()
	w.add("created_at >= ? AND created_at < ?", start, end)
}

func (p OnDay) MatchRecord(r Record) bool {
	return r.SentAt != nil && p.contains(*r.SentAt)
}

func (p OnDay) recordSQL(w *whereClause) {
	start, end := p.bounds()
	w.add("sent_at >= ? AND sent_at < ?", start, end)
}

func matchDocument(d Document, preds []DocumentPredicate) bool {
	for _, p := range preds {
		if !p.MatchDocument(d) {
			return false
		}
	}
	return true
}

func matchRecord(r Record, preds []RecordPredicate) bool {
	for _, p := range preds {
		if !p.MatchRecord(r) {
			return false
		}
	}
	return true
}

// whereClause accumulates AND-ed conditions, rewriting ? into numbered placeholders.
type whereClause struct {
	parts []string
	args  []any
}

func (w *whereClause) add(expr string, args ...any) {
	var b strings.Builder
	next := 0
	for _, ch := range expr {
		if ch == '?' && next < len(args) {
			w.args = append(w.args, args[next])
			next++
			b.WriteString("$" + strconv.Itoa(len(w.args)))
			continue
		}
		b.WriteRune(ch)
	}
	w.parts = append(w.parts, b.String())
}

func (w *whereClause) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}

func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(text)) + "%"
}

// PageRequest is a 1-based page of at most Limit items.
type PageRequest struct {
	Page  int
	Limit int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePage validates raw page and limit query values. Empty values take defaults
// and limits above MaxPageSize are clamped.
func ParsePage(rawPage, rawLimit string) (PageRequest, error) {
	p := PageRequest{Page: 1, Limit: DefaultPageSize}
	if v := strings.TrimSpace(rawPage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return PageRequest{}, fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
		}
		p.Page = n
	}
	if v := strings.TrimSpace(rawLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return PageRequest{}, fmt.Errorf("%w: limit must be >= 1", ErrInvalidInput)
		}
		p.Limit = n
	}
	return p.normalized(), nil
}

func (p PageRequest) normalized() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of items preceding the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

func newPage[T any](items []T, total int, req PageRequest) Page[T] {
	pages := 0
	if total > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, Limit: req.Limit, TotalPages: pages}
}

// DocumentQuery selects documents for the admin listing.
type DocumentQuery struct {
	Filters       []DocumentPredicate
	RecipientType recipients.Type
	Sort          Sort
	Page          PageRequest
}

// RecordQuery selects records of one document for the admin listing.
type RecordQuery struct {
	Filters []RecordPredicate
	Sort    Sort
	Page    PageRequest
}
