package consent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"consent-backend/internal/recipients"
)

func TestWhereClauseNumbersPlaceholders(t *testing.T) {
	var w whereClause
	SearchTerm{Text: " 50%_off "}.documentSQL(&w)
	ActiveIs{Active: true}.documentSQL(&w)

	require.Equal(t, " WHERE (file_name ILIKE $1 OR file_reference ILIKE $2) AND is_active = $3", w.String())
	require.Equal(t, []any{`%50\%\_off%`, `%50\%\_off%`, true}, w.args)

	var empty whereClause
	require.Equal(t, "", empty.String())
}

func TestRecordPredicatesSQL(t *testing.T) {
	var w whereClause
	w.add("document_id = ?", "doc-1")
	StatusIs{Status: StatusCompleted}.recordSQL(&w)
	RecipientTypeIs{Type: recipients.TypeJobseeker}.recordSQL(&w)
	day, err := ParseDay("2024-03-04")
	require.NoError(t, err)
	day.recordSQL(&w)

	require.Equal(t, " WHERE document_id = $1 AND status = $2 AND recipient_type = $3 AND sent_at >= $4 AND sent_at < $5", w.String())
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), w.args[4])
}

func TestOnDayBounds(t *testing.T) {
	day, err := ParseDay("2024-03-04")
	require.NoError(t, err)

	at := func(h, m int) *time.Time {
		v := time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
		return &v
	}
	next := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	require.True(t, day.MatchRecord(Record{SentAt: at(0, 0)}))
	require.True(t, day.MatchRecord(Record{SentAt: at(23, 59)}))
	require.False(t, day.MatchRecord(Record{SentAt: &next}))
	require.False(t, day.MatchRecord(Record{}))
	require.True(t, day.MatchDocument(Document{CreatedAt: *at(12, 0)}))

	_, err = ParseDay("04/03/2024")
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSearchTermMatchesCaseInsensitively(t *testing.T) {
	doc := Document{FileName: "Employee Handbook", FileReference: "ns/abc_handbook.pdf"}
	require.True(t, SearchTerm{Text: "handBOOK"}.MatchDocument(doc))
	require.True(t, SearchTerm{Text: "abc_"}.MatchDocument(doc))
	require.False(t, SearchTerm{Text: "policy"}.MatchDocument(doc))
	require.True(t, SearchTerm{Text: "doe"}.MatchRecord(Record{ConsentedName: "Jane Doe"}))
	require.False(t, SearchTerm{Text: "doe"}.MatchRecord(Record{}))
}

func TestParsePage(t *testing.T) {
	p, err := ParsePage("", "")
	require.NoError(t, err)
	require.Equal(t, PageRequest{Page: 1, Limit: DefaultPageSize}, p)

	p, err = ParsePage("3", "500")
	require.NoError(t, err)
	require.Equal(t, PageRequest{Page: 3, Limit: MaxPageSize}, p)
	require.Equal(t, 200, p.Offset())

	for _, bad := range [][2]string{{"0", ""}, {"", "0"}, {"x", ""}, {"", "-1"}} {
		_, err := ParsePage(bad[0], bad[1])
		require.ErrorIs(t, err, ErrInvalidInput, "page=%q limit=%q", bad[0], bad[1])
	}
}

func TestNewPageTotals(t *testing.T) {
	p := newPage([]int{1, 2}, 5, PageRequest{Page: 1, Limit: 2})
	require.Equal(t, 3, p.TotalPages)

	empty := newPage[int](nil, 0, PageRequest{Page: 1, Limit: 2})
	require.Equal(t, 0, empty.TotalPages)
	require.NotNil(t, empty.Items)
}

func TestParseSortUsesExternalNames(t *testing.T) {
	s, err := ParseSort("-sentAt", RecordFields, defaultRecordSort)
	require.NoError(t, err)
	require.Equal(t, Sort{Column: "sent_at", Desc: true}, s)
	require.Equal(t, "-sentAt", s.External(RecordFields))

	s, err = ParseSort("", DocumentFields, defaultDocumentSort)
	require.NoError(t, err)
	require.Equal(t, "-createdAt", s.External(DocumentFields))

	_, err = ParseSort("token", RecordFields, defaultRecordSort)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseSort("file_name", DocumentFields, defaultDocumentSort)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFieldMapIsBidirectional(t *testing.T) {
	for _, name := range RecordFields.Names() {
		col, ok := RecordFields.Column(name)
		require.True(t, ok)
		back, ok := RecordFields.External(col)
		require.True(t, ok)
		require.Equal(t, name, back)
	}
	_, ok := RecordFields.Column("token")
	require.False(t, ok)
}

func TestParseStatusNormalizes(t *testing.T) {
	got, ok := ParseStatus(" Completed ")
	require.True(t, ok)
	require.Equal(t, StatusCompleted, got)

	got, ok = ParseStatus("PENDING")
	require.True(t, ok)
	require.Equal(t, StatusPending, got)

	_, ok = ParseStatus("expired")
	require.False(t, ok)
	_, ok = ParseStatus("")
	require.False(t, ok)
}
