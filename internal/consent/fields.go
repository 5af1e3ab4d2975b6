package consent

import (
	"fmt"
	"sort"
	"strings"
)

// FieldMap translates between external (JSON) field names and storage columns.
type FieldMap struct {
	toColumn   map[string]string
	toExternal map[string]string
}

func newFieldMap(pairs map[string]string) FieldMap {
	m := FieldMap{
		toColumn:   make(map[string]string, len(pairs)),
		toExternal: make(map[string]string, len(pairs)),
	}
	for ext, col := range pairs {
		m.toColumn[ext] = col
		m.toExternal[col] = ext
	}
	return m
}

// Column returns the storage column for an external field name.
func (m FieldMap) Column(external string) (string, bool) {
	col, ok := m.toColumn[external]
	return col, ok
}

// External returns the external field name for a storage column.
func (m FieldMap) External(column string) (string, bool) {
	ext, ok := m.toExternal[column]
	return ext, ok
}

// Names lists the external field names in sorted order.
func (m FieldMap) Names() []string {
	names := make([]string, 0, len(m.toColumn))
	for ext := range m.toColumn {
		names = append(names, ext)
	}
	sort.Strings(names)
	return names
}

var (
	DocumentFields = newFieldMap(map[string]string{
		"id":            "id",
		"fileName":      "file_name",
		"fileReference": "file_reference",
		"uploadedBy":    "uploaded_by",
		"version":       "version",
		"isActive":      "is_active",
		"createdAt":     "created_at",
	})
	RecordFields = newFieldMap(map[string]string{
		"id":            "id",
		"documentId":    "document_id",
		"recipientType": "recipient_type",
		"recipientId":   "recipient_id",
		"status":        "status",
		"sentAt":        "sent_at",
		"completedAt":   "completed_at",
		"consentedName": "consented_name",
		"ipAddress":     "ip_address",
		"createdAt":     "created_at",
	})
)

// Sort orders a listing by one storage column.
type Sort struct {
	Column string
	Desc   bool
}

var (
	defaultDocumentSort = Sort{Column: "created_at", Desc: true}
	defaultRecordSort   = Sort{Column: "created_at"}
)

// ParseSort reads "field" or "-field" using external names from fields.
// An empty value yields def.
func ParseSort(raw string, fields FieldMap, def Sort) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	s := Sort{}
	if strings.HasPrefix(raw, "-") {
		s.Desc = true
		raw = raw[1:]
	}
	col, ok := fields.Column(raw)
	if !ok {
		return Sort{}, fmt.Errorf("%w: unknown sort field %q", ErrInvalidInput, raw)
	}
	s.Column = col
	return s, nil
}

// External renders the sort using external field names.
func (s Sort) External(fields FieldMap) string {
	name, ok := fields.External(s.Column)
	if !ok {
		return ""
	}
	if s.Desc {
		return "-" + name
	}
	return name
}
