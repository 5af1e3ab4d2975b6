package recipients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PGDirectory resolves recipients from the clients and jobseekers tables.
type PGDirectory struct {
	DB *sql.DB
}

func (d *PGDirectory) Resolve(ctx context.Context, t Type, id string) (Recipient, error) {
	var query string
	switch t {
	case TypeClient:
		query = `
SELECT COALESCE(NULLIF(contact_name, ''), company_name), COALESCE(contact_email, '')
FROM clients
WHERE id = $1
LIMIT 1`
	case TypeJobseeker:
		query = `
SELECT TRIM(first_name || ' ' || last_name), COALESCE(email, '')
FROM jobseekers
WHERE id = $1
LIMIT 1`
	default:
		return Recipient{}, ErrNotFound
	}

	r := Recipient{Type: t, ID: id}
	if err := d.DB.QueryRowContext(ctx, query, id).Scan(&r.DisplayName, &r.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, fmt.Errorf("resolve %s %s: %w", t, id, err)
	}
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Email = strings.TrimSpace(r.Email)
	return r, nil
}
