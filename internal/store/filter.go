package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/zonasi/internal/facility"
)

// filterDialect describes how a backend compares filter values.
type filterDialect struct {
	// placeholder returns the bind marker for the n-th argument (1-based).
	placeholder func(n int) string
	column      func(name string) string
	arg         func(v string) string
}

// sqliteFilter folds both sides with the fold_key function registered in
// sqlite.go, so matches agree with facility.Filter for any script.
var sqliteFilter = filterDialect{
	placeholder: func(int) string { return "?" },
	column:      func(name string) string { return "fold_key(" + name + ")" },
	arg:         facility.FoldKey,
}

// postgresFilter relies on UPPER, which follows the database's ctype locale.
var postgresFilter = filterDialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	column:      func(name string) string { return "UPPER(TRIM(" + name + "))" },
	arg:         func(v string) string { return strings.ToUpper(strings.TrimSpace(v)) },
}

// filterWhere renders facility.Filter as a SQL condition in dialect d.
func filterWhere(f facility.Filter, d filterDialect) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		marks := make([]string, len(values))
		for i, v := range values {
			args = append(args, d.arg(v))
			marks[i] = d.placeholder(len(args))
		}
		conds = append(conds, d.column(column)+" IN ("+strings.Join(marks, ", ")+")")
	}
	add("level", f.Levels)
	add("accreditation", f.Accreditations)
	add("regency", f.Regencies)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// checkUniqueIDs rejects a batch that would violate the facilities primary key.
func checkUniqueIDs(facilities []facility.Facility) error {
	seen := make(map[string]struct{}, len(facilities))
	for i, f := range facilities {
		if f.ID == "" {
			return &DuplicateIDError{Index: i}
		}
		if _, ok := seen[f.ID]; ok {
			return &DuplicateIDError{Index: i, ID: f.ID}
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// DuplicateIDError reports a facility batch with an empty or repeated ID.
type DuplicateIDError struct {
	Index int
	ID    string
}

func (e *DuplicateIDError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store: facility at index %d has no id", e.Index)
	}
	return fmt.Sprintf("store: duplicate facility id %q at index %d", e.ID, e.Index)
}
