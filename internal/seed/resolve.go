package seed

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Resolver finds an existing row by trying an ordered list of candidate
// unique columns. Candidates missing from the live schema are skipped, so
// a document written against a slightly different schema still resolves
// through an alternate unique field instead of failing.
type Resolver struct {
	Entity     string
	Candidates []string
}

// ErrUnresolved is wrapped by Find when no candidate matches.
var ErrUnresolved = errors.New("no row matches any candidate key")

// Find loads the first row where any candidate column equals key, in
// candidate order, into dest. dest must be a pointer to a model struct.
func (r Resolver) Find(tx *gorm.DB, dest interface{}, key string) error {
	if key == "" {
		return fmt.Errorf("%s: empty natural key: %w", r.Entity, ErrUnresolved)
	}

	tried := 0
	for _, col := range r.Candidates {
		if !tx.Migrator().HasColumn(dest, col) {
			continue
		}
		tried++
		err := tx.Where(map[string]interface{}{col: key}).First(dest).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s: lookup by %s failed: %w", r.Entity, col, err)
		}
	}
	if tried == 0 {
		return fmt.Errorf("%s: none of the candidate key fields %v exist on the schema", r.Entity, r.Candidates)
	}
	return fmt.Errorf("%s %q: %w", r.Entity, key, ErrUnresolved)
}
