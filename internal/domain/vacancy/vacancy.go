// internal/domain/vacancy/vacancy.go
package vacancy

import "context"

// Entry is one open housemanship slot group at a named center.
// CenterName is unique within a Snapshot.
type Entry struct {
	CenterName string
	SlotsLeft  int
}

// Snapshot is the full list of open vacancies as returned by one fetch.
// It is never mutated after capture; a new fetch replaces it wholesale.
type Snapshot []Entry

// Names returns the center names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for _, e := range s {
		names = append(names, e.CenterName)
	}
	return names
}

// Source fetches the current vacancy list from the portal.
type Source interface {
	FetchVacancies(ctx context.Context, token string) (Snapshot, error)
}
