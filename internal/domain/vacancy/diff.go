package vacancy

// DiffResult holds the centers that appeared or disappeared between two snapshots.
type DiffResult struct {
	Added   []Entry
	Removed []Entry
}

// Empty reports whether nothing was added or removed.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Diff compares two snapshots by CenterName only. A center present in both
// snapshots is never reported, even if its SlotsLeft changed.
// Added keeps the order of current, Removed keeps the order of previous.
func Diff(previous, current Snapshot) DiffResult {
	prevNames := make(map[string]struct{}, len(previous))
	for _, e := range previous {
		prevNames[e.CenterName] = struct{}{}
	}
	currNames := make(map[string]struct{}, len(current))
	for _, e := range current {
		currNames[e.CenterName] = struct{}{}
	}

	result := DiffResult{Added: []Entry{}, Removed: []Entry{}}
	for _, e := range current {
		if _, ok := prevNames[e.CenterName]; !ok {
			result.Added = append(result.Added, e)
		}
	}
	for _, e := range previous {
		if _, ok := currNames[e.CenterName]; !ok {
			result.Removed = append(result.Removed, e)
		}
	}
	return result
}
