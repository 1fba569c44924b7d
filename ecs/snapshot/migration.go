package snapshot

import (
	"sort"

	"github.com/zecs-dev/zecs/ecs"
)

// PostLoadMigration reconciles data after a Load: typically converting an
// entity's legacy-version component into the shape its latest Formatter
// produces. Migrations run after every chunk has been loaded into storage,
// sorted by Order ascending and then by registration order, and may use the
// public component-command API against the world they're given.
type PostLoadMigration interface {
	Order() int
	Apply(w *ecs.World) error
}

type migrationEntry struct {
	m   PostLoadMigration
	seq int
}

var (
	migrations   []migrationEntry
	migrationSeq int
)

// RegisterMigration records m to run after every future Load call. Order
// follows registration order for ties in m.Order().
func RegisterMigration(m PostLoadMigration) {
	migrations = append(migrations, migrationEntry{m: m, seq: migrationSeq})
	migrationSeq++
}

func sortedMigrations() []PostLoadMigration {
	entries := make([]migrationEntry, len(migrations))
	copy(entries, migrations)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].m.Order() != entries[j].m.Order() {
			return entries[i].m.Order() < entries[j].m.Order()
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]PostLoadMigration, len(entries))
	for i, e := range entries {
		out[i] = e.m
	}
	return out
}
