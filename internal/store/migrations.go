package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create credentials",
		SQL: `
			CREATE TABLE credentials (
				identity     TEXT PRIMARY KEY,
				access_token TEXT NOT NULL,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
