package dbcapabilities

import "strings"

// DatabaseID is the canonical identifier for a database technology the engine has a connector for.
// Use these constants to look up capability information.
type DatabaseID string

const (
	MongoDB DatabaseID = "mongodb"
)

// Capability describes what a database supports in a way that connectors can consume uniformly.
type Capability struct {
	// Human-friendly vendor or product name, e.g., "MongoDB".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see DatabaseID constants).
	ID DatabaseID `json:"id"`

	// Port used when a connection string omits one.
	DefaultPort int `json:"defaultPort"`

	// Whether the database exposes a built-in/system database and its typical names.
	HasSystemDatabase bool     `json:"hasSystemDatabase"`
	SystemDatabases   []string `json:"systemDatabases,omitempty"`

	// Whether a session can run multi-statement transactions at all.
	SupportsTransactions bool `json:"supportsTransactions"`

	// Whether a transaction can be started with an explicit isolation level.
	SupportsIsolationLevels bool `json:"supportsIsolationLevels"`

	// Whether the backend has a single-statement upsert the engine can delegate to.
	SupportsNativeUpsert bool `json:"supportsNativeUpsert"`

	// Url schemes and labels that map to this database.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database ID.
var All = map[DatabaseID]Capability{
	MongoDB: {
		Name:                 "MongoDB",
		ID:                   MongoDB,
		DefaultPort:          27017,
		HasSystemDatabase:    true,
		SystemDatabases:      []string{"admin"},
		SupportsTransactions: true,
		Aliases:              []string{"mongo", "mongodb+srv"},
	},
}

// nameToID is a normalized lookup index from any known name/alias to the canonical DatabaseID.
var nameToID = func() map[string]DatabaseID {
	index := make(map[string]DatabaseID)
	for id, c := range All {
		index[strings.ToLower(string(id))] = id
		index[strings.ToLower(c.Name)] = id
		for _, a := range c.Aliases {
			index[strings.ToLower(a)] = id
		}
	}
	return index
}()

// ParseID resolves a canonical id, alias or product name to a DatabaseID.
func ParseID(name string) (DatabaseID, bool) {
	id, ok := nameToID[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// GetByName returns the Capability by looking up using a free-form name (id or alias).
func GetByName(name string) (Capability, bool) {
	if id, ok := ParseID(name); ok {
		return Get(id)
	}
	return Capability{}, false
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id DatabaseID) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id DatabaseID) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return c
}

// SupportsIsolationLevels reports whether a transaction may request an isolation level.
func SupportsIsolationLevels(id DatabaseID) bool {
	c, ok := Get(id)
	return ok && c.SupportsIsolationLevels
}
