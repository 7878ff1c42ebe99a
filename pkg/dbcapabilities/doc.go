// Package dbcapabilities provides a shared registry describing the capabilities of
// databases the engine has connectors for. Connectors import this package to make
// decisions based on uniform metadata (transactions, isolation levels, native upsert).
//
// Minimal usage example:
//
//	import "github.com/redbco/redb-connector/pkg/dbcapabilities"
//
//	func canRequestIsolation(db string) bool {
//	    return dbcapabilities.SupportsIsolationLevels(dbcapabilities.DatabaseID(db))
//	}
//
// Connection strings can be turned into connection details with ParseConnectionString;
// the url scheme selects the capability entry (aliases such as "mongodb+srv" included).
//
// The package exposes constants for IDs (e.g., dbcapabilities.MongoDB) and a
// registry `All` for advanced consumers.
package dbcapabilities
