package mongodb

import (
	"github.com/redbco/redb-connector/pkg/connector"
)

func init() {
	// Register MongoDB adapter with the global registry
	connector.Register(NewAdapter())
}
