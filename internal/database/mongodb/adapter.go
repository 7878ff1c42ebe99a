package mongodb

import (
	"context"

	"github.com/google/uuid"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
	"github.com/redbco/redb-connector/pkg/logger"
)

// Version is reported by the adapter's logger.
var Version = "dev"

var defaultLogger = logger.New("connector-mongodb", Version)

// Adapter implements the connector.DatabaseAdapter interface for MongoDB.
type Adapter struct {
	routers Routers
	log     *logger.Logger
}

// NewAdapter creates a new MongoDB adapter using the driver-backed routers.
func NewAdapter() connector.DatabaseAdapter {
	return NewAdapterWith(defaultLogger, DefaultRouters())
}

// NewAdapterWith creates an adapter with its own logger and routers.
func NewAdapterWith(log *logger.Logger, routers Routers) *Adapter {
	if log == nil {
		log = defaultLogger
	}
	return &Adapter{routers: routers, log: log}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MongoDB
}

// Capabilities returns the capabilities metadata for MongoDB.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.MongoDB)
}

// Connect establishes a connection to a MongoDB database and opens the
// session the connection will own.
func (a *Adapter) Connect(ctx context.Context, config connector.ConnectionConfig) (connector.Connection, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	client, err := connect(ctx, config)
	if err != nil {
		return nil, connector.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port, err)
	}

	sess, err := session.Start(client)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, connector.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port, err)
	}

	id := config.DatabaseID
	if id == "" {
		id = uuid.NewString()
	}

	conn := newConnection(id, client, client.Database(config.DatabaseName), sess, a.routers, a.log, config, a)
	a.log.WithFields(map[string]string{
		"connection": id,
		"host":       config.Host,
		"database":   config.DatabaseName,
	}).Info("connected")
	return conn, nil
}
