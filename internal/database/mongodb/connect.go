package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

const defaultConnectTimeout = 10 * time.Second

func validateConfig(config connector.ConnectionConfig) error {
	if config.Host == "" && len(config.Hosts) == 0 {
		return connector.NewConfigurationError(dbcapabilities.MongoDB, "host", "host is required")
	}
	if config.DatabaseName == "" {
		return connector.NewConfigurationError(dbcapabilities.MongoDB, "databaseName", "database name is required")
	}
	if config.SRV && len(config.Hosts) > 0 {
		return connector.NewConfigurationError(dbcapabilities.MongoDB, "hosts", "srv connections take a single host")
	}
	if config.Port < 0 || config.Port > 65535 {
		return connector.NewConfigurationError(dbcapabilities.MongoDB, "port", fmt.Sprintf("invalid port %d", config.Port))
	}
	return nil
}

// connect creates a client and verifies the primary is reachable.
func connect(ctx context.Context, config connector.ConnectionConfig) (*mongo.Client, error) {
	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientOptions := options.Client().
		ApplyURI(buildConnectionURI(config)).
		SetConnectTimeout(timeout)

	// In v2, Connect handles both creation and connection
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return client, nil
}

// buildConnectionURI renders the configuration as a mongodb:// uri.
func buildConnectionURI(config connector.ConnectionConfig) string {
	var connString strings.Builder
	if config.SRV {
		connString.WriteString("mongodb+srv://")
	} else {
		connString.WriteString("mongodb://")
	}

	if config.Username != "" {
		connString.WriteString(url.UserPassword(config.Username, config.Password).String())
		connString.WriteString("@")
	}

	switch {
	case config.SRV:
		connString.WriteString(config.Host)
	case len(config.Hosts) > 0:
		connString.WriteString(strings.Join(config.Hosts, ","))
	default:
		port := config.Port
		if port == 0 {
			port = dbcapabilities.MustGet(dbcapabilities.MongoDB).DefaultPort
		}
		fmt.Fprintf(&connString, "%s:%d", config.Host, port)
	}
	connString.WriteString("/" + url.PathEscape(config.DatabaseName))

	var params []string
	authSource := config.AuthSource
	if authSource == "" && config.Username != "" {
		authSource = "admin"
	}
	if authSource != "" {
		params = append(params, "authSource="+url.QueryEscape(authSource))
	}
	if config.ReplicaSet != "" {
		params = append(params, "replicaSet="+url.QueryEscape(config.ReplicaSet))
	}

	// Add SSL configuration
	if config.SSL {
		sslMode := getSslMode(config)
		params = append(params, fmt.Sprintf("tls=%t", sslMode != "disable"))

		if cert := connector.GetString(config.SSLCert); cert != "" && connector.GetString(config.SSLKey) != "" {
			params = append(params, "tlsCertificateKeyFile="+url.QueryEscape(cert))
		}
		if rootCert := connector.GetString(config.SSLRootCert); rootCert != "" {
			params = append(params, "tlsCAFile="+url.QueryEscape(rootCert))
		}
		if sslMode == "allow" || sslMode == "prefer" {
			params = append(params, "tlsInsecure=true")
		}
	} else if !config.SRV || config.SSLMode == "disable" {
		// mongodb+srv turns tls on unless it is disabled explicitly.
		params = append(params, "tls=false")
	}

	if len(params) > 0 {
		connString.WriteString("?")
		connString.WriteString(strings.Join(params, "&"))
	}
	return connString.String()
}

func getSslMode(config connector.ConnectionConfig) string {
	if config.SSLMode != "" {
		return config.SSLMode
	}
	if config.SSLRejectUnauthorized != nil && !*config.SSLRejectUnauthorized {
		return "prefer"
	}
	return "require"
}
