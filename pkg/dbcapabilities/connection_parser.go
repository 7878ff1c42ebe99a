package dbcapabilities

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ConnectionDetails holds parsed connection information
type ConnectionDetails struct {
	DatabaseType   string `json:"database_type"`
	DatabaseVendor string `json:"database_vendor"`

	// Host and Port are the first seed; Hosts lists every seed as host:port.
	Host  string   `json:"host"`
	Port  int32    `json:"port"`
	Hosts []string `json:"hosts,omitempty"`

	// SRV is set for mongodb+srv urls; the single host is a DNS seed name
	// and carries no port.
	SRV bool `json:"srv,omitempty"`

	Username     string            `json:"username"`
	Password     string            `json:"password"`
	DatabaseName string            `json:"database_name"`
	SSL          bool              `json:"ssl"`
	SSLMode      string            `json:"ssl_mode"`
	Parameters   map[string]string `json:"parameters"`
	IsSystemDB   bool              `json:"is_system_db"`
}

// ParseConnectionString parses a url such as
// mongodb://user:pass@h1:27017,h2:27018/app?replicaSet=rs0&tls=true.
// Document store urls may list several seed hosts, which net/url cannot
// parse, so the authority is split by hand.
func ParseConnectionString(connectionString string) (*ConnectionDetails, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("connection string cannot be empty")
	}

	scheme, rest, ok := strings.Cut(connectionString, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("connection string must include a scheme (e.g., mongodb://)")
	}
	scheme = strings.ToLower(scheme)

	dbType, ok := ParseID(scheme)
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", scheme)
	}
	capability := MustGet(dbType)

	details := &ConnectionDetails{
		DatabaseType:   string(dbType),
		DatabaseVendor: "custom",
		SRV:            strings.HasSuffix(scheme, "+srv"),
		Parameters:     make(map[string]string),
	}

	rest, rawQuery, _ := strings.Cut(rest, "?")
	authority, path, _ := strings.Cut(rest, "/")

	if at := strings.LastIndex(authority, "@"); at >= 0 {
		if err := details.parseUserInfo(authority[:at]); err != nil {
			return nil, err
		}
		authority = authority[at+1:]
	}

	if err := details.parseHosts(authority, capability.DefaultPort); err != nil {
		return nil, err
	}

	if path != "" {
		name, err := url.PathUnescape(path)
		if err != nil {
			return nil, fmt.Errorf("invalid database name: %v", err)
		}
		details.DatabaseName = name
	}
	if details.DatabaseName == "" && capability.HasSystemDatabase && len(capability.SystemDatabases) > 0 {
		details.DatabaseName = capability.SystemDatabases[0]
	}
	details.IsSystemDB = isSystemDatabase(details.DatabaseName, capability.SystemDatabases)

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid connection parameters: %v", err)
	}
	for key, values := range query {
		if len(values) > 0 {
			details.Parameters[key] = values[0]
		}
	}
	details.parseTLS(query)
	return details, nil
}

func (d *ConnectionDetails) parseUserInfo(info string) error {
	user, pass, hasPass := strings.Cut(info, ":")
	var err error
	if d.Username, err = url.PathUnescape(user); err != nil {
		return fmt.Errorf("invalid username: %v", err)
	}
	if hasPass {
		if d.Password, err = url.PathUnescape(pass); err != nil {
			return fmt.Errorf("invalid password: %v", err)
		}
	}
	return nil
}

func (d *ConnectionDetails) parseHosts(authority string, defaultPort int) error {
	if authority == "" {
		return fmt.Errorf("host is required in connection string")
	}

	seeds := strings.Split(authority, ",")
	if d.SRV && len(seeds) > 1 {
		return fmt.Errorf("srv connection strings take exactly one host")
	}

	for i, seed := range seeds {
		host, port := strings.Trim(seed, "[]"), defaultPort
		if h, p, err := net.SplitHostPort(seed); err == nil {
			if d.SRV {
				return fmt.Errorf("srv connection strings cannot specify a port")
			}
			n, err := strconv.Atoi(p)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("invalid port number: %s", p)
			}
			host, port = h, n
		}
		if host == "" {
			return fmt.Errorf("host is required in connection string")
		}

		if i == 0 {
			d.Host = host
			if !d.SRV {
				d.Port = int32(port)
			}
		}
		if !d.SRV {
			d.Hosts = append(d.Hosts, net.JoinHostPort(host, strconv.Itoa(port)))
		}
	}
	return nil
}

// parseTLS reads tls=, the legacy ssl= and sslmode=. tlsInsecure and
// tlsAllowInvalidCertificates downgrade verification to "prefer".
func (d *ConnectionDetails) parseTLS(query url.Values) {
	if mode := query.Get("sslmode"); mode != "" {
		d.SSLMode = mode
		d.SSL = mode != "disable"
		return
	}

	enabled := d.SRV
	for _, key := range []string{"tls", "ssl"} {
		if v := query.Get(key); v != "" {
			enabled = v == "true"
			break
		}
	}

	d.SSL = enabled
	switch {
	case !enabled:
		d.SSLMode = "disable"
	case query.Get("tlsInsecure") == "true" || query.Get("tlsAllowInvalidCertificates") == "true":
		d.SSLMode = "prefer"
	default:
		d.SSLMode = "require"
	}
}

func isSystemDatabase(name string, systemDatabases []string) bool {
	for _, sysDB := range systemDatabases {
		if strings.EqualFold(name, sysDB) {
			return true
		}
	}
	return false
}

// GetSystemDatabaseName returns the system database name for instance connections
func GetSystemDatabaseName(databaseType string) (string, error) {
	capability, ok := GetByName(databaseType)
	if !ok {
		return "", fmt.Errorf("unsupported database type: %s", databaseType)
	}
	if !capability.HasSystemDatabase || len(capability.SystemDatabases) == 0 {
		return "", fmt.Errorf("database type %s does not have a system database", databaseType)
	}
	return capability.SystemDatabases[0], nil
}

// ValidateConnectionString validates a connection string without using the result
func ValidateConnectionString(connectionString string) error {
	_, err := ParseConnectionString(connectionString)
	return err
}
