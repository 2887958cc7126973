package environment

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

const defaultSchema = "public"

// schemaParams are the query parameters that carry a schema qualifier in a connection URL.
var schemaParams = []string{"schema", "search_path"}

// Descriptor identifies one database connection: the URL handed to the driver and an
// optional schema every query must be scoped to.
type Descriptor struct {
	URL    string
	Schema string
}

// Identity is the normalized physical target of a descriptor.
type Identity struct {
	Host     string
	Port     string
	Database string
	Schema   string
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%s/%s#%s", i.Host, i.Port, i.Database, i.Schema)
}

// ParseDescriptor extracts the schema qualifier from a postgres connection URL.
// The returned URL no longer carries the qualifier.
func ParseDescriptor(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("empty connection string")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Descriptor{}, fmt.Errorf("invalid scheme: expected postgres or postgresql, got %q", u.Scheme)
	}

	q := u.Query()
	var schema string
	for _, param := range schemaParams {
		if v := strings.TrimSpace(q.Get(param)); v != "" && schema == "" {
			schema = v
		}
		q.Del(param)
	}
	if schema != "" && !ValidIdentifier(schema) {
		return Descriptor{}, fmt.Errorf("invalid schema qualifier %q", schema)
	}
	u.RawQuery = q.Encode()

	return Descriptor{URL: u.String(), Schema: schema}, nil
}

// Identity normalizes the descriptor to host, port, database and schema.
func (d Descriptor) Identity() (Identity, error) {
	// pq.ParseURL validates the URL shape the same way the driver layer would.
	if _, err := pq.ParseURL(d.URL); err != nil {
		return Identity{}, fmt.Errorf("invalid connection string: %w", err)
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid connection string: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	switch host {
	case "", "localhost", "::1":
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); ip != nil {
		host = ip.String()
	}

	port := u.Port()
	if port == "" {
		port = "5432"
	}

	schema := strings.ToLower(d.Schema)
	if schema == "" {
		schema = defaultSchema
	}

	return Identity{
		Host:     host,
		Port:     port,
		Database: strings.TrimPrefix(u.Path, "/"),
		Schema:   schema,
	}, nil
}

// Scoped reports whether queries must run inside a dedicated schema.
func (d Descriptor) Scoped() bool {
	return d.Schema != ""
}

// Masked returns the URL with the password hidden, for logging.
func (d Descriptor) Masked() string {
	return MaskConnectionString(d.URL)
}

// containsMarker reports whether the host, database or schema of the descriptor
// contains marker, ignoring case. Credentials are not inspected.
func (d Descriptor) containsMarker(marker string) bool {
	marker = strings.ToLower(marker)
	u, err := url.Parse(d.URL)
	if err != nil {
		return strings.Contains(strings.ToLower(d.URL), marker)
	}
	for _, part := range []string{u.Hostname(), strings.TrimPrefix(u.Path, "/"), d.Schema} {
		if strings.Contains(strings.ToLower(part), marker) {
			return true
		}
	}
	return false
}

// MaskConnectionString returns a connection string with the password masked
func MaskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return connStr
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return strings.Replace(u.String(), "xxxxx", "****", 1)
}

// ValidIdentifier reports whether name is a plain lower-case SQL identifier.
// Table, column and schema names are validated against it before they reach a query.
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
