// Package cloudsql resolves the PostgreSQL DSN for the tender store, either
// from DATABASE_URL or from Cloud SQL unix-socket settings on Cloud Run.
package cloudsql

import (
	"fmt"
	"net/url"
	"strings"
)

// Lookup reads one environment variable. os.Getenv satisfies it.
type Lookup func(key string) string

// DatabaseURL returns the DSN to connect with. DATABASE_URL wins; otherwise
// INSTANCE_CONNECTION_NAME with DB_USER and DB_NAME builds a socket DSN.
// An empty result with no error means no database is configured.
func DatabaseURL(getenv Lookup) (string, error) {
	if dsn := getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	instance := getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", nil
	}

	user, name := getenv("DB_USER"), getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	// Cloud Run mounts instances at /cloudsql/<instance>.
	parts := []string{
		"host=" + quote("/cloudsql/"+instance),
		"user=" + quote(user),
	}
	if password := getenv("DB_PASSWORD"); password != "" {
		parts = append(parts, "password="+quote(password))
	}
	parts = append(parts, "dbname="+quote(name), "sslmode=disable")

	return strings.Join(parts, " "), nil
}

// Redact hides the password of a DSN for logging.
func Redact(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "postgres://<unparseable>"
		}
		return u.Redacted()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

// quote escapes a keyword/value DSN value the way lib/pq parses it.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
