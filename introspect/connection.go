package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/satishbabariya/dbre/internal/debug"
)

// Properties are the connection settings read from configuration.
// DriverName may be a driver name ("postgres"), a provider alias
// ("postgresql") or a driver class such as "org.postgresql.Driver"; when
// blank it is detected from URL.
type Properties struct {
	DriverName string
	URL        string
	Username   string
	Password   string
}

// Provider hands out connections for introspection runs.
type Provider interface {
	Configure(props Properties) error
	Connection(ctx context.Context) (*sql.DB, error)
	Close(db *sql.DB) error
}

// SQLProvider opens connections through database/sql. The driver packages
// must be registered by the binary.
type SQLProvider struct {
	driver string
	dsn    string
}

// NewSQLProvider returns a provider configured with props.
func NewSQLProvider(props Properties) (*SQLProvider, error) {
	p := &SQLProvider{}
	if err := p.Configure(props); err != nil {
		return nil, err
	}
	return p, nil
}

// Configure validates props and prepares the driver name and DSN.
func (p *SQLProvider) Configure(props Properties) error {
	if strings.TrimSpace(props.URL) == "" {
		return ErrNoConnection
	}
	rawURL := strings.TrimPrefix(strings.TrimSpace(props.URL), "jdbc:")

	driver := driverForClass(props.DriverName)
	if driver == "" {
		driver = detectDriver(rawURL)
	}
	if driver == "" {
		return fmt.Errorf("%w: cannot detect driver for %q", ErrUnsupportedProvider, redact(rawURL))
	}

	dsn, err := buildDSN(driver, rawURL, props.Username, props.Password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	p.driver = driver
	p.dsn = dsn
	debug.Debug("connection configured", "driver", driver, "url", redact(rawURL))
	return nil
}

// Driver returns the database/sql driver name.
func (p *SQLProvider) Driver() string {
	return p.driver
}

// Connection opens and pings a new connection pool.
func (p *SQLProvider) Connection(ctx context.Context) (*sql.DB, error) {
	if p.driver == "" {
		return nil, &ConnectionError{Op: "open", Err: ErrNoConnection}
	}
	db, err := sql.Open(p.driver, p.dsn)
	if err != nil {
		return nil, classify("open", err)
	}
	if p.driver == "sqlite3" {
		// One connection keeps in-memory databases alive across queries.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("ping", err)
	}
	return db, nil
}

// Close releases db.
func (p *SQLProvider) Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return classify("close", err)
	}
	return nil
}

// classify wraps a driver error, keeping the server error code when the
// driver exposes one.
func classify(op string, err error) *ConnectionError {
	ce := &ConnectionError{Op: op, Err: err}
	var pqErr *pq.Error
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pqErr):
		ce.Code = string(pqErr.Code)
	case errors.As(err, &myErr):
		ce.Code = strconv.Itoa(int(myErr.Number))
	}
	return ce
}

func driverForClass(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return ""
	case strings.Contains(n, "postgres"):
		return "postgres"
	case strings.Contains(n, "mysql"), strings.Contains(n, "mariadb"):
		return "mysql"
	case strings.Contains(n, "sqlite"):
		return "sqlite3"
	default:
		return ""
	}
}

func detectDriver(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"), strings.HasPrefix(lower, "mariadb://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite:"), strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), lower == ":memory:":
		return "sqlite3"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	if _, err := mysql.ParseDSN(rawURL); err == nil && strings.Contains(rawURL, "@") {
		return "mysql"
	}
	return ""
}

// buildDSN turns rawURL into a driver DSN with the configured credentials
// merged in. Explicit credentials override those in the URL.
func buildDSN(driver, rawURL, username, password string) (string, error) {
	switch driver {
	case "postgres":
		return postgresDSN(rawURL, username, password)
	case "mysql":
		return mysqlDSN(rawURL, username, password)
	case "sqlite3":
		dsn := rawURL
		if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
			dsn = dsn[len("sqlite://"):]
		} else if strings.HasPrefix(strings.ToLower(dsn), "sqlite:") {
			dsn = dsn[len("sqlite:"):]
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, driver)
	}
}

func postgresDSN(rawURL, username, password string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		// key=value form
		dsn := rawURL
		if username != "" {
			dsn += " user=" + quoteKeyword(username)
		}
		if password != "" {
			dsn += " password=" + quoteKeyword(password)
		}
		return strings.TrimSpace(dsn), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	if username != "" || password != "" {
		user := username
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		if password != "" {
			u.User = url.UserPassword(user, password)
		} else if pw, ok := u.User.Password(); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String(), nil
}

func mysqlDSN(rawURL, username, password string) (string, error) {
	var cfg *mysql.Config
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "mysql://") || strings.HasPrefix(lower, "mariadb://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("parse mysql url: %w", err)
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		if q := u.Query(); len(q) > 0 {
			cfg.Params = make(map[string]string, len(q))
			for k := range q {
				cfg.Params[k] = q.Get(k)
			}
		}
	} else {
		var err error
		if cfg, err = mysql.ParseDSN(rawURL); err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
	}
	if username != "" {
		cfg.User = username
	}
	if password != "" {
		cfg.Passwd = password
	}
	return cfg.FormatDSN(), nil
}

func quoteKeyword(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// redact hides the password of a URL for logging.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}
