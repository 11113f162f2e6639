package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/relschema/internal/schema"
)

// Target is a parsed connection URL
type Target struct {
	Engine schema.Engine
	// DSN is what the driver receives
	DSN string
	// Schema comes from a ?schema= query parameter, empty if absent
	Schema string
	// ID identifies the connection without credentials
	ID string
}

// ParseURL detects the engine and builds the driver DSN. Supported schemes:
// postgres://, postgresql://, mysql://, mariadb://, sqlite://, sqlserver://, mssql://
func ParseURL(raw string) (*Target, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: database URL is required", schema.ErrInvalidURL)
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, fmt.Errorf("%w: missing scheme in %q", schema.ErrInvalidURL, redact(raw))
	}

	engine, err := schema.ParseEngine(scheme)
	if err != nil {
		return nil, fmt.Errorf("%w (must start with postgres://, mysql://, sqlite:// or sqlserver://)", err)
	}

	switch engine {
	case schema.EnginePostgres:
		return parseNetworkURL(engine, raw, "postgres")
	case schema.EngineSQLServer:
		return parseNetworkURL(engine, raw, "sqlserver")
	case schema.EngineMySQL:
		return parseMySQLURL(rest)
	default:
		if rest == "" {
			return nil, fmt.Errorf("%w: sqlite URL needs a file path", schema.ErrInvalidURL)
		}
		return &Target{Engine: schema.EngineSQLite, DSN: rest, ID: "sqlite://" + rest}, nil
	}
}

// parseNetworkURL handles URL-shaped DSNs. The schema parameter is removed
// because drivers forward unknown parameters to the server.
func parseNetworkURL(engine schema.Engine, raw, scheme string) (*Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidURL, err)
	}
	if scheme != "" {
		u.Scheme = scheme
	}

	q := u.Query()
	schemaName := q.Get("schema")
	q.Del("schema")
	u.RawQuery = q.Encode()

	id := *u
	id.User = nil
	if u.User != nil {
		id.User = url.User(u.User.Username())
	}
	idQuery := id.Query()
	for key := range idQuery {
		if key != "database" {
			idQuery.Del(key)
		}
	}
	id.RawQuery = idQuery.Encode()

	return &Target{Engine: engine, DSN: u.String(), Schema: schemaName, ID: id.String()}, nil
}

// parseMySQLURL accepts both the driver DSN form user:pass@tcp(host:port)/db
// and the URL form user:pass@host:port/db
func parseMySQLURL(rest string) (*Target, error) {
	var cfg *mysql.Config
	if strings.Contains(rest, "@tcp(") || strings.Contains(rest, "@unix(") || strings.HasPrefix(rest, "tcp(") {
		parsed, err := mysql.ParseDSN(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidURL, err)
		}
		cfg = parsed
	} else {
		u, err := url.Parse("mysql://" + rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidURL, err)
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		if u.Port() == "" && u.Host != "" {
			cfg.Addr = u.Host + ":3306"
		}
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		for key, values := range u.Query() {
			if len(values) > 0 {
				if cfg.Params == nil {
					cfg.Params = make(map[string]string)
				}
				cfg.Params[key] = values[0]
			}
		}
	}

	schemaName := cfg.Params["schema"]
	delete(cfg.Params, "schema")

	id := fmt.Sprintf("mysql://%s@%s/%s", cfg.User, cfg.Addr, cfg.DBName)
	return &Target{Engine: schema.EngineMySQL, DSN: cfg.FormatDSN(), Schema: schemaName, ID: id}, nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// Connection bundles an adapter with the client that owns its handle
type Connection struct {
	Adapter Adapter
	ID      string
	close   func() error
}

// Close releases the underlying client
func (c *Connection) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// OpenOptions tunes Open. Zero values keep engine defaults.
type OpenOptions struct {
	// Schema overrides the URL parameter and the engine default
	Schema   string
	MaxConns int
}

// Open parses the URL, connects with the engine's client and returns the matching adapter
func Open(ctx context.Context, rawURL string, opts OpenOptions) (*Connection, error) {
	target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	schemaName := opts.Schema
	if schemaName == "" {
		schemaName = target.Schema
	}

	fail := func(err error) error {
		return &schema.ConnectionError{Engine: target.Engine, Op: "connect", Err: err}
	}

	switch target.Engine {
	case schema.EnginePostgres:
		client, err := NewPostgresClient(ctx, target.DSN, int32(opts.MaxConns))
		if err != nil {
			return nil, fail(err)
		}
		return &Connection{
			Adapter: NewPostgresAdapter(client.GetDB(), schemaName),
			ID:      target.ID,
			close:   client.Close,
		}, nil

	case schema.EngineMySQL:
		client, err := NewMySQLClient(ctx, target.DSN, opts.MaxConns)
		if err != nil {
			return nil, fail(err)
		}
		if schemaName == "" {
			schemaName = client.DatabaseName()
		}
		return &Connection{
			Adapter: NewMySQLAdapter(client.GetDB(), schemaName),
			ID:      target.ID,
			close:   client.Close,
		}, nil

	case schema.EngineSQLite:
		client, err := NewSQLiteClient(ctx, target.DSN)
		if err != nil {
			return nil, fail(err)
		}
		return &Connection{
			Adapter: NewSQLiteAdapter(client.GetDB()),
			ID:      target.ID,
			close:   client.Close,
		}, nil

	case schema.EngineSQLServer:
		client, err := NewSQLServerClient(ctx, target.DSN, opts.MaxConns)
		if err != nil {
			return nil, fail(err)
		}
		return &Connection{
			Adapter: NewSQLServerAdapter(client.GetDB(), schemaName),
			ID:      target.ID,
			close:   client.Close,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedEngine, target.Engine)
}

// NewConnection wraps an existing adapter, e.g. one built over a caller-owned *sql.DB
func NewConnection(adapter Adapter, id string) *Connection {
	return &Connection{Adapter: adapter, ID: id}
}

// NewAdapter builds the adapter for an engine over a caller-owned handle. The
// handle must come from the engine's driver and is not closed by the adapter.
// An empty schemaName selects the engine default; for MySQL that is the
// database the handle is connected to.
func NewAdapter(ctx context.Context, engine schema.Engine, sqlDB *sql.DB, schemaName string) (Adapter, error) {
	switch engine {
	case schema.EnginePostgres:
		return NewPostgresAdapter(sqlDB, schemaName), nil
	case schema.EngineMySQL:
		if schemaName == "" {
			var current sql.NullString
			if err := sqlDB.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
				return nil, &schema.ConnectionError{Engine: engine, Op: "resolve database", Err: err}
			}
			schemaName = current.String
		}
		return NewMySQLAdapter(sqlDB, schemaName), nil
	case schema.EngineSQLite:
		return NewSQLiteAdapter(sqlDB), nil
	case schema.EngineSQLServer:
		return NewSQLServerAdapter(sqlDB, schemaName), nil
	}
	return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedEngine, engine)
}
