// Package sqlquery maps SQL queries onto attributes. Any database/sql driver
// linked into the binary can serve; pgx ("pgx"), MySQL ("mysql") and SQLite
// ("sqlite3") are linked by this package.
//
// Connector options:
//
//	driver            database/sql driver name
//	dsn               data source name
//	init              statements executed once after connecting
//	max_open_conns    pool size (forced to 1 for sqlite3 in-memory databases)
//	connect_attempts  pings before giving up on the database (default 3)
//	statement.NAME    a statement the "exec" action may run by NAME
//
// Attribute options:
//
//	query   SELECT whose first column of the first row is the value
//	update  statement taking the new value as its only parameter; without it
//	        the attribute is read-only
//	type    scalar value type name (see entity.TypeByName); "table" returns
//	        every row
//
// The "query_change" category watches a query and notifies when its scalar
// result changes. List options: query, interval.
package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/logger"
	"github.com/ajitpratap0/resbridge/pkg/retry"
)

// ChangeCategory watches a query result.
const ChangeCategory = "query_change"

// Change is the payload of a query_change notification.
type Change struct {
	Query string `json:"query"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

type watcher struct {
	md       *connector.NotificationMetadata
	query    string
	mu       sync.Mutex
	last     any
	observed bool
	stop     context.CancelFunc
	done     chan struct{}
}

// Hooks is the SQL connector.
type Hooks struct {
	connector.BaseHooks

	cfg      *config.BaseConfig
	db       *sql.DB
	provider *entity.Provider
	logger   *zap.Logger

	mu       sync.Mutex
	watchers map[*connector.NotificationMetadata]*watcher
}

// New opens the database and runs the init statements.
func New(cfg *config.BaseConfig) (connector.Hooks, error) {
	driver := cfg.Option("driver", "")
	dsn := cfg.Option("dsn", "")
	if driver == "" || dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "sqlquery requires driver and dsn options")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database")
	}
	opts := connector.NewOptions(cfg.Options)
	maxOpen := opts.Int("max_open_conns", 4)
	if driver == "sqlite3" && strings.Contains(dsn, ":memory:") {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	connectTimeout := cfg.Timeouts.Connection
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	policy := retry.Default().WithMaxAttempts(opts.Int("connect_attempts", 3))
	if err := policy.Do(ctx, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database")
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	if stmts := opts.GetOr("init", ""); stmts != "" {
		if _, err := db.ExecContext(ctx, stmts); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "init statements failed")
		}
	}

	p, err := entity.ProviderFor(entity.StandardFamily)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Hooks{
		cfg:      cfg,
		db:       db,
		provider: p,
		logger:   logger.Get().With(zap.String("connector", cfg.Name), zap.String("driver", driver)),
		watchers: make(map[*connector.NotificationMetadata]*watcher),
	}, nil
}

func init() {
	_ = registry.Register("sqlquery", New)
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "sqlquery",
		Description:  "Attributes backed by SQL queries",
		Version:      "1.0.0",
		Capabilities: []string{"read", "write", "notifications", "actions"},
		Options: map[string]string{
			"driver": "pgx, mysql or sqlite3",
			"dsn":    "data source name",
			"init":   "statements run after connecting",
		},
	})
}

// ConnectAttributeCore needs a query option; names carry no meaning.
func (h *Hooks) ConnectAttributeCore(_ context.Context, name string, options connector.Options) (*connector.AttributeMetadata, error) {
	if _, ok := options.Get("query"); !ok {
		return nil, nil
	}
	typeName := options.GetOr("type", "string")
	native, ok := entity.TypeByName(typeName)
	if !ok || native.Kind() == reflect.Slice {
		return nil, errors.Newf(errors.ErrorTypeConfig, "attribute %s: unsupported type %q", name, typeName)
	}
	wire := reflect.TypeOf((*string)(nil)).Elem()
	if native == entity.TableType {
		wire = entity.TableType
	}

	attrOpts := []connector.AttributeOption{connector.WithNamespace("sql")}
	if _, ok := options.Get("update"); !ok || native == entity.TableType {
		attrOpts = append(attrOpts, connector.ReadOnly())
	}
	return connector.NewAttributeMetadata(name, options, connector.BuildType(h.provider, native, wire), attrOpts...), nil
}

// GetAttributeValue runs the attribute's query. An empty result yields
// defaultValue.
func (h *Hooks) GetAttributeValue(ctx context.Context, md *connector.AttributeMetadata, timeout time.Duration, defaultValue any) (any, error) {
	if timeout <= 0 {
		return nil, errors.New(errors.ErrorTypeTimeout, "read budget exhausted for "+md.Name())
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query, _ := md.Options().Get("query")
	et, err := md.Type()
	if err != nil {
		return nil, err
	}
	if et.SourceType() == entity.TableType {
		return h.queryTable(ctx, query)
	}

	v, err := h.queryScalar(ctx, query)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultValue, nil
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return et.ConvertFrom(v)
}

func (h *Hooks) queryScalar(ctx context.Context, query string) (any, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
		}
		return nil, sql.ErrNoRows
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
	}
	cells := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "scan failed")
	}
	if len(cells) == 0 {
		return nil, nil
	}
	return cellValue(cells[0]), nil
}

func (h *Hooks) queryTable(ctx context.Context, query string) (entity.Table, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return entity.Table{}, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return entity.Table{}, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
	}
	table := entity.Table{Columns: make([]entity.Column, len(types))}
	for i, ct := range types {
		table.Columns[i] = entity.Column{Name: ct.Name(), Type: ct.ScanType()}
	}

	cells := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return entity.Table{}, errors.Wrap(err, errors.ErrorTypeConnection, "scan failed")
		}
		row := make(entity.Row, len(cells))
		for i, c := range table.Columns {
			row[c.Name] = cellValue(cells[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return entity.Table{}, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
	}
	return table, nil
}

// cellValue turns driver byte slices into strings.
func cellValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// SetAttributeValue runs the update statement with the converted value. It
// reports whether any row was affected.
func (h *Hooks) SetAttributeValue(ctx context.Context, md *connector.AttributeMetadata, timeout time.Duration, value any) (bool, error) {
	if timeout <= 0 {
		return false, errors.New(errors.ErrorTypeTimeout, "write budget exhausted for "+md.Name())
	}
	update, ok := md.Options().Get("update")
	if !ok {
		return false, errors.Unsupported("writing " + md.Name())
	}
	et, err := md.Type()
	if err != nil {
		return false, err
	}
	native, err := et.ConvertFrom(value)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := h.db.ExecContext(ctx, update, native)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConnection, "update failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return true, nil
	}
	return n > 0, nil
}

// DisconnectAttributeCore holds no per-attribute state.
func (h *Hooks) DisconnectAttributeCore(context.Context, string, *connector.AttributeMetadata) bool {
	return true
}

// EnableNotificationsCore supports the query_change category.
func (h *Hooks) EnableNotificationsCore(_ context.Context, category string, options connector.Options) (*connector.NotificationMetadata, error) {
	if category != ChangeCategory {
		return nil, nil
	}
	query, ok := options.Get("query")
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "query_change requires a query option")
	}
	md := connector.NewNotificationMetadata(category, options,
		connector.WithSequence(registry.Sequence(h.cfg)),
		connector.WithDescription("changes of "+query))
	w := &watcher{md: md, query: query}

	if interval := options.Duration("interval", 0); interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		w.stop, w.done = cancel, make(chan struct{})
		go h.watch(ctx, w, interval)
	}

	h.mu.Lock()
	h.watchers[md] = w
	h.mu.Unlock()
	return md, nil
}

func (h *Hooks) watch(ctx context.Context, w *watcher, interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.poll(ctx, w); err != nil && ctx.Err() == nil {
				h.logger.Warn("query watch failed", zap.String("query", w.query), zap.Error(err))
			}
		}
	}
}

// poll runs the watched query. The first observation sets the baseline; later
// differences are emitted. It returns the number of listeners notified.
func (h *Hooks) poll(ctx context.Context, w *watcher) (int, error) {
	v, err := h.queryScalar(ctx, w.query)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	w.mu.Lock()
	old, observed := w.last, w.observed
	w.last, w.observed = v, true
	w.mu.Unlock()

	if !observed || reflect.DeepEqual(old, v) {
		return 0, nil
	}
	return w.md.Emit(connector.Notification{
		Source:  h.cfg.Name,
		Message: fmt.Sprintf("query result changed from %v to %v", old, v),
		Data:    Change{Query: w.query, Old: old, New: v},
	}), nil
}

// DisableNotificationsCore stops the list's watcher.
func (h *Hooks) DisableNotificationsCore(_ context.Context, md *connector.NotificationMetadata) {
	h.mu.Lock()
	w := h.watchers[md]
	delete(h.watchers, md)
	h.mu.Unlock()
	if w != nil {
		w.halt()
	}
}

func (w *watcher) halt() {
	if w.stop != nil {
		w.stop()
		<-w.done
	}
}

// InvokeActionCore supports:
//
//	exec  runs option statement.<args["statement"]> with args["params"]; returns rows affected
//	poll  evaluates every query_change list once; returns listeners notified
func (h *Hooks) InvokeActionCore(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch name {
	case "exec":
		stmtName, _ := args["statement"].(string)
		stmt := h.cfg.Option("statement."+stmtName, "")
		if stmtName == "" || stmt == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unknown statement %q", stmtName)
		}
		params, _ := args["params"].([]any)
		res, err := h.db.ExecContext(ctx, stmt, params...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "statement "+stmtName+" failed")
		}
		return res.RowsAffected()
	case "poll":
		h.mu.Lock()
		watchers := make([]*watcher, 0, len(h.watchers))
		for _, w := range h.watchers {
			watchers = append(watchers, w)
		}
		h.mu.Unlock()

		notified := 0
		for _, w := range watchers {
			n, err := h.poll(ctx, w)
			if err != nil {
				return notified, err
			}
			notified += n
		}
		return notified, nil
	}
	return nil, errors.Unsupported("sqlquery action " + name)
}

// CloseResource stops the watchers and closes the pool.
func (h *Hooks) CloseResource(context.Context) error {
	h.mu.Lock()
	watchers := h.watchers
	h.watchers = make(map[*connector.NotificationMetadata]*watcher)
	h.mu.Unlock()
	for _, w := range watchers {
		w.halt()
	}
	return h.db.Close()
}
