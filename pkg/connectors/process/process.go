// Package process exposes operating-system process and host statistics as
// read-only attributes, backed by gopsutil.
//
// Connector options:
//
//	pid  process to observe (default: the current process)
//
// The "threshold" category raises a notification whenever a numeric attribute
// exceeds a limit. List options: attribute, above, and interval (a duration;
// when set the list is polled in the background, otherwise only the "check"
// action evaluates it).
package process

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/logger"
)

// ThresholdCategory is the notification category for limit breaches.
const ThresholdCategory = "threshold"

// Breach is the payload of a threshold notification.
type Breach struct {
	Attribute string  `json:"attribute"`
	Value     float64 `json:"value"`
	Limit     float64 `json:"limit"`
}

type reader func(ctx context.Context, p *process.Process) (any, error)

type stat struct {
	native reflect.Type
	read   reader
}

var stats = map[string]stat{
	"name": {reflect.TypeOf((*string)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		return p.NameWithContext(ctx)
	}},
	"cpu_percent": {reflect.TypeOf((*float64)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		return p.CPUPercentWithContext(ctx)
	}},
	"rss_bytes": {reflect.TypeOf((*uint64)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		m, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return m.RSS, nil
	}},
	"threads": {reflect.TypeOf((*int32)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		return p.NumThreadsWithContext(ctx)
	}},
	"open_fds": {reflect.TypeOf((*int32)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		return p.NumFDsWithContext(ctx)
	}},
	"create_time": {reflect.TypeOf((*time.Time)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		ms, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms), nil
	}},
	"cmdline": {reflect.TypeOf((*[]string)(nil)).Elem(), func(ctx context.Context, p *process.Process) (any, error) {
		return p.CmdlineSliceWithContext(ctx)
	}},
	"system_cpu_percent": {reflect.TypeOf((*float64)(nil)).Elem(), func(ctx context.Context, _ *process.Process) (any, error) {
		pct, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return nil, err
		}
		if len(pct) == 0 {
			return 0.0, nil
		}
		return pct[0], nil
	}},
	"system_memory_percent": {reflect.TypeOf((*float64)(nil)).Elem(), func(ctx context.Context, _ *process.Process) (any, error) {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return vm.UsedPercent, nil
	}},
	"host_uptime": {reflect.TypeOf((*time.Duration)(nil)).Elem(), func(ctx context.Context, _ *process.Process) (any, error) {
		secs, err := host.UptimeWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return time.Duration(secs) * time.Second, nil
	}},
}

// Attributes returns the attribute names the connector knows, sorted.
func Attributes() []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type watch struct {
	md        *connector.NotificationMetadata
	attribute string
	limit     float64
	stop      context.CancelFunc
	done      chan struct{}
}

// Hooks is the process connector.
type Hooks struct {
	connector.BaseHooks

	cfg      *config.BaseConfig
	proc     *process.Process
	provider *entity.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	watches map[*connector.NotificationMetadata]*watch
}

// New opens the process named by the "pid" option.
func New(cfg *config.BaseConfig) (connector.Hooks, error) {
	pid := int32(os.Getpid())
	if raw := cfg.Option("pid", ""); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid pid option")
		}
		pid = int32(v)
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, fmt.Sprintf("open process %d", pid))
	}
	p, err := entity.ProviderFor(entity.StandardFamily)
	if err != nil {
		return nil, err
	}
	return &Hooks{
		cfg:      cfg,
		proc:     proc,
		provider: p,
		logger:   logger.Get().With(zap.String("connector", cfg.Name), zap.Int32("pid", pid)),
		watches:  make(map[*connector.NotificationMetadata]*watch),
	}, nil
}

func init() {
	_ = registry.Register("process", New)
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "process",
		Description:  "Process and host statistics",
		Version:      "1.0.0",
		Capabilities: []string{"read", "notifications", "actions"},
		Options:      map[string]string{"pid": "process id, defaults to self"},
	})
}

// ConnectAttributeCore returns nil for names the connector does not know.
func (h *Hooks) ConnectAttributeCore(_ context.Context, name string, options connector.Options) (*connector.AttributeMetadata, error) {
	s, ok := stats[name]
	if !ok {
		return nil, nil
	}
	wire := reflect.TypeOf((*string)(nil)).Elem()
	if s.native.Kind() == reflect.Slice {
		wire = entity.TableType
	}
	return connector.NewAttributeMetadata(name, options, connector.BuildType(h.provider, s.native, wire),
		connector.ReadOnly(), connector.WithNamespace("process")), nil
}

// GetAttributeValue samples the statistic, bounded by timeout.
func (h *Hooks) GetAttributeValue(ctx context.Context, md *connector.AttributeMetadata, timeout time.Duration, _ any) (any, error) {
	if timeout <= 0 {
		return nil, errors.New(errors.ErrorTypeTimeout, "read budget exhausted for "+md.Name())
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.sample(ctx, md.Name())
}

func (h *Hooks) sample(ctx context.Context, name string) (any, error) {
	s, ok := stats[name]
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound, "unknown statistic "+name)
	}
	v, err := s.read(ctx, h.proc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "sample "+name)
	}
	return v, nil
}

// SetAttributeValue always fails; every statistic is read-only.
func (h *Hooks) SetAttributeValue(_ context.Context, md *connector.AttributeMetadata, _ time.Duration, _ any) (bool, error) {
	return false, errors.Unsupported("writing " + md.Name())
}

// DisconnectAttributeCore holds no per-attribute state.
func (h *Hooks) DisconnectAttributeCore(context.Context, string, *connector.AttributeMetadata) bool {
	return true
}

// EnableNotificationsCore supports the threshold category only.
func (h *Hooks) EnableNotificationsCore(_ context.Context, category string, options connector.Options) (*connector.NotificationMetadata, error) {
	if category != ThresholdCategory {
		return nil, nil
	}
	attr := options.GetOr("attribute", "")
	if _, ok := stats[attr]; !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "threshold: unknown attribute %q", attr)
	}
	raw, ok := options.Get("above")
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "threshold: missing above option")
	}
	limit, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "threshold: invalid above option")
	}

	md := connector.NewNotificationMetadata(category, options,
		connector.WithSequence(registry.Sequence(h.cfg)),
		connector.WithDescription(fmt.Sprintf("%s above %g", attr, limit)))
	w := &watch{md: md, attribute: attr, limit: limit}

	if interval := options.Duration("interval", 0); interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		w.stop, w.done = cancel, make(chan struct{})
		go h.poll(ctx, w, interval)
	}

	h.mu.Lock()
	h.watches[md] = w
	h.mu.Unlock()
	return md, nil
}

func (h *Hooks) poll(ctx context.Context, w *watch, interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.evaluate(ctx, w); err != nil && ctx.Err() == nil {
				h.logger.Warn("threshold check failed", zap.String("attribute", w.attribute), zap.Error(err))
			}
		}
	}
}

// evaluate samples the watched attribute and emits a breach. It returns the
// number of listeners notified.
func (h *Hooks) evaluate(ctx context.Context, w *watch) (int, error) {
	v, err := h.sample(ctx, w.attribute)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errors.Conversion(v, "float64")
	}
	if f <= w.limit {
		return 0, nil
	}
	return w.md.Emit(connector.Notification{
		Source:  h.cfg.Name,
		Message: fmt.Sprintf("%s %.2f above %.2f", w.attribute, f, w.limit),
		Data:    Breach{Attribute: w.attribute, Value: f, Limit: w.limit},
	}), nil
}

// DisableNotificationsCore stops the list's poller, if any.
func (h *Hooks) DisableNotificationsCore(_ context.Context, md *connector.NotificationMetadata) {
	h.mu.Lock()
	w := h.watches[md]
	delete(h.watches, md)
	h.mu.Unlock()
	if w != nil {
		w.halt()
	}
}

func (w *watch) halt() {
	if w.stop != nil {
		w.stop()
		<-w.done
	}
}

// InvokeActionCore supports "check", which evaluates every threshold list
// once and returns the number of listeners notified.
func (h *Hooks) InvokeActionCore(ctx context.Context, name string, _ map[string]any, timeout time.Duration) (any, error) {
	if name != "check" {
		return nil, errors.Unsupported("process action " + name)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h.mu.Lock()
	watches := make([]*watch, 0, len(h.watches))
	for _, w := range h.watches {
		watches = append(watches, w)
	}
	h.mu.Unlock()

	notified := 0
	for _, w := range watches {
		n, err := h.evaluate(ctx, w)
		if err != nil {
			return notified, err
		}
		notified += n
	}
	return notified, nil
}

// CloseResource stops every poller.
func (h *Hooks) CloseResource(context.Context) error {
	h.mu.Lock()
	watches := h.watches
	h.watches = make(map[*connector.NotificationMetadata]*watch)
	h.mu.Unlock()
	for _, w := range watches {
		w.halt()
	}
	return nil
}
