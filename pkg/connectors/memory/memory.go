// Package memory provides an in-process connector whose attributes are plain
// values held in memory. It backs tests and demos and shows the full hook seam:
// typed attributes, change notifications and actions.
//
// Attribute options:
//
//	type     value type: string (default), int64, float64, bool, duration, decimal, time, strings
//	initial  initial value, parsed from its string form (comma separated for strings)
//	readonly "true" rejects writes
//
// Every successful write emits an "attribute_change" notification while the
// write is still in progress, so listeners must not call back into the
// connector's attributes synchronously. The "publish" action emits an
// arbitrary notification; "reset" restores initial values.
package memory

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/entity"
	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// ChangeCategory is emitted after every successful write.
const ChangeCategory = "attribute_change"

// Change is the payload of an attribute_change notification.
type Change struct {
	Attribute string `json:"attribute"`
	Old       any    `json:"old"`
	New       any    `json:"new"`
}

type slot struct {
	typ     *entity.EntityType
	value   any
	initial any
	set     bool
}

// Hooks is the memory connector.
type Hooks struct {
	cfg      *config.BaseConfig
	provider *entity.Provider

	mu    sync.Mutex
	slots map[string]*slot
	lists map[string][]*connector.NotificationMetadata
}

// New creates a memory connector from cfg.
func New(cfg *config.BaseConfig) (connector.Hooks, error) {
	p, err := entity.ProviderFor(entity.StandardFamily)
	if err != nil {
		return nil, err
	}
	return &Hooks{
		cfg:      cfg,
		provider: p,
		slots:    make(map[string]*slot),
		lists:    make(map[string][]*connector.NotificationMetadata),
	}, nil
}

func init() {
	_ = registry.Register("memory", New)
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         "memory",
		Description:  "In-memory attributes with change notifications",
		Version:      "1.0.0",
		Capabilities: []string{"read", "write", "notifications", "actions"},
		Options: map[string]string{
			"type":     "attribute value type",
			"initial":  "attribute initial value",
			"readonly": "reject writes when true",
		},
	})
}

// ConnectAttributeCore creates the slot for name. Reconnecting an existing
// name under another id shares the slot.
func (h *Hooks) ConnectAttributeCore(_ context.Context, name string, options connector.Options) (*connector.AttributeMetadata, error) {
	typeName := options.GetOr("type", "string")
	native, ok := entity.TypeByName(typeName)
	if !ok || native == entity.TableType {
		return nil, errors.Newf(errors.ErrorTypeConfig, "attribute %s: unknown type %q", name, typeName)
	}
	wire := reflect.TypeOf((*string)(nil)).Elem()
	if native.Kind() == reflect.Slice {
		wire = entity.TableType
	}
	et, err := entity.BuildEntityType(h.provider, native, wire)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	s, exists := h.slots[name]
	if !exists {
		s = &slot{typ: et}
		if raw, ok := options.Get("initial"); ok {
			v, err := parseInitial(et, raw)
			if err != nil {
				return nil, err
			}
			s.initial, s.value, s.set = v, v, true
		}
		h.slots[name] = s
	}

	var attrOpts []connector.AttributeOption
	if options.Bool("readonly", false) {
		attrOpts = append(attrOpts, connector.ReadOnly())
	}
	attrOpts = append(attrOpts, connector.WithNamespace("memory"))
	return connector.NewAttributeMetadata(name, options, connector.StaticType(s.typ), attrOpts...), nil
}

func parseInitial(et *entity.EntityType, raw string) (any, error) {
	if et.Kind() == entity.KindScalar {
		return et.ConvertFrom(raw)
	}
	return et.ConvertFrom(strings.Split(raw, ","))
}

// GetAttributeValue returns the stored value, or defaultValue when never set.
func (h *Hooks) GetAttributeValue(_ context.Context, md *connector.AttributeMetadata, timeout time.Duration, defaultValue any) (any, error) {
	if timeout <= 0 {
		return nil, errors.New(errors.ErrorTypeTimeout, "read budget exhausted for "+md.Name())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[md.Name()]
	if !ok || !s.set {
		return defaultValue, nil
	}
	return s.value, nil
}

// SetAttributeValue converts value to the attribute's native type and stores it.
func (h *Hooks) SetAttributeValue(_ context.Context, md *connector.AttributeMetadata, timeout time.Duration, value any) (bool, error) {
	if timeout <= 0 {
		return false, errors.New(errors.ErrorTypeTimeout, "write budget exhausted for "+md.Name())
	}
	h.mu.Lock()
	s, ok := h.slots[md.Name()]
	if !ok {
		h.mu.Unlock()
		return false, nil
	}
	native, err := s.typ.ConvertFrom(value)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}
	old := s.value
	s.value, s.set = native, true
	lists := append([]*connector.NotificationMetadata(nil), h.lists[ChangeCategory]...)
	h.mu.Unlock()

	for _, list := range lists {
		list.Emit(connector.Notification{
			Source:  h.cfg.Name,
			Message: md.Name() + " changed",
			Data:    Change{Attribute: md.Name(), Old: old, New: native},
		})
	}
	return true, nil
}

// DisconnectAttributeCore always agrees; the slot survives for other ids.
func (h *Hooks) DisconnectAttributeCore(context.Context, string, *connector.AttributeMetadata) bool {
	return true
}

// EnableNotificationsCore accepts every category.
func (h *Hooks) EnableNotificationsCore(_ context.Context, category string, options connector.Options) (*connector.NotificationMetadata, error) {
	md := connector.NewNotificationMetadata(category, options,
		connector.WithSequence(registry.Sequence(h.cfg)),
		connector.WithDescription("memory "+category+" events"))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lists[category] = append(h.lists[category], md)
	return md, nil
}

// DisableNotificationsCore stops delivering events to md.
func (h *Hooks) DisableNotificationsCore(_ context.Context, md *connector.NotificationMetadata) {
	h.mu.Lock()
	defer h.mu.Unlock()
	mds := h.lists[md.Category()]
	for i, m := range mds {
		if m == md {
			h.lists[md.Category()] = append(mds[:i], mds[i+1:]...)
			break
		}
	}
}

// SubscribeCore has no back-end state.
func (h *Hooks) SubscribeCore(context.Context, *connector.NotificationMetadata, connector.Listener) (any, error) {
	return nil, nil
}

// UnsubscribeCore has no back-end state.
func (h *Hooks) UnsubscribeCore(context.Context, *connector.NotificationMetadata, connector.Listener, any) {}

// InvokeActionCore runs "reset" or "publish".
func (h *Hooks) InvokeActionCore(_ context.Context, name string, args map[string]any, _ time.Duration) (any, error) {
	switch name {
	case "reset":
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, s := range h.slots {
			s.value, s.set = s.initial, s.initial != nil
		}
		return len(h.slots), nil
	case "publish":
		category, _ := args["category"].(string)
		if category == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "publish requires a category")
		}
		message, _ := args["message"].(string)
		h.mu.Lock()
		lists := append([]*connector.NotificationMetadata(nil), h.lists[category]...)
		h.mu.Unlock()
		delivered := 0
		for _, md := range lists {
			delivered += md.Emit(connector.Notification{Source: h.cfg.Name, Message: message, Data: args["data"]})
		}
		return delivered, nil
	}
	return nil, errors.Unsupported("memory action " + name)
}
