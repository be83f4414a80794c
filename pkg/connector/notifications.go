package connector

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/cell"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/metrics"
)

// NotificationRegistry maps list ids to notification metadata. The outer map
// and each metadata's listener table are locked independently; the map lock
// is always taken first.
type NotificationRegistry struct {
	st    *state
	hooks Hooks
	lists *cell.Cell[map[string]*NotificationMetadata]
}

func newNotificationRegistry(st *state, hooks Hooks) *NotificationRegistry {
	return &NotificationRegistry{
		st:    st,
		hooks: hooks,
		lists: cell.New(make(map[string]*NotificationMetadata)),
	}
}

// Enable returns the metadata stored under listID, or asks the connector to
// enable category and stores the result under listID. Lists are keyed by id
// only: two ids enabling the same category get two independent metadata.
func (r *NotificationRegistry) Enable(ctx context.Context, listID, category string, options Options) (*NotificationMetadata, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	if listID == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "notification list id is required")
	}

	return cell.Write(r.lists, func(m map[string]*NotificationMetadata) (*NotificationMetadata, error) {
		// Close may have run while this call waited for the lock.
		if err := r.st.checkOpen(); err != nil {
			return nil, err
		}
		if md, ok := m[listID]; ok {
			if md.Category() != category {
				r.st.logger.Warn("notification list already enabled for another category",
					zap.String("list_id", listID),
					zap.String("category", md.Category()),
					zap.String("requested", category))
			}
			return md, nil
		}
		timer := metrics.NewTimer()
		md, err := r.hooks.EnableNotificationsCore(ctx, category, options)
		r.st.metrics.ObserveHook("enable_notifications", timer.Stop())
		if err != nil {
			return nil, hookError(err, "enable notifications "+listID)
		}
		if md == nil {
			r.st.logger.Debug("notification category not available",
				zap.String("list_id", listID), zap.String("category", category))
			return nil, nil
		}
		m[listID] = md
		r.st.logger.Debug("notifications enabled", zap.String("list_id", listID), zap.String("category", category))
		return md, nil
	})
}

// Disable removes listID and stops its back-end source.
func (r *NotificationRegistry) Disable(ctx context.Context, listID string) (bool, error) {
	if err := r.st.checkOpen(); err != nil {
		return false, err
	}
	return cell.Write(r.lists, func(m map[string]*NotificationMetadata) (bool, error) {
		md, ok := m[listID]
		if !ok {
			return false, nil
		}
		delete(m, listID)
		r.st.metrics.AddListeners(-md.ListenerCount())
		timer := metrics.NewTimer()
		r.hooks.DisableNotificationsCore(ctx, md)
		r.st.metrics.ObserveHook("disable_notifications", timer.Stop())
		return true, nil
	})
}

// Subscribe attaches listener to listID and returns its id.
func (r *NotificationRegistry) Subscribe(ctx context.Context, listID string, listener Listener) (ListenerID, error) {
	if err := r.st.checkOpen(); err != nil {
		return 0, err
	}
	if listener == nil {
		return 0, errors.New(errors.ErrorTypeValidation, "listener is required")
	}
	return cell.Read(r.lists, func(m map[string]*NotificationMetadata) (ListenerID, error) {
		md, ok := m[listID]
		if !ok {
			return 0, notFound("notification list", listID)
		}
		timer := metrics.NewTimer()
		userData, err := r.hooks.SubscribeCore(ctx, md, listener)
		r.st.metrics.ObserveHook("subscribe", timer.Stop())
		if err != nil {
			return 0, hookError(err, "subscribe to "+listID)
		}
		id := md.add(listener, userData)
		r.st.metrics.AddListeners(1)
		return id, nil
	})
}

// Unsubscribe removes the listener with id. An id does not say which list
// owns it, so every list is probed in list-id order until one holds it.
func (r *NotificationRegistry) Unsubscribe(ctx context.Context, id ListenerID) (bool, error) {
	if err := r.st.checkOpen(); err != nil {
		return false, err
	}
	return cell.Read(r.lists, func(m map[string]*NotificationMetadata) (bool, error) {
		for _, listID := range sortedKeys(m) {
			md := m[listID]
			removed := md.removeWith(id, func(s subscription) {
				timer := metrics.NewTimer()
				r.hooks.UnsubscribeCore(ctx, md, s.listener, s.userData)
				r.st.metrics.ObserveHook("unsubscribe", timer.Stop())
			})
			if removed {
				r.st.metrics.AddListeners(-1)
				return true, nil
			}
		}
		return false, nil
	})
}

// Info returns the metadata stored under listID.
func (r *NotificationRegistry) Info(listID string) (*NotificationMetadata, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.lists, func(m map[string]*NotificationMetadata) (*NotificationMetadata, error) {
		md, ok := m[listID]
		if !ok {
			return nil, notFound("notification list", listID)
		}
		return md, nil
	})
}

// List returns the enabled list ids in sorted order.
func (r *NotificationRegistry) List() ([]string, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.lists, func(m map[string]*NotificationMetadata) ([]string, error) {
		return sortedKeys(m), nil
	})
}

func (r *NotificationRegistry) clear() {
	r.lists.Replace(make(map[string]*NotificationMetadata))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
