package connector

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/cell"
	"github.com/ajitpratap0/resbridge/pkg/errors"
	"github.com/ajitpratap0/resbridge/pkg/metrics"
)

// sentinelValue has non-zero size so every allocation yields a distinct
// address; absent therefore never compares equal to a caller's value.
type sentinelValue struct{ _ byte }

// absent marks "no value" in the batch read path.
var absent any = &sentinelValue{}

// AttributeRegistry maps attribute ids to metadata. Every operation holds the
// registry lock while the connector hook runs, so a slow hook serializes the
// other callers of this registry for its duration.
type AttributeRegistry struct {
	st    *state
	hooks Hooks
	attrs *cell.Cell[map[string]*AttributeMetadata]
}

func newAttributeRegistry(st *state, hooks Hooks) *AttributeRegistry {
	return &AttributeRegistry{
		st:    st,
		hooks: hooks,
		attrs: cell.New(make(map[string]*AttributeMetadata)),
	}
}

// Connect returns the metadata registered under id, or discovers and stores it.
// Discovery runs at most once per id. A nil metadata with a nil error means
// the back end does not know name.
func (r *AttributeRegistry) Connect(ctx context.Context, id, name string, options Options) (*AttributeMetadata, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "attribute id is required")
	}

	return cell.Write(r.attrs, func(m map[string]*AttributeMetadata) (*AttributeMetadata, error) {
		// Close may have run while this call waited for the lock.
		if err := r.st.checkOpen(); err != nil {
			return nil, err
		}
		if md, ok := m[id]; ok {
			return md, nil
		}
		timer := metrics.NewTimer()
		md, err := r.hooks.ConnectAttributeCore(ctx, name, options)
		r.st.metrics.ObserveHook("connect_attribute", timer.Stop())
		if err != nil {
			return nil, hookError(err, "connect attribute "+id)
		}
		if md == nil {
			r.st.logger.Debug("attribute not available", zap.String("id", id), zap.String("name", name))
			return nil, nil
		}
		m[id] = md
		r.st.metrics.SetAttributes(len(m))
		r.st.logger.Debug("attribute connected", zap.String("id", id), zap.String("name", name))
		return md, nil
	})
}

// Get reads one attribute. The hook returns defaultValue when the value is
// unavailable, so a genuine value equal to defaultValue cannot be told apart
// from a miss; GetMany does not have that ambiguity.
func (r *AttributeRegistry) Get(ctx context.Context, id string, timeout time.Duration, defaultValue any) (any, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.attrs, func(m map[string]*AttributeMetadata) (any, error) {
		md, ok := m[id]
		if !ok {
			return nil, notFound("attribute", id)
		}
		if !md.CanRead() {
			return nil, errors.Unsupported("read of write-only attribute " + id)
		}
		b := newBudget(timeout, r.st.now)
		var (
			v   any
			err error
		)
		b.spend(func(remaining time.Duration) {
			timer := metrics.NewTimer()
			v, err = r.hooks.GetAttributeValue(ctx, md, remaining, defaultValue)
			r.st.metrics.ObserveHook("get_attribute_value", timer.Stop())
		})
		return v, err
	})
}

// GetMany reads ids under one shared lock, apportioning timeout across them:
// each item is offered what is left after the items before it. Values read are
// stored in output; the returned ids are those read, in request order. Unknown,
// unreadable and failing ids are skipped.
func (r *AttributeRegistry) GetMany(ctx context.Context, ids []string, output map[string]any, timeout time.Duration) ([]string, error) {
	if output == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "output map is nil")
	}
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.attrs, func(m map[string]*AttributeMetadata) ([]string, error) {
		read := make([]string, 0, len(ids))
		b := newBudget(timeout, r.st.now)
		for _, id := range ids {
			md, ok := m[id]
			if !ok || !md.CanRead() {
				continue
			}
			var (
				v   any
				err error
			)
			b.spend(func(remaining time.Duration) {
				timer := metrics.NewTimer()
				v, err = r.hooks.GetAttributeValue(ctx, md, remaining, absent)
				r.st.metrics.ObserveHook("get_attribute_value", timer.Stop())
			})
			if err != nil {
				r.st.logger.Warn("attribute read failed", zap.String("id", id), zap.Error(err))
				continue
			}
			if v == absent {
				continue
			}
			output[id] = v
			read = append(read, id)
		}
		return read, nil
	})
}

// Set writes one attribute.
func (r *AttributeRegistry) Set(ctx context.Context, id string, timeout time.Duration, value any) (bool, error) {
	if err := r.st.checkOpen(); err != nil {
		return false, err
	}
	return cell.Write(r.attrs, func(m map[string]*AttributeMetadata) (bool, error) {
		md, ok := m[id]
		if !ok {
			return false, notFound("attribute", id)
		}
		if !md.CanWrite() {
			return false, errors.Unsupported("write of read-only attribute " + id)
		}
		var (
			written bool
			err     error
		)
		newBudget(timeout, r.st.now).spend(func(remaining time.Duration) {
			timer := metrics.NewTimer()
			written, err = r.hooks.SetAttributeValue(ctx, md, remaining, value)
			r.st.metrics.ObserveHook("set_attribute_value", timer.Stop())
		})
		return written, err
	})
}

// SetMany writes every entry of values in id order under one exclusive lock.
// It is not a transaction: every item is attempted, a failing item does not
// stop the rest, and the result is true only if all items succeeded.
func (r *AttributeRegistry) SetMany(ctx context.Context, values map[string]any, timeout time.Duration) (bool, error) {
	if err := r.st.checkOpen(); err != nil {
		return false, err
	}
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return cell.Write(r.attrs, func(m map[string]*AttributeMetadata) (bool, error) {
		all := true
		b := newBudget(timeout, r.st.now)
		for _, id := range ids {
			id := id
			md, ok := m[id]
			if !ok || !md.CanWrite() {
				r.st.logger.Warn("attribute not writable", zap.String("id", id), zap.Bool("registered", ok))
				all = false
				continue
			}
			var (
				written bool
				err     error
			)
			b.spend(func(remaining time.Duration) {
				timer := metrics.NewTimer()
				written, err = r.hooks.SetAttributeValue(ctx, md, remaining, values[id])
				r.st.metrics.ObserveHook("set_attribute_value", timer.Stop())
			})
			if err != nil {
				r.st.logger.Warn("attribute write failed", zap.String("id", id), zap.Error(err))
			}
			all = all && written && err == nil
		}
		return all, nil
	})
}

// Disconnect removes id when it is registered and the hook agrees.
func (r *AttributeRegistry) Disconnect(ctx context.Context, id string) (bool, error) {
	if err := r.st.checkOpen(); err != nil {
		return false, err
	}
	return cell.Write(r.attrs, func(m map[string]*AttributeMetadata) (bool, error) {
		md, ok := m[id]
		if !ok {
			return false, nil
		}
		timer := metrics.NewTimer()
		released := r.hooks.DisconnectAttributeCore(ctx, id, md)
		r.st.metrics.ObserveHook("disconnect_attribute", timer.Stop())
		if !released {
			return false, nil
		}
		delete(m, id)
		r.st.metrics.SetAttributes(len(m))
		return true, nil
	})
}

// Info returns the metadata registered under id.
func (r *AttributeRegistry) Info(id string) (*AttributeMetadata, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.attrs, func(m map[string]*AttributeMetadata) (*AttributeMetadata, error) {
		md, ok := m[id]
		if !ok {
			return nil, notFound("attribute", id)
		}
		return md, nil
	})
}

// List returns a snapshot of the registered attributes.
func (r *AttributeRegistry) List() (map[string]*AttributeMetadata, error) {
	if err := r.st.checkOpen(); err != nil {
		return nil, err
	}
	return cell.Read(r.attrs, func(m map[string]*AttributeMetadata) (map[string]*AttributeMetadata, error) {
		out := make(map[string]*AttributeMetadata, len(m))
		for id, md := range m {
			out[id] = md
		}
		return out, nil
	})
}

func (r *AttributeRegistry) clear() {
	r.attrs.Replace(make(map[string]*AttributeMetadata))
}

func notFound(kind, id string) *errors.Error {
	return errors.Newf(errors.ErrorTypeNotFound, "%s %s is not registered", kind, id).
		WithDetail("id", id)
}
