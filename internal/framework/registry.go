package framework

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

// State is the lifecycle state of a registered adapter.
type State string

// Adapter lifecycle states.
const (
	StateRegistered State = "registered"
	StateReady      State = "ready"
	StateDegraded   State = "degraded"
	StateStopped    State = "stopped"
)

// AdapterStatus reports the lifecycle state of one registered adapter.
type AdapterStatus struct {
	Framework model.FrameworkType `json:"framework"`
	Version   string              `json:"version"`
	State     State               `json:"state"`
	Error     string              `json:"error,omitempty"`
}

// InitReport lists which adapters came up during InitializeAllFrameworks.
type InitReport struct {
	Ready    []model.FrameworkType `json:"ready"`
	Degraded []model.FrameworkType `json:"degraded"`
}

type entry struct {
	adapter Adapter
	meta    model.FrameworkMetadata
	state   State
	lastErr error
}

// Registry maps framework types to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.FrameworkType]*entry
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[model.FrameworkType]*entry),
		logger:   logger,
	}
}

// RegisterAdapter adds a. It fails if the type is already registered or the
// adapter's metadata version is not valid semver.
func (r *Registry) RegisterAdapter(a Adapter) error {
	ft := a.Type()
	if ft == "" {
		return errors.New("framework adapter has an empty type")
	}
	meta := a.Metadata()
	if _, err := semver.NewVersion(meta.Version); err != nil {
		return errors.Wrapf(err, "framework %s: invalid version %q", ft, meta.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[ft]; exists {
		return errors.Wrapf(errors.ErrAlreadyRegistered, "framework %s", ft)
	}
	r.adapters[ft] = &entry{adapter: a, meta: meta, state: StateRegistered}
	r.logger.Info("registered framework adapter", "framework", string(ft), "version", meta.Version)
	return nil
}

// UnregisterAdapter removes the adapter for ft and reports whether one was
// registered.
func (r *Registry) UnregisterAdapter(ft model.FrameworkType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[ft]; !ok {
		r.logger.Warn("framework adapter is not registered", "framework", string(ft))
		return false
	}
	delete(r.adapters, ft)
	r.logger.Info("unregistered framework adapter", "framework", string(ft))
	return true
}

// GetAdapter returns the adapter registered for ft.
func (r *Registry) GetAdapter(ft model.FrameworkType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.adapters[ft]
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// GetAllAdapters returns every registered adapter sorted by type.
func (r *Registry) GetAllAdapters() []Adapter {
	entries := r.sorted()
	out := make([]Adapter, len(entries))
	for i, e := range entries {
		out[i] = e.adapter
	}
	return out
}

// GetSupportedFrameworks returns the registered types in sorted order.
func (r *Registry) GetSupportedFrameworks() []model.FrameworkType {
	entries := r.sorted()
	out := make([]model.FrameworkType, len(entries))
	for i, e := range entries {
		out[i] = e.adapter.Type()
	}
	return out
}

// GetFrameworkMetadata returns a copy of the metadata registered for ft.
func (r *Registry) GetFrameworkMetadata(ft model.FrameworkType) (model.FrameworkMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.adapters[ft]
	if !ok {
		return model.FrameworkMetadata{}, false
	}
	return e.meta.Clone(), true
}

// GetAllFrameworkMetadata returns the metadata of every adapter sorted by
// type.
func (r *Registry) GetAllFrameworkMetadata() []model.FrameworkMetadata {
	entries := r.sorted()
	out := make([]model.FrameworkMetadata, len(entries))
	for i, e := range entries {
		out[i] = e.meta.Clone()
	}
	return out
}

// IsFrameworkSupported reports whether an adapter is registered for ft.
func (r *Registry) IsFrameworkSupported(ft model.FrameworkType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[ft]
	return ok
}

// ValidateFrameworkSupport returns ErrUnsupportedFramework if ft was never
// registered.
func (r *Registry) ValidateFrameworkSupport(ft model.FrameworkType) error {
	if !r.IsFrameworkSupported(ft) {
		return errors.Wrapf(errors.ErrUnsupportedFramework, "framework %q is not supported or registered", ft)
	}
	return nil
}

// InitializeAllFrameworks initializes every adapter concurrently. Failures
// do not stop the others: a failed adapter stays registered in the degraded
// state, and the failures are returned aggregated alongside the report.
func (r *Registry) InitializeAllFrameworks(ctx context.Context, configs map[model.FrameworkType]Config) (InitReport, error) {
	entries := r.sorted()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			ft := e.adapter.Type()
			err := e.adapter.Initialize(ctx, configs[ft])

			r.setState(e, StateReady, err)
			if err != nil {
				r.logger.Error("failed to initialize framework", "framework", string(ft), "error", err)
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "initialize %s", ft))
				mu.Unlock()
				return
			}
			r.logger.Info("initialized framework", "framework", string(ft))
		}(e)
	}
	wg.Wait()

	var report InitReport
	for _, e := range entries {
		r.mu.RLock()
		state := e.state
		r.mu.RUnlock()
		if state == StateReady {
			report.Ready = append(report.Ready, e.adapter.Type())
		} else {
			report.Degraded = append(report.Degraded, e.adapter.Type())
		}
	}
	return report, result.ErrorOrNil()
}

// ShutdownAllFrameworks shuts down every adapter concurrently and returns
// the aggregated failures.
func (r *Registry) ShutdownAllFrameworks(ctx context.Context) error {
	entries := r.sorted()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			ft := e.adapter.Type()
			err := e.adapter.Shutdown(ctx)

			r.setState(e, StateStopped, err)
			if err != nil {
				r.logger.Error("failed to shut down framework", "framework", string(ft), "error", err)
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "shutdown %s", ft))
				mu.Unlock()
				return
			}
			r.logger.Info("shut down framework", "framework", string(ft))
		}(e)
	}
	wg.Wait()

	return result.ErrorOrNil()
}

// Status returns the lifecycle state of every adapter sorted by type.
func (r *Registry) Status() []AdapterStatus {
	entries := r.sorted()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AdapterStatus, len(entries))
	for i, e := range entries {
		out[i] = AdapterStatus{
			Framework: e.adapter.Type(),
			Version:   e.meta.Version,
			State:     e.state,
		}
		if e.lastErr != nil {
			out[i].Error = e.lastErr.Error()
		}
	}
	return out
}

// setState records the outcome of a lifecycle call. A failed call leaves
// the adapter degraded.
func (r *Registry) setState(e *entry, ok State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		e.state = StateDegraded
		e.lastErr = err
		return
	}
	e.state = ok
	e.lastErr = nil
}

func (r *Registry) sorted() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.adapters))
	for _, e := range r.adapters {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].adapter.Type() < entries[j].adapter.Type()
	})
	return entries
}
