package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Dispatcher tries its engines one after another until one succeeds.
// Engines never run concurrently: a page fetch is a single blocking call
// from the caller's point of view. When a host has a remembered engine,
// that engine is tried first.
type Dispatcher struct {
	engines []Engine
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. Engines are tried in the given order.
// memory may be nil.
func NewDispatcher(engines []Engine, memory *DomainMemory) *Dispatcher {
	return &Dispatcher{engines: engines, memory: memory}
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Fetch implements Engine.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}

	host := extractDomain(req.URL)
	var errs []error
	for _, eng := range d.order(host) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := eng.Fetch(ctx, req)
		if err == nil {
			if d.memory != nil {
				d.memory.Set(host, eng.Name())
			}
			return result, nil
		}
		slog.Debug("engine failed", "engine", eng.Name(), "url", req.URL, "error", err)
		if d.memory != nil && d.memory.Get(host) == eng.Name() {
			d.memory.Delete(host)
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("dispatcher: all engines failed for %s: %w", req.URL, errors.Join(errs...))
}

// order returns the engines with the remembered one for host moved first.
func (d *Dispatcher) order(host string) []Engine {
	if d.memory == nil {
		return d.engines
	}
	remembered := d.memory.Get(host)
	if remembered == "" {
		return d.engines
	}
	ordered := make([]Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		if eng.Name() == remembered {
			ordered = append(ordered, eng)
		}
	}
	for _, eng := range d.engines {
		if eng.Name() != remembered {
			ordered = append(ordered, eng)
		}
	}
	return ordered
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
