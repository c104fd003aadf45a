package cwlog

import (
	"context"

	"github.com/advdv/reqlog"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into handler constructors via fx instead of pulling from context.
//
// Example:
//
//	type Handlers struct {
//	    rt *cwlog.Runtime[Env]
//	}
//
//	func (h *Handlers) Export(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
//	    fields, err := h.rt.SensitiveFields(ctx)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env     E
	handler *reqlog.BatchHandler
	policy  *reqlog.FieldPolicy
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, handler *reqlog.BatchHandler, policy *reqlog.FieldPolicy) *Runtime[E] {
	return &Runtime[E]{env: env, handler: handler, policy: policy}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Flush delivers the records buffered so far. A failed delivery is returned as a [*reqlog.DeliveryError].
func (r *Runtime[E]) Flush(ctx context.Context) error {
	return r.handler.Flush(ctx)
}

// LogGroup returns the log group records are shipped to.
func (r *Runtime[E]) LogGroup() string {
	return r.handler.LogGroup()
}

// SensitiveFields returns the names of the fields whose values are masked by the entity change logger.
func (r *Runtime[E]) SensitiveFields(ctx context.Context) ([]string, error) {
	return r.policy.Fields(ctx)
}
