package adapters

import (
	"github.com/cipherroom/gateway/internal/domain/dispatch"
)

// Registry is the concrete dispatch.Registry: a (service, action) ->
// Adapter lookup table assembled at startup from whichever adapters
// the deployment has credentials for.
type Registry struct {
	adapters map[string]map[string]dispatch.Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]map[string]dispatch.Adapter)}
}

// Register binds one (service, action) pair to adapter. A later call
// for the same pair overwrites the earlier binding. A connector with
// several actions registers one adapter per action (e.g. WhatsApp's
// send_whatsapp/send_invoice/get_templates are three bound adapters
// from WhatsAppAdapter.Adapter sharing one connector).
func (r *Registry) Register(service, action string, adapter dispatch.Adapter) *Registry {
	byAction, ok := r.adapters[service]
	if !ok {
		byAction = make(map[string]dispatch.Adapter)
		r.adapters[service] = byAction
	}
	byAction[action] = adapter
	return r
}

func (r *Registry) Lookup(service, action string) (dispatch.Adapter, bool) {
	byAction, ok := r.adapters[service]
	if !ok {
		return nil, false
	}
	adapter, ok := byAction[action]
	return adapter, ok
}
