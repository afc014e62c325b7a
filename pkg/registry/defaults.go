package registry

import (
	"github.com/dukex/workgraph/pkg/actions/httprequest"
	logaction "github.com/dukex/workgraph/pkg/actions/log"
	"github.com/dukex/workgraph/pkg/actions/transform"
)

// RegisterDefaultActions registers all built-in action factories with the registry.
// config is keyed by action id.
func (r *Registry) RegisterDefaultActions(config map[string]map[string]any) {
	r.RegisterAction(logaction.NewActionFactory(), config["log"])
	r.RegisterAction(transform.NewActionFactory(), config["transform"])
	r.RegisterAction(httprequest.NewActionFactory(), config["http_request"])
}
