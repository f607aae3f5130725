package static

import (
	"sort"

	"github.com/connect-dcc/datadestruction/pkg/config"
	"github.com/connect-dcc/datadestruction/pkg/errs"
	"github.com/connect-dcc/datadestruction/pkg/service"
)

var _ service.TargetRegistry = &targetRegistry{}

// targetRegistry is the closed protocol allow-list. Only protocol names
// resolvable here may select a deletion target, so a request can never
// name an arbitrary dataset or table.
type targetRegistry struct {
	targets   map[string]*service.Target
	protocols []string
}

func (r *targetRegistry) Resolve(protocol string) (*service.Target, error) {
	const op errs.Op = "targetRegistry.Resolve"

	target, ok := r.targets[protocol]
	if !ok {
		return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("protocol"), &service.UnsupportedProtocolError{
			Protocol: protocol,
			Allowed:  r.protocols,
		})
	}

	return target, nil
}

func (r *targetRegistry) Protocols() []string {
	protocols := make([]string, len(r.protocols))
	copy(protocols, r.protocols)

	return protocols
}

// NewTargetRegistry builds the registry from configuration. The set is
// fixed for the lifetime of the process.
func NewTargetRegistry(protocols []config.Protocol) (*targetRegistry, error) {
	const op errs.Op = "static.NewTargetRegistry"

	targets := map[string]*service.Target{}
	names := make([]string, 0, len(protocols))

	for _, p := range protocols {
		if _, ok := targets[p.Name]; ok {
			return nil, errs.E(errs.Invalid, op, errs.Parameter(p.Name), "protocol registered twice")
		}

		targets[p.Name] = &service.Target{
			Protocol:  p.Name,
			Dataset:   p.Dataset,
			Table:     p.Table,
			KeyColumn: p.KeyColumn,
			Action:    service.Action(p.Action),
		}
		names = append(names, p.Name)
	}

	sort.Strings(names)

	return &targetRegistry{
		targets:   targets,
		protocols: names,
	}, nil
}

// DefaultProtocols is the compiled-in registry used when the configuration
// does not carry its own protocol set.
func DefaultProtocols() []config.Protocol {
	return []config.Protocol{
		{
			Name:      "roi_physical_activity",
			Dataset:   "ForTestingOnly",
			Table:     "physical_activity",
			KeyColumn: "Connect_ID",
			Action:    service.ActionDeleteRows.String(),
		},
	}
}
