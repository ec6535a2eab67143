// Where: internal/strategy/distributed.go
// What: Placeholder for the multi-machine deployment strategy.
// Why: The strategy is selectable so configs can declare it ahead of
//      support landing; every operation reports it is not implemented.
package strategy

import (
	"context"
	"fmt"

	"github.com/opsmith-dev/opsmith/internal/config"
)

// DistributedName is the registry key of the multi-machine strategy.
const DistributedName = "distributed"

// Distributed is not implemented yet.
type Distributed struct{}

// NewDistributed builds the multi-machine strategy placeholder.
func NewDistributed(Dependencies) Strategy {
	return &Distributed{}
}

func (d *Distributed) Name() string { return DistributedName }

func (d *Distributed) Deploy(context.Context, *config.DeploymentEnvironment) error {
	return d.notImplemented()
}

func (d *Distributed) Release(context.Context, *config.DeploymentEnvironment) error {
	return d.notImplemented()
}

func (d *Distributed) Destroy(context.Context, *config.DeploymentEnvironment) error {
	return d.notImplemented()
}

func (d *Distributed) notImplemented() error {
	return fmt.Errorf("the %s strategy is not implemented yet; use %s", DistributedName, MonolithicName)
}
