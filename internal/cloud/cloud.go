// Where: internal/cloud/cloud.go
// What: Cloud provider capability set and instance selection policy.
// Why: Keep vendor differences behind one small interface.
package cloud

import (
	"context"
	"fmt"
	"sort"
)

// Architecture is the CPU architecture of an instance type.
type Architecture string

const (
	ArchX8664 Architecture = "x86_64"
	ArchARM64 Architecture = "arm64"
)

// AccountDetails identifies the authenticated cloud account.
type AccountDetails struct {
	Provider   string
	Identifier string // AWS account ID or GCP project ID
}

// Region is a cloud region with a human-readable description.
type Region struct {
	Code        string
	Description string
}

// Display returns the label shown in selection prompts.
func (r Region) Display() string {
	if r.Description == "" {
		return r.Code
	}
	return fmt.Sprintf("%s (%s)", r.Description, r.Code)
}

// InstanceType describes a compute offering.
type InstanceType struct {
	Name         string
	VCPU         int
	RAMGB        float64
	Architecture Architecture
	Deprecated   bool
}

// MachineFloor is the minimum acceptable machine size.
type MachineFloor struct {
	CPU   int
	RAMGB float64
}

// Provider is the capability set required from each cloud vendor.
type Provider interface {
	Name() string
	AccountDetails(ctx context.Context) (AccountDetails, error)
	Regions(ctx context.Context) ([]Region, error)
	InstanceTypes(ctx context.Context, region string) ([]InstanceType, error)
	// RegistryCredentials returns a username/password pair accepted by
	// the provider's container registry for docker push.
	RegistryCredentials(ctx context.Context, region string) (username, password string, err error)
	// SSHUser is the login user baked into the provider's VM images.
	SSHUser() string
}

// CredentialsError indicates the provider could not authenticate or
// identify the account. It is fatal and carries a help link.
type CredentialsError struct {
	Provider string
	Message  string
	HelpURL  string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s credentials error: %s\nPlease ensure your credentials are set up correctly. For more information, visit: %s",
		e.Provider, e.Message, e.HelpURL)
}

// ChooseInstanceType picks the cheapest instance that fits: the minimum
// (vCPU, RAM) lexicographic tuple among non-deprecated candidates with
// vCPU >= floor.CPU and RAM >= floor.RAMGB.
func ChooseInstanceType(candidates []InstanceType, floor MachineFloor) (InstanceType, error) {
	fitting := make([]InstanceType, 0, len(candidates))
	for _, it := range candidates {
		if it.Deprecated {
			continue
		}
		if it.VCPU >= floor.CPU && it.RAMGB >= floor.RAMGB {
			fitting = append(fitting, it)
		}
	}
	if len(fitting) == 0 {
		return InstanceType{}, fmt.Errorf("no instance type satisfies %d vCPU / %.1f GB RAM", floor.CPU, floor.RAMGB)
	}

	sort.Slice(fitting, func(i, j int) bool {
		if fitting[i].VCPU != fitting[j].VCPU {
			return fitting[i].VCPU < fitting[j].VCPU
		}
		if fitting[i].RAMGB != fitting[j].RAMGB {
			return fitting[i].RAMGB < fitting[j].RAMGB
		}
		return fitting[i].Name < fitting[j].Name
	})
	return fitting[0], nil
}
