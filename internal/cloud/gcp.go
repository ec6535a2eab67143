// Where: internal/cloud/gcp.go
// What: GCP provider implementation on the gcloud CLI.
// Why: Parse `gcloud ... --format=json` instead of carrying a second
//      cloud SDK; the CLI is already a required collaborator.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/opsmith-dev/opsmith/internal/executor"
	"github.com/opsmith-dev/opsmith/internal/meta"
)

// gcpRegionNames maps region codes to city names.
var gcpRegionNames = map[string]string{
	"africa-south1":           "Johannesburg",
	"asia-east1":              "Taiwan",
	"asia-east2":              "Hong Kong",
	"asia-northeast1":         "Tokyo",
	"asia-northeast2":         "Osaka",
	"asia-northeast3":         "Seoul",
	"asia-south1":             "Mumbai",
	"asia-south2":             "Delhi",
	"asia-southeast1":         "Singapore",
	"asia-southeast2":         "Jakarta",
	"australia-southeast1":    "Sydney",
	"australia-southeast2":    "Melbourne",
	"europe-central2":         "Warsaw",
	"europe-north1":           "Finland",
	"europe-southwest1":       "Madrid",
	"europe-west1":            "Belgium",
	"europe-west2":            "London",
	"europe-west3":            "Frankfurt",
	"europe-west4":            "Netherlands",
	"europe-west6":            "Zurich",
	"europe-west8":            "Milan",
	"europe-west9":            "Paris",
	"me-central1":             "Doha",
	"me-west1":                "Tel Aviv",
	"northamerica-northeast1": "Montreal",
	"northamerica-northeast2": "Toronto",
	"southamerica-east1":      "Sao Paulo",
	"southamerica-west1":      "Santiago",
	"us-central1":             "Iowa",
	"us-east1":                "South Carolina",
	"us-east4":                "Northern Virginia",
	"us-east5":                "Columbus",
	"us-south1":               "Dallas",
	"us-west1":                "Oregon",
	"us-west2":                "Los Angeles",
	"us-west3":                "Salt Lake City",
	"us-west4":                "Las Vegas",
}

// GcloudRunner executes gcloud invocations. Satisfied by *executor.Runner.
type GcloudRunner interface {
	Run(ctx context.Context, env map[string]string, args ...string) (string, error)
}

// GCPProvider implements Provider for Google Cloud Platform.
type GCPProvider struct {
	runner GcloudRunner
}

// NewGCPProvider creates a GCP provider. Passing nil uses a quiet
// gcloud runner in the current directory.
func NewGCPProvider(runner GcloudRunner) *GCPProvider {
	if runner == nil {
		runner = &executor.Runner{
			Tool:       "Google Cloud SDK",
			Executable: "gcloud",
			InstallURL: meta.GCPCredentialsHelpURL,
		}
	}
	return &GCPProvider{runner: runner}
}

func (p *GCPProvider) Name() string { return "GCP" }

func (p *GCPProvider) SSHUser() string { return "ubuntu" }

// AccountDetails reads the active project from gcloud configuration.
func (p *GCPProvider) AccountDetails(ctx context.Context) (AccountDetails, error) {
	out, err := p.runner.Run(ctx, nil, "config", "get-value", "project", "--quiet")
	if err != nil {
		return AccountDetails{}, &CredentialsError{
			Provider: "GCP",
			Message:  err.Error(),
			HelpURL:  meta.GCPCredentialsHelpURL,
		}
	}
	project := strings.TrimSpace(out)
	if project == "" || project == "(unset)" {
		return AccountDetails{}, &CredentialsError{
			Provider: "GCP",
			Message:  "no active project; run 'gcloud config set project <id>'",
			HelpURL:  meta.GCPCredentialsHelpURL,
		}
	}
	return AccountDetails{Provider: "GCP", Identifier: project}, nil
}

// Regions lists compute regions available to the project.
func (p *GCPProvider) Regions(ctx context.Context) ([]Region, error) {
	out, err := p.runner.Run(ctx, nil, "compute", "regions", "list", "--format=json")
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	var raw []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse gcloud regions output: %w", err)
	}

	regions := make([]Region, 0, len(raw))
	for _, r := range raw {
		regions = append(regions, Region{Code: r.Name, Description: gcpRegionNames[r.Name]})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Code < regions[j].Code })
	return regions, nil
}

// InstanceTypes lists machine types in the region's first zone.
// Architecture is inferred from the machine family naming convention:
// t2a and c4a families are Ampere arm64, everything else is x86_64.
func (p *GCPProvider) InstanceTypes(ctx context.Context, region string) ([]InstanceType, error) {
	zone := region + "-a"
	out, err := p.runner.Run(ctx, nil,
		"compute", "machine-types", "list",
		"--filter=zone:("+zone+")", "--format=json")
	if err != nil {
		return nil, fmt.Errorf("list machine types: %w", err)
	}

	var raw []struct {
		Name       string `json:"name"`
		GuestCpus  int    `json:"guestCpus"`
		MemoryMb   int    `json:"memoryMb"`
		Deprecated struct {
			State string `json:"state"`
		} `json:"deprecated"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse gcloud machine types output: %w", err)
	}

	types := make([]InstanceType, 0, len(raw))
	for _, m := range raw {
		types = append(types, InstanceType{
			Name:         m.Name,
			VCPU:         m.GuestCpus,
			RAMGB:        float64(m.MemoryMb) / 1024,
			Architecture: gcpArchitecture(m.Name),
			Deprecated:   m.Deprecated.State != "",
		})
	}
	return types, nil
}

// RegistryCredentials returns an OAuth access token accepted by
// Artifact Registry as a docker password.
func (p *GCPProvider) RegistryCredentials(ctx context.Context, _ string) (string, string, error) {
	out, err := p.runner.Run(ctx, nil, "auth", "print-access-token")
	if err != nil {
		return "", "", &CredentialsError{
			Provider: "GCP",
			Message:  err.Error(),
			HelpURL:  meta.GCPCredentialsHelpURL,
		}
	}
	return "oauth2accesstoken", strings.TrimSpace(out), nil
}

func gcpArchitecture(name string) Architecture {
	for _, family := range []string{"t2a-", "c4a-"} {
		if strings.HasPrefix(name, family) {
			return ArchARM64
		}
	}
	return ArchX8664
}
