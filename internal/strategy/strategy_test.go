// Where: internal/strategy/strategy_test.go
// What: Tests for the generation loop protocol and the monolithic
//       deploy/release/destroy lifecycle.
package strategy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/config"
	"github.com/opsmith-dev/opsmith/internal/envstate"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/ui"
	"github.com/opsmith-dev/opsmith/internal/validator"
)

type fakeOracle struct {
	results  []oracle.Result
	requests []oracle.Request
	verdict  oracle.LogVerdict
}

func (f *fakeOracle) Generate(_ context.Context, req oracle.Request, history *oracle.History) (oracle.Result, error) {
	f.requests = append(f.requests, req)
	history.Append("user", req.Instruction)
	if len(f.results) == 0 {
		return oracle.Result{}, errors.New("no scripted result")
	}
	res := f.results[0]
	f.results = f.results[1:]
	history.Append("model", res.Artifact.Content)
	return res, nil
}

func (f *fakeOracle) ClassifyLogs(context.Context, string, string) (oracle.LogVerdict, error) {
	return f.verdict, nil
}

func testConsole() *ui.Console { return ui.New(io.Discard) }

func TestGenerateLoop(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts first valid artifact", func(t *testing.T) {
		client := &fakeOracle{results: []oracle.Result{{Artifact: oracle.Artifact{Content: "FROM a"}}}}
		artifact, err := generateLoop(ctx, client, testConsole(), oracle.KindDockerfile, "svc", 5,
			func(context.Context, oracle.Artifact) (validator.Result, error) {
				return validator.Result{OK: true}, nil
			})
		if err != nil {
			t.Fatalf("generateLoop: %v", err)
		}
		if artifact.Content != "FROM a" {
			t.Errorf("artifact = %q", artifact.Content)
		}
	})

	t.Run("feeds failure back into next round", func(t *testing.T) {
		client := &fakeOracle{results: []oracle.Result{
			{Artifact: oracle.Artifact{Content: "v1"}},
			{Artifact: oracle.Artifact{Content: "v2"}},
		}}
		calls := 0
		_, err := generateLoop(ctx, client, testConsole(), oracle.KindDockerfile, "svc", 5,
			func(_ context.Context, artifact oracle.Artifact) (validator.Result, error) {
				calls++
				if artifact.Content == "v1" {
					return validator.Result{Feedback: "missing port"}, nil
				}
				return validator.Result{OK: true}, nil
			})
		if err != nil {
			t.Fatalf("generateLoop: %v", err)
		}
		if calls != 2 {
			t.Errorf("check calls = %d, want 2", calls)
		}

		second := client.requests[1]
		if second.Feedback != "missing port" {
			t.Errorf("second round feedback = %q", second.Feedback)
		}
		if second.Prior == nil || second.Prior.Content != "v1" {
			t.Errorf("second round prior = %+v", second.Prior)
		}
	})

	t.Run("never trusts finality on the first attempt", func(t *testing.T) {
		client := &fakeOracle{results: []oracle.Result{
			{Artifact: oracle.Artifact{Content: "v1"}, Final: true},
			{Artifact: oracle.Artifact{Content: "v2"}},
		}}
		checked := 0
		artifact, err := generateLoop(ctx, client, testConsole(), oracle.KindCompose, "svc", 3,
			func(_ context.Context, artifact oracle.Artifact) (validator.Result, error) {
				checked++
				return validator.Result{OK: artifact.Content == "v2", Feedback: "broken"}, nil
			})
		if err != nil {
			t.Fatalf("generateLoop: %v", err)
		}
		if checked != 2 {
			t.Errorf("check calls = %d; a first-attempt finality claim must still be validated", checked)
		}
		if artifact.Content != "v2" {
			t.Errorf("artifact = %q", artifact.Content)
		}
	})

	t.Run("validates a post-feedback finality claim before accepting it", func(t *testing.T) {
		client := &fakeOracle{results: []oracle.Result{
			{Artifact: oracle.Artifact{Content: "services: v1"}},
			{Artifact: oracle.Artifact{Content: "services: v2"}, Final: true},
		}}
		var validated []string
		artifact, err := generateLoop(ctx, client, testConsole(), oracle.KindCompose, "svc", 3,
			func(_ context.Context, artifact oracle.Artifact) (validator.Result, error) {
				validated = append(validated, artifact.Content)
				return validator.Result{Feedback: "environment is broken"}, nil
			})
		if err != nil {
			t.Fatalf("generateLoop: %v", err)
		}
		// Compose validation deploys the candidate, so the accepted
		// artifact must itself go through a validation round; otherwise
		// the host keeps running the previous attempt's stack.
		if len(validated) != 2 || validated[1] != "services: v2" {
			t.Errorf("validated = %v; the accepted artifact was never validated/deployed", validated)
		}
		if artifact.Content != "services: v2" {
			t.Errorf("artifact = %q", artifact.Content)
		}
	})

	t.Run("exhausts the attempt budget", func(t *testing.T) {
		client := &fakeOracle{results: []oracle.Result{
			{Artifact: oracle.Artifact{Content: "v1"}},
			{Artifact: oracle.Artifact{Content: "v2"}},
			{Artifact: oracle.Artifact{Content: "v3"}},
		}}
		_, err := generateLoop(ctx, client, testConsole(), oracle.KindCompose, "svc", 3,
			func(context.Context, oracle.Artifact) (validator.Result, error) {
				return validator.Result{Feedback: "still broken"}, nil
			})

		var exhausted *ExhaustedAttemptsError
		if !errors.As(err, &exhausted) {
			t.Fatalf("err = %v, want *ExhaustedAttemptsError", err)
		}
		if exhausted.Attempts != 3 || exhausted.LastFeedback != "still broken" {
			t.Errorf("exhausted = %+v", exhausted)
		}
	})
}

// --- monolithic lifecycle fakes ---

type fakeProvider struct {
	instanceTypes []cloud.InstanceType
	credsCalls    int
}

func (f *fakeProvider) Name() string { return "AWS" }
func (f *fakeProvider) AccountDetails(context.Context) (cloud.AccountDetails, error) {
	return cloud.AccountDetails{Provider: "AWS", Identifier: "123456789012"}, nil
}
func (f *fakeProvider) Regions(context.Context) ([]cloud.Region, error) {
	return []cloud.Region{{Code: "us-east-1"}}, nil
}
func (f *fakeProvider) InstanceTypes(context.Context, string) ([]cloud.InstanceType, error) {
	return f.instanceTypes, nil
}
func (f *fakeProvider) RegistryCredentials(context.Context, string) (string, string, error) {
	f.credsCalls++
	return "AWS", "token", nil
}
func (f *fakeProvider) SSHUser() string { return "ubuntu" }

type fakeTerraform struct {
	dir      string
	log      *[]string
	outputs  map[string]string
	applied  []map[string]string
	destroys int
}

func (f *fakeTerraform) Apply(_ context.Context, vars map[string]string) (map[string]string, error) {
	f.applied = append(f.applied, vars)
	*f.log = append(*f.log, "apply:"+filepath.Base(f.dir))
	return f.outputs, nil
}

func (f *fakeTerraform) Destroy(context.Context, map[string]string) error {
	f.destroys++
	*f.log = append(*f.log, "destroy:"+filepath.Base(f.dir))
	return nil
}

type fakePrompter struct{}

func (fakePrompter) Input(_, placeholder string) (string, error) { return placeholder, nil }
func (fakePrompter) Select(_ string, options []interaction.SelectOption) (string, error) {
	return options[0].Value, nil
}
func (fakePrompter) Confirm(string) (bool, error) { return true, nil }

type fakeImages struct {
	built     []string
	platforms []string
	pushed    []string
}

func (f *fakeImages) BuildImage(_ context.Context, _, _, tag, platform string) error {
	f.built = append(f.built, tag)
	f.platforms = append(f.platforms, platform)
	return nil
}

func (f *fakeImages) TagAndPush(_ context.Context, _, remoteRef, _, _ string) error {
	f.pushed = append(f.pushed, remoteRef)
	return nil
}

type passDockerfiles struct{ validated []string }

func (p *passDockerfiles) Validate(_ context.Context, slug, _, _ string, _ []string) (validator.Result, error) {
	p.validated = append(p.validated, slug)
	return validator.Result{OK: true}, nil
}

type passCompose struct{ deployments []validator.Deployment }

func (p *passCompose) Validate(_ context.Context, dep validator.Deployment) (validator.Result, error) {
	p.deployments = append(p.deployments, dep)
	return validator.Result{OK: true}, nil
}

type fakeAnsible struct{ runs []string }

func (f *fakeAnsible) RunPlaybook(_ context.Context, playbook, host, _ string, _ map[string]any) (map[string]string, error) {
	f.runs = append(f.runs, host+" "+playbook)
	return map[string]string{}, nil
}

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"templates/terraform/container_registry/aws/main.tf": &fstest.MapFile{Data: []byte("# registry")},
		"templates/terraform/virtual_machine/aws/main.tf":    &fstest.MapFile{Data: []byte("# vm")},
		"templates/ansible/service_deploy/deploy.yml":        &fstest.MapFile{Data: []byte("- hosts: all")},
	}
}

func testDeps(t *testing.T) (Dependencies, *fakeImages, *passCompose, *fakeAnsible, *[]string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".ssh"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519.pub"), []byte("ssh-ed25519 AAAA test"), 0o600); err != nil {
		t.Fatal(err)
	}

	repoRoot := t.TempDir()
	store := config.NewStore(repoRoot)
	cfg := &config.DeploymentConfig{
		AppName:     "Shop Cart",
		AppNameSlug: "shop_cart",
		CloudProvider: config.CloudProviderDetail{
			Name: "AWS", Identifier: "123456789012",
		},
		Services: []config.ServiceInfo{
			{Language: "python", ServiceType: config.ServiceBackendAPI, ServicePort: 8000,
				EnvVars: []config.EnvVarConfig{{Key: "SECRET_KEY", IsSecret: true}}},
		},
		InfraDeps: []config.InfrastructureDependency{
			{DependencyType: config.DependencyDatabase, Provider: config.ProviderPostgreSQL},
		},
		Environments: []config.DeploymentEnvironment{
			{Name: "staging", Region: "us-east-1", Strategy: MonolithicName},
		},
	}

	tfLog := &[]string{}
	images := &fakeImages{}
	compose := &passCompose{}
	ansible := &fakeAnsible{}

	deps := Dependencies{
		Console:  testConsole(),
		Prompter: fakePrompter{},
		Store:    store,
		Config:   cfg,
		Provider: &fakeProvider{instanceTypes: []cloud.InstanceType{
			{Name: "t3.medium", VCPU: 2, RAMGB: 4, Architecture: cloud.ArchX8664},
			{Name: "t3.large", VCPU: 2, RAMGB: 8, Architecture: cloud.ArchX8664},
		}},
		Oracle: &fakeOracle{results: []oracle.Result{
			{Artifact: oracle.Artifact{Content: "FROM python:3.12"}},
			{Artifact: oracle.Artifact{Content: "services:\n  api: {}"}},
		}},
		Images:      images,
		Dockerfiles: &passDockerfiles{},
		Compose:     compose,
		Ansible:     ansible,
		NewTerraform: func(workingDir string) (Terraform, error) {
			outputs := map[string]string{"public_ip": "203.0.113.10"}
			if strings.Contains(workingDir, registryDirName) {
				outputs = map[string]string{"registry_url": "123.dkr.ecr.us-east-1.amazonaws.com/shop_cart"}
			}
			return &fakeTerraform{dir: workingDir, log: tfLog, outputs: outputs}, nil
		},
		Templates: testTemplates(),
		RepoRoot:  repoRoot,
	}
	return deps, images, compose, ansible, tfLog
}

func TestMonolithicDeploy(t *testing.T) {
	deps, images, compose, _, tfLog := testDeps(t)
	m := NewMonolithic(deps)
	env := &deps.Config.Environments[0]

	if err := m.Deploy(context.Background(), env); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if len(*tfLog) != 2 || (*tfLog)[0] != "apply:container_registry" || (*tfLog)[1] != "apply:virtual_machine" {
		t.Errorf("terraform order = %v", *tfLog)
	}

	wantRef := "123.dkr.ecr.us-east-1.amazonaws.com/shop_cart:python_backend_api-latest"
	if len(images.pushed) != 1 || images.pushed[0] != wantRef {
		t.Errorf("pushed = %v, want %s", images.pushed, wantRef)
	}

	state, err := envstate.Load(deps.Store.StatePath("staging"))
	if err != nil {
		t.Fatalf("state not saved: %v", err)
	}
	if state.VirtualMachine.PublicIP != "203.0.113.10" {
		t.Errorf("public ip = %s", state.VirtualMachine.PublicIP)
	}
	if state.VirtualMachine.InstanceType != "t3.medium" {
		t.Errorf("instance type = %s, want the smallest fitting", state.VirtualMachine.InstanceType)
	}
	if state.VirtualMachine.Architecture != string(cloud.ArchX8664) {
		t.Errorf("architecture = %s", state.VirtualMachine.Architecture)
	}
	if len(images.platforms) != 1 || images.platforms[0] != "linux/amd64" {
		t.Errorf("build platforms = %v, want linux/amd64", images.platforms)
	}

	dockerfile, err := os.ReadFile(filepath.Join(deps.Store.ImagesDir("python_backend_api"), "Dockerfile"))
	if err != nil {
		t.Fatalf("dockerfile not saved: %v", err)
	}
	if string(dockerfile) != "FROM python:3.12" {
		t.Errorf("dockerfile = %q", dockerfile)
	}

	composeFile, err := os.ReadFile(filepath.Join(deps.Store.EnvironmentDir("staging"), composeFilename))
	if err != nil {
		t.Fatalf("compose not saved: %v", err)
	}
	if !strings.Contains(string(composeFile), "api") {
		t.Errorf("compose = %q", composeFile)
	}

	if len(compose.deployments) != 1 {
		t.Fatalf("compose deployments = %d", len(compose.deployments))
	}
	dep := compose.deployments[0]
	if dep.Host != "203.0.113.10" || dep.User != "ubuntu" {
		t.Errorf("deployment target = %s@%s", dep.User, dep.Host)
	}
	if dep.ExtraVars["registry_username"] != "AWS" {
		t.Errorf("registry auth missing: %v", dep.ExtraVars)
	}
}

func TestMonolithicDeployPreflight(t *testing.T) {
	t.Run("no services", func(t *testing.T) {
		deps, _, _, _, tfLog := testDeps(t)
		deps.Config.Services = nil
		m := NewMonolithic(deps)

		err := m.Deploy(context.Background(), &deps.Config.Environments[0])
		var preflight *PreflightError
		if !errors.As(err, &preflight) {
			t.Fatalf("err = %v, want *PreflightError", err)
		}
		if len(*tfLog) != 0 {
			t.Errorf("terraform ran despite preflight rejection: %v", *tfLog)
		}
	})

	t.Run("public service without port", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		deps.Config.Services[0].ServicePort = 0
		m := NewMonolithic(deps)

		err := m.Deploy(context.Background(), &deps.Config.Environments[0])
		var preflight *PreflightError
		if !errors.As(err, &preflight) {
			t.Fatalf("err = %v, want *PreflightError", err)
		}
	})
}

func TestMonolithicDeployResolvesUserChoice(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	deps.Config.InfraDeps[0].Provider = config.ProviderUserChoice
	m := NewMonolithic(deps)

	if err := m.Deploy(context.Background(), &deps.Config.Environments[0]); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	// The prompter picks the first compatible provider, and the choice
	// is persisted.
	if deps.Config.InfraDeps[0].Provider != config.ProviderPostgreSQL {
		t.Errorf("provider = %s", deps.Config.InfraDeps[0].Provider)
	}
	saved, err := deps.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.InfraDeps[0].Provider != config.ProviderPostgreSQL {
		t.Errorf("saved provider = %s", saved.InfraDeps[0].Provider)
	}
}

func TestMonolithicRelease(t *testing.T) {
	deps, images, _, ansible, _ := testDeps(t)
	m := NewMonolithic(deps)
	env := &deps.Config.Environments[0]

	t.Run("requires provisioned state", func(t *testing.T) {
		err := m.Release(context.Background(), env)
		var notProvisioned *envstate.NotProvisionedError
		if !errors.As(err, &notProvisioned) {
			t.Fatalf("err = %v, want *NotProvisionedError", err)
		}
	})

	t.Run("rebuilds and redeploys without generation", func(t *testing.T) {
		if err := m.Deploy(context.Background(), env); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		images.built, images.pushed = nil, nil

		if err := m.Release(context.Background(), env); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if len(images.pushed) != 1 {
			t.Errorf("pushed = %v", images.pushed)
		}
		if len(ansible.runs) != 1 || !strings.HasPrefix(ansible.runs[0], "203.0.113.10 ") {
			t.Errorf("ansible runs = %v", ansible.runs)
		}
	})
}

// varRecordingTerraform captures the vars of the last Apply so tests
// can inspect what a specific component received.
type varRecordingTerraform struct {
	inner Terraform
	vars  *map[string]string
}

func (f *varRecordingTerraform) Apply(ctx context.Context, vars map[string]string) (map[string]string, error) {
	*f.vars = vars
	return f.inner.Apply(ctx, vars)
}

func (f *varRecordingTerraform) Destroy(ctx context.Context, vars map[string]string) error {
	return f.inner.Destroy(ctx, vars)
}

// An arm64 instance type must flow through to the docker build
// platform, the terraform architecture variable, and the saved state.
func TestMonolithicDeployArmMachine(t *testing.T) {
	deps, images, _, _, _ := testDeps(t)
	deps.Provider = &fakeProvider{instanceTypes: []cloud.InstanceType{
		{Name: "t4g.medium", VCPU: 2, RAMGB: 4, Architecture: cloud.ArchARM64},
		{Name: "t3.large", VCPU: 2, RAMGB: 8, Architecture: cloud.ArchX8664},
	}}

	var machineVars map[string]string
	base := deps.NewTerraform
	deps.NewTerraform = func(workingDir string) (Terraform, error) {
		tf, err := base(workingDir)
		if err != nil {
			return nil, err
		}
		if strings.Contains(workingDir, machineDirName) {
			return &varRecordingTerraform{inner: tf, vars: &machineVars}, nil
		}
		return tf, nil
	}

	m := NewMonolithic(deps)
	if err := m.Deploy(context.Background(), &deps.Config.Environments[0]); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if len(images.platforms) != 1 || images.platforms[0] != "linux/arm64" {
		t.Errorf("build platforms = %v, want linux/arm64", images.platforms)
	}
	if machineVars["instance_type"] != "t4g.medium" || machineVars["architecture"] != "arm64" {
		t.Errorf("machine vars = %v", machineVars)
	}

	state, err := envstate.Load(deps.Store.StatePath("staging"))
	if err != nil {
		t.Fatalf("state not saved: %v", err)
	}
	if state.VirtualMachine.Architecture != string(cloud.ArchARM64) {
		t.Errorf("architecture = %s", state.VirtualMachine.Architecture)
	}
}

func TestMonolithicDestroy(t *testing.T) {
	deps, _, _, _, tfLog := testDeps(t)
	m := NewMonolithic(deps)
	env := &deps.Config.Environments[0]

	if err := m.Deploy(context.Background(), env); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	*tfLog = nil

	if err := m.Destroy(context.Background(), env); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if len(*tfLog) != 2 || (*tfLog)[0] != "destroy:virtual_machine" || (*tfLog)[1] != "destroy:container_registry" {
		t.Errorf("destroy order = %v, want machine before registry", *tfLog)
	}

	if _, err := envstate.Load(deps.Store.StatePath("staging")); err == nil {
		t.Error("state should be deleted after destroy")
	}
	if _, err := os.Stat(deps.Store.EnvironmentDir("staging")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("environment dir should be removed, stat err = %v", err)
	}
}

func TestMonolithicDestroyRequiresProvisionedState(t *testing.T) {
	deps, _, _, _, tfLog := testDeps(t)
	m := NewMonolithic(deps)

	err := m.Destroy(context.Background(), &deps.Config.Environments[0])
	var notProvisioned *envstate.NotProvisionedError
	if !errors.As(err, &notProvisioned) {
		t.Fatalf("err = %v, want *NotProvisionedError", err)
	}
	if len(*tfLog) != 0 {
		t.Errorf("terraform ran against a never-provisioned environment: %v", *tfLog)
	}
}

func TestEnvironmentFileValues(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	deps.Config.Services[0].EnvVars = append(deps.Config.Services[0].EnvVars,
		config.EnvVarConfig{Key: "LOG_LEVEL", DefaultValue: "info"},
		config.EnvVarConfig{Key: "SENTRY_DSN"},
	)
	m := NewMonolithic(deps).(*Monolithic)

	envFile, err := m.environmentFile()
	if err != nil {
		t.Fatalf("environmentFile: %v", err)
	}
	if envFile["LOG_LEVEL"] != "info" {
		t.Errorf("LOG_LEVEL = %q, want the declared default", envFile["LOG_LEVEL"])
	}
	if envFile["SECRET_KEY"] == "" {
		t.Error("secret without a default should get a generated value")
	}
	if value, ok := envFile["SENTRY_DSN"]; !ok || value != "" {
		t.Errorf("SENTRY_DSN = %q, %v; want an empty placeholder", value, ok)
	}
}

func TestRegistryGetAndChoices(t *testing.T) {
	registry := NewRegistry()

	s, err := registry.Get(MonolithicName, Dependencies{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Name() != MonolithicName {
		t.Errorf("name = %s", s.Name())
	}

	if _, err := registry.Get("kubernetes", Dependencies{}); err == nil {
		t.Error("expected error for unknown strategy")
	}

	choices := registry.Choices()
	if len(choices) != 2 || choices[0].Value != DistributedName || choices[1].Value != MonolithicName {
		t.Errorf("choices = %+v", choices)
	}

	distributed, err := registry.Get(DistributedName, Dependencies{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := distributed.Deploy(context.Background(), nil); err == nil {
		t.Error("distributed deploy should report not implemented")
	}
}

func TestMonolithicPreflightRejectsMultiplePublicServices(t *testing.T) {
	deps, _, _, _, tfLog := testDeps(t)
	deps.Config.Services = append(deps.Config.Services, config.ServiceInfo{
		Language: "javascript", ServiceType: config.ServiceFullStack, ServicePort: 3000,
	})
	m := NewMonolithic(deps)

	err := m.Deploy(context.Background(), &deps.Config.Environments[0])
	var preflight *PreflightError
	if !errors.As(err, &preflight) {
		t.Fatalf("err = %v, want *PreflightError", err)
	}
	if len(*tfLog) != 0 {
		t.Errorf("terraform ran despite preflight rejection: %v", *tfLog)
	}
}

// Deploy saves state before compose rollout so a failed rollout is
// retryable with release.
func TestDeploySavesStateBeforeCompose(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	failing := &failingCompose{store: deps.Store}
	deps.Compose = failing
	deps.Oracle = &fakeOracle{results: []oracle.Result{
		{Artifact: oracle.Artifact{Content: "FROM python:3.12"}},
		{Artifact: oracle.Artifact{Content: "services: {}"}},
		{Artifact: oracle.Artifact{Content: "services: {}"}},
		{Artifact: oracle.Artifact{Content: "services: {}"}},
	}}
	m := NewMonolithic(deps)

	err := m.Deploy(context.Background(), &deps.Config.Environments[0])
	var exhausted *ExhaustedAttemptsError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedAttemptsError", err)
	}
	if !failing.stateSeen {
		t.Error("state was not persisted before compose validation")
	}
}

type failingCompose struct {
	store     *config.Store
	stateSeen bool
}

func (f *failingCompose) Validate(context.Context, validator.Deployment) (validator.Result, error) {
	if _, err := envstate.Load(f.store.StatePath("staging")); err == nil {
		f.stateSeen = true
	}
	return validator.Result{Feedback: "stack failed"}, nil
}
