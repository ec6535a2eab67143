// Where: internal/strategy/monolithic.go
// What: The single-VM deployment strategy: registry, images, machine,
//       compose, DNS.
// Why: The default topology runs every service and dependency on one
//      provisioned virtual machine behind a reverse proxy.
package strategy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/opsmith-dev/opsmith/internal/cloud"
	"github.com/opsmith-dev/opsmith/internal/config"
	"github.com/opsmith-dev/opsmith/internal/envstate"
	"github.com/opsmith-dev/opsmith/internal/interaction"
	"github.com/opsmith-dev/opsmith/internal/oracle"
	"github.com/opsmith-dev/opsmith/internal/provisioner"
	"github.com/opsmith-dev/opsmith/internal/validator"
)

// MonolithicName is the registry key of the single-VM strategy.
const MonolithicName = "monolithic"

const (
	registryDirName = "container_registry"
	machineDirName  = "virtual_machine"
	ansibleDirName  = "ansible"

	deployPlaybook  = "deploy.yml"
	composeFilename = "docker-compose.yml"

	secretLength = 32
)

// Monolithic deploys everything onto one virtual machine.
type Monolithic struct {
	deps Dependencies
}

// NewMonolithic builds the single-VM strategy.
func NewMonolithic(deps Dependencies) Strategy {
	return &Monolithic{deps: deps}
}

func (m *Monolithic) Name() string { return MonolithicName }

// Deploy provisions the registry and machine, generates and validates
// artifacts, and brings the full stack up on the target host.
func (m *Monolithic) Deploy(ctx context.Context, env *config.DeploymentEnvironment) error {
	if err := m.preflight(); err != nil {
		return err
	}
	if err := m.resolveInfraChoices(); err != nil {
		return err
	}

	con := m.deps.Console
	con.Header("🚀", "Deploying environment: "+env.Name)
	con.Item("Cloud", m.deps.Provider.Name())
	con.Item("Region", env.Region)

	registryURL, err := m.provisionRegistry(ctx, env)
	if err != nil {
		return err
	}

	// The instance type is chosen before any image builds: its
	// architecture decides the image platform and the VM base image.
	chosen, err := m.selectInstanceType(ctx, env)
	if err != nil {
		return err
	}

	envFile, err := m.environmentFile()
	if err != nil {
		return err
	}
	images, err := m.buildServiceImages(ctx, env, registryURL, envFile, buildPlatform(string(chosen.Architecture)), true)
	if err != nil {
		return err
	}

	machine, err := m.provisionMachine(ctx, env, chosen)
	if err != nil {
		return err
	}

	// Persist provisioned facts before compose validation so a failed
	// rollout can be retried with `opsmith release`.
	state := &envstate.MonolithicState{RegistryURL: registryURL, VirtualMachine: machine}
	if err := envstate.Save(m.deps.Store.StatePath(env.Name), state); err != nil {
		return err
	}

	if err := m.rolloutCompose(ctx, env, state, images, envFile); err != nil {
		return err
	}

	m.printDNSInstructions(env, state)
	con.Success(fmt.Sprintf("Environment %q deployed at %s", env.Name, machine.PublicIP))
	return nil
}

// Release rebuilds and pushes images from the saved Dockerfiles and
// re-runs the deploy playbook with the saved compose file. It never
// regenerates artifacts or touches infrastructure.
func (m *Monolithic) Release(ctx context.Context, env *config.DeploymentEnvironment) error {
	state, err := envstate.Load(m.deps.Store.StatePath(env.Name))
	if err != nil {
		return err
	}

	con := m.deps.Console
	con.Header("📦", "Releasing environment: "+env.Name)

	envFile, err := m.environmentFile()
	if err != nil {
		return err
	}
	if _, err := m.buildServiceImages(ctx, env, state.RegistryURL, envFile,
		buildPlatform(state.VirtualMachine.Architecture), false); err != nil {
		return err
	}

	composePath := filepath.Join(m.deps.Store.EnvironmentDir(env.Name), composeFilename)
	composeContent, err := os.ReadFile(composePath)
	if err != nil {
		return fmt.Errorf("read saved compose file %s (run 'opsmith deploy' first): %w", composePath, err)
	}

	extraVars, err := m.playbookVars(ctx, env, state, string(composeContent), envFile)
	if err != nil {
		return err
	}
	playbook, err := m.materializeAnsible(env)
	if err != nil {
		return err
	}
	if _, err := m.deps.Ansible.RunPlaybook(ctx, playbook, state.VirtualMachine.PublicIP, state.VirtualMachine.User, extraVars); err != nil {
		return err
	}

	con.Success(fmt.Sprintf("Environment %q released at %s", env.Name, state.VirtualMachine.PublicIP))
	return nil
}

// Destroy tears down the machine and registry and removes the
// environment's local state.
func (m *Monolithic) Destroy(ctx context.Context, env *config.DeploymentEnvironment) error {
	if _, err := envstate.Load(m.deps.Store.StatePath(env.Name)); err != nil {
		return err
	}

	con := m.deps.Console
	con.Header("🔥", "Destroying environment: "+env.Name)

	vars := map[string]string{
		"region":   env.Region,
		"app_name": m.deps.Config.AppNameSlug,
	}

	// Machine first: it may reference images in the registry.
	for _, component := range []string{machineDirName, registryDirName} {
		con.ItemPlain("destroying " + component)
		dir, err := m.materializeTerraform(env, component)
		if err != nil {
			return err
		}
		tf, err := m.deps.NewTerraform(dir)
		if err != nil {
			return err
		}
		if err := tf.Destroy(ctx, vars); err != nil {
			return err
		}
	}

	if err := envstate.Delete(m.deps.Store.StatePath(env.Name)); err != nil {
		return err
	}
	if err := os.RemoveAll(m.deps.Store.EnvironmentDir(env.Name)); err != nil {
		return fmt.Errorf("remove environment dir: %w", err)
	}

	con.Success(fmt.Sprintf("Environment %q destroyed", env.Name))
	return nil
}

// preflight rejects configurations that cannot deploy before any cloud
// resource is touched.
func (m *Monolithic) preflight() error {
	cfg := m.deps.Config
	if len(cfg.Services) == 0 {
		return &PreflightError{Reason: "the deployment configuration declares no services"}
	}
	seen := map[string]bool{}
	public := 0
	for _, svc := range cfg.Services {
		slug := svc.NameSlug()
		if seen[slug] {
			return &PreflightError{Reason: fmt.Sprintf("duplicate service identity %q", slug)}
		}
		seen[slug] = true
		if !svc.ServiceType.IsPublic() {
			continue
		}
		public++
		if svc.ServicePort == 0 {
			return &PreflightError{Reason: fmt.Sprintf("public service %q declares no service port", slug)}
		}
	}
	if public > 1 {
		return &PreflightError{Reason: fmt.Sprintf(
			"the monolithic strategy serves at most one public service; found %d", public)}
	}
	return nil
}

// resolveInfraChoices replaces user_choice dependency providers with a
// concrete pick and persists the result.
func (m *Monolithic) resolveInfraChoices() error {
	cfg := m.deps.Config
	unresolved := cfg.UnresolvedDeps()
	if len(unresolved) == 0 {
		return nil
	}

	for _, idx := range unresolved {
		dep := &cfg.InfraDeps[idx]
		compatible := config.CompatibleProviders[dep.DependencyType]
		if len(compatible) == 0 {
			return fmt.Errorf("no known providers for dependency type %q", dep.DependencyType)
		}

		options := make([]interaction.SelectOption, 0, len(compatible))
		for _, provider := range compatible {
			options = append(options, interaction.SelectOption{Label: string(provider), Value: string(provider)})
		}
		choice, err := m.deps.Prompter.Select(
			fmt.Sprintf("Choose a %s provider", dep.DependencyType), options)
		if err != nil {
			return err
		}
		dep.Provider = config.InfraProvider(choice)
	}
	return m.deps.Store.Save(cfg)
}

func (m *Monolithic) provisionRegistry(ctx context.Context, env *config.DeploymentEnvironment) (string, error) {
	con := m.deps.Console
	con.Header("🏗️", "Provisioning container registry")

	dir, err := m.materializeTerraform(env, registryDirName)
	if err != nil {
		return "", err
	}
	tf, err := m.deps.NewTerraform(dir)
	if err != nil {
		return "", err
	}
	outputs, err := tf.Apply(ctx, map[string]string{
		"region":   env.Region,
		"app_name": m.deps.Config.AppNameSlug,
	})
	if err != nil {
		return "", err
	}

	registryURL := outputs["registry_url"]
	if registryURL == "" {
		return "", errors.New("registry provisioning returned no registry_url output")
	}
	con.Item("Registry", registryURL)
	return registryURL, nil
}

// buildServiceImages produces one pushed image per service, built for
// the target machine's platform. When generate is true, Dockerfiles are
// generated and validated; otherwise the ones saved by a previous
// deploy are reused.
func (m *Monolithic) buildServiceImages(ctx context.Context, env *config.DeploymentEnvironment, registryURL string, envFile map[string]string, platform string, generate bool) (map[string]string, error) {
	con := m.deps.Console
	username, password, err := m.deps.Provider.RegistryCredentials(ctx, env.Region)
	if err != nil {
		return nil, err
	}

	images := make(map[string]string, len(m.deps.Config.Services))
	for _, svc := range m.deps.Config.Services {
		slug := svc.NameSlug()
		dockerfilePath := filepath.Join(m.deps.Store.ImagesDir(slug), "Dockerfile")

		var dockerfile string
		if generate {
			con.Header("🐳", "Generating Dockerfile for "+slug)
			artifact, err := generateLoop(ctx, m.deps.Oracle, con, oracle.KindDockerfile,
				dockerfileInstruction(m.deps.Config, svc), dockerfileMaxAttempts,
				func(ctx context.Context, artifact oracle.Artifact) (validator.Result, error) {
					return m.deps.Dockerfiles.Validate(ctx, slug, m.deps.RepoRoot, artifact.Content, envList(envFile))
				})
			if err != nil {
				return nil, err
			}
			dockerfile = artifact.Content

			if err := os.MkdirAll(filepath.Dir(dockerfilePath), 0o755); err != nil {
				return nil, fmt.Errorf("create images dir: %w", err)
			}
			if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
				return nil, fmt.Errorf("save Dockerfile for %s: %w", slug, err)
			}
		} else {
			raw, err := os.ReadFile(dockerfilePath)
			if err != nil {
				return nil, fmt.Errorf("read saved Dockerfile %s (run 'opsmith deploy' first): %w", dockerfilePath, err)
			}
			dockerfile = string(raw)
		}

		localTag := fmt.Sprintf("%s-%s:latest", m.deps.Config.AppNameSlug, slug)
		remoteRef := fmt.Sprintf("%s:%s-latest", registryURL, slug)

		con.Header("📤", "Building and pushing image for "+slug)
		if err := m.deps.Images.BuildImage(ctx, m.deps.RepoRoot, dockerfile, localTag, platform); err != nil {
			return nil, err
		}
		if err := m.deps.Images.TagAndPush(ctx, localTag, remoteRef, username, password); err != nil {
			return nil, err
		}
		images[slug] = remoteRef
	}
	return images, nil
}

// selectInstanceType sizes the machine and picks the cheapest fitting
// instance. Its architecture drives both the VM base image and the
// docker build platform.
func (m *Monolithic) selectInstanceType(ctx context.Context, env *config.DeploymentEnvironment) (cloud.InstanceType, error) {
	floor, err := m.machineFloor()
	if err != nil {
		return cloud.InstanceType{}, err
	}

	candidates, err := m.deps.Provider.InstanceTypes(ctx, env.Region)
	if err != nil {
		return cloud.InstanceType{}, err
	}
	chosen, err := cloud.ChooseInstanceType(candidates, floor)
	if err != nil {
		return cloud.InstanceType{}, err
	}
	m.deps.Console.Item("Instance type",
		fmt.Sprintf("%s (%d vCPU, %.1f GB RAM, %s)", chosen.Name, chosen.VCPU, chosen.RAMGB, chosen.Architecture))
	return chosen, nil
}

func (m *Monolithic) provisionMachine(ctx context.Context, env *config.DeploymentEnvironment, chosen cloud.InstanceType) (envstate.VirtualMachine, error) {
	con := m.deps.Console
	con.Header("🖥️", "Provisioning virtual machine")

	publicKey, err := readSSHPublicKey()
	if err != nil {
		return envstate.VirtualMachine{}, err
	}

	dir, err := m.materializeTerraform(env, machineDirName)
	if err != nil {
		return envstate.VirtualMachine{}, err
	}
	tf, err := m.deps.NewTerraform(dir)
	if err != nil {
		return envstate.VirtualMachine{}, err
	}
	outputs, err := tf.Apply(ctx, map[string]string{
		"region":         env.Region,
		"app_name":       m.deps.Config.AppNameSlug,
		"instance_type":  chosen.Name,
		"architecture":   string(chosen.Architecture),
		"ssh_public_key": publicKey,
	})
	if err != nil {
		return envstate.VirtualMachine{}, err
	}

	publicIP := outputs["public_ip"]
	if publicIP == "" {
		return envstate.VirtualMachine{}, errors.New("machine provisioning returned no public_ip output")
	}
	con.Item("Public IP", publicIP)

	return envstate.VirtualMachine{
		CPU:          chosen.VCPU,
		RAMGB:        chosen.RAMGB,
		InstanceType: chosen.Name,
		Architecture: string(chosen.Architecture),
		PublicIP:     publicIP,
		User:         m.deps.Provider.SSHUser(),
	}, nil
}

// machineFloor estimates the minimum machine size and lets the operator
// override it.
func (m *Monolithic) machineFloor() (cloud.MachineFloor, error) {
	cfg := m.deps.Config
	estimated := cloud.MachineFloor{
		CPU:   int(math.Ceil(1 + 0.5*float64(len(cfg.Services)))),
		RAMGB: 1 + float64(len(cfg.Services)) + float64(len(cfg.InfraDeps)),
	}

	useEstimate, err := m.deps.Prompter.Confirm(fmt.Sprintf(
		"Size the machine for at least %d vCPU / %.1f GB RAM?", estimated.CPU, estimated.RAMGB))
	if err != nil {
		return cloud.MachineFloor{}, err
	}
	if useEstimate {
		return estimated, nil
	}

	cpuRaw, err := m.deps.Prompter.Input("Minimum vCPUs", strconv.Itoa(estimated.CPU))
	if err != nil {
		return cloud.MachineFloor{}, err
	}
	cpu, err := strconv.Atoi(strings.TrimSpace(cpuRaw))
	if err != nil || cpu < 1 {
		return cloud.MachineFloor{}, fmt.Errorf("invalid vCPU count %q", cpuRaw)
	}

	ramRaw, err := m.deps.Prompter.Input("Minimum RAM in GB", strconv.FormatFloat(estimated.RAMGB, 'f', -1, 64))
	if err != nil {
		return cloud.MachineFloor{}, err
	}
	ram, err := strconv.ParseFloat(strings.TrimSpace(ramRaw), 64)
	if err != nil || ram <= 0 {
		return cloud.MachineFloor{}, fmt.Errorf("invalid RAM size %q", ramRaw)
	}
	return cloud.MachineFloor{CPU: cpu, RAMGB: ram}, nil
}

// rolloutCompose generates, validates, and persists the compose file.
// Each validation round deploys the candidate to the host, so a passing
// round leaves the stack running.
func (m *Monolithic) rolloutCompose(ctx context.Context, env *config.DeploymentEnvironment, state *envstate.MonolithicState, images map[string]string, envFile map[string]string) error {
	con := m.deps.Console
	con.Header("🧩", "Generating deployment manifest")

	playbook, err := m.materializeAnsible(env)
	if err != nil {
		return err
	}
	description := appDescription(m.deps.Config)

	artifact, err := generateLoop(ctx, m.deps.Oracle, con, oracle.KindCompose,
		composeInstruction(m.deps.Config, env, images, envKeys(envFile)), composeMaxAttempts,
		func(ctx context.Context, artifact oracle.Artifact) (validator.Result, error) {
			extraVars, err := m.playbookVars(ctx, env, state, artifact.Content, envFile)
			if err != nil {
				return validator.Result{}, err
			}
			return m.deps.Compose.Validate(ctx, validator.Deployment{
				Playbook:    playbook,
				Host:        state.VirtualMachine.PublicIP,
				User:        state.VirtualMachine.User,
				ExtraVars:   extraVars,
				Description: description,
			})
		})
	if err != nil {
		return err
	}

	composePath := filepath.Join(m.deps.Store.EnvironmentDir(env.Name), composeFilename)
	if err := os.WriteFile(composePath, []byte(artifact.Content), 0o644); err != nil {
		return fmt.Errorf("save compose file: %w", err)
	}
	return nil
}

// playbookVars assembles the extra vars the deploy playbook consumes.
// File contents travel base64-encoded so YAML quoting cannot mangle
// them.
func (m *Monolithic) playbookVars(ctx context.Context, env *config.DeploymentEnvironment, state *envstate.MonolithicState, composeContent string, envFile map[string]string) (map[string]any, error) {
	username, password, err := m.deps.Provider.RegistryCredentials(ctx, env.Region)
	if err != nil {
		return nil, err
	}

	domains := make([]map[string]string, 0, len(env.Domains))
	for _, domain := range env.Domains {
		domains = append(domains, map[string]string{
			"domain":  domain.DomainName,
			"service": domain.ServiceNameSlug,
		})
	}

	return map[string]any{
		"app_slug":          m.deps.Config.AppNameSlug,
		"registry_url":      state.RegistryURL,
		"registry_username": username,
		"registry_password": password,
		"compose_content":   base64.StdEncoding.EncodeToString([]byte(composeContent)),
		"env_file_content":  base64.StdEncoding.EncodeToString([]byte(renderEnvFile(envFile))),
		"domains":           domains,
		"domain_email":      env.DomainEmail,
	}, nil
}

func (m *Monolithic) printDNSInstructions(env *config.DeploymentEnvironment, state *envstate.MonolithicState) {
	if len(env.Domains) == 0 {
		return
	}
	con := m.deps.Console
	con.Header("🌐", "DNS records")
	for _, domain := range env.Domains {
		con.ItemPlain(fmt.Sprintf("A record: %s -> %s", domain.DomainName, state.VirtualMachine.PublicIP))
	}

	confirmed, err := m.deps.Prompter.Confirm("Have you created these DNS records?")
	if err != nil || !confirmed {
		con.Warn("TLS certificates will not issue until the DNS records exist")
	}
}

// environmentFile resolves the value of every declared env var.
// Declared defaults win; secrets without a default get a generated
// value; everything else is left empty for the operator to fill in.
func (m *Monolithic) environmentFile() (map[string]string, error) {
	envFile := m.deps.Config.EnvVarDefaults()
	for _, svc := range m.deps.Config.Services {
		for _, envVar := range svc.EnvVars {
			if _, exists := envFile[envVar.Key]; exists {
				continue
			}
			if envVar.IsSecret {
				secret, err := config.GenerateSecret(secretLength)
				if err != nil {
					return nil, fmt.Errorf("generate secret for %s: %w", envVar.Key, err)
				}
				envFile[envVar.Key] = secret
				continue
			}
			envFile[envVar.Key] = ""
		}
	}
	return envFile, nil
}

func (m *Monolithic) materializeTerraform(env *config.DeploymentEnvironment, component string) (string, error) {
	dir := filepath.Join(m.deps.Store.EnvironmentDir(env.Name), component)
	src := path.Join("templates/terraform", component, providerSlug(m.deps.Provider.Name()))
	if err := provisioner.MaterializeTemplates(m.deps.Templates, src, dir, m.templateData()); err != nil {
		return "", err
	}
	return dir, nil
}

func (m *Monolithic) materializeAnsible(env *config.DeploymentEnvironment) (string, error) {
	dir := filepath.Join(m.deps.Store.EnvironmentDir(env.Name), ansibleDirName)
	if err := provisioner.MaterializeTemplates(m.deps.Templates, "templates/ansible/service_deploy", dir, m.templateData()); err != nil {
		return "", err
	}
	return filepath.Join(dir, deployPlaybook), nil
}

func (m *Monolithic) templateData() map[string]string {
	return map[string]string{
		"AppName":     m.deps.Config.AppName,
		"AppNameSlug": m.deps.Config.AppNameSlug,
	}
}

func providerSlug(name string) string {
	return strings.ToLower(name)
}

// buildPlatform maps the machine's CPU architecture to the docker
// platform its images must be built for.
func buildPlatform(arch string) string {
	if arch == string(cloud.ArchARM64) {
		return "linux/arm64"
	}
	return "linux/amd64"
}

// readSSHPublicKey finds the operator's default public key for VM
// access.
func readSSHPublicKey() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	for _, name := range []string{"id_ed25519.pub", "id_rsa.pub"} {
		raw, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err == nil {
			return strings.TrimSpace(string(raw)), nil
		}
	}
	return "", errors.New("no SSH public key found in ~/.ssh; generate one with 'ssh-keygen -t ed25519'")
}

func renderEnvFile(envFile map[string]string) string {
	keys := envKeys(envFile)
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s\n", key, envFile[key])
	}
	return b.String()
}

func envKeys(envFile map[string]string) []string {
	keys := make([]string, 0, len(envFile))
	for key := range envFile {
		keys = append(keys, key)
	}
	return keys
}

func envList(envFile map[string]string) []string {
	keys := envKeys(envFile)
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, key := range keys {
		list = append(list, key+"="+envFile[key])
	}
	return list
}
