// Where: internal/meta/meta.go
// What: CLI-local metadata constants.
// Why: Keep naming and directory layout in one place.
package meta

const (
	// Project Identity
	AppName   = "opsmith"
	EnvPrefix = "OPSMITH"

	// Directory Layout
	DeploymentsDir  = ".opsmith"
	EnvironmentsDir = "environments"
	ImagesDir       = "images"

	// File names
	ConfigFilename = "config.yml"
	StateFilename  = "state.yml"

	// External tool help links
	AWSCredentialsHelpURL = "https://docs.aws.amazon.com/cli/latest/userguide/cli-configure-quickstart.html"
	GCPCredentialsHelpURL = "https://cloud.google.com/sdk/docs/authorizing"
	TerraformInstallURL   = "https://developer.hashicorp.com/terraform/install"
	AnsibleInstallURL     = "https://docs.ansible.com/ansible/latest/installation_guide/index.html"
)
