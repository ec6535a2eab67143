// Where: assets/templates_embed.go
// What: Embed terraform and ansible templates for provisioning.
// Why: The binary must carry its infrastructure definitions; nothing is
//      fetched at deploy time.
package assets

import "embed"

//go:embed templates
var TemplatesFS embed.FS
