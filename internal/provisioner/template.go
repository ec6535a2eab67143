// Where: internal/provisioner/template.go
// What: Materializes embedded infrastructure templates into a working
//       directory, rendering them as Go templates on the way out.
// Why: Terraform and Ansible both run against files on disk; the
//      embedded assets are the single source of truth.
package provisioner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// templateExt marks files that go through Go template rendering. All
// other files are copied verbatim, which keeps ansible's own {{ }}
// syntax out of reach.
const templateExt = ".tmpl"

// MaterializeTemplates writes every file under root in src into
// destDir, preserving the directory layout. Files ending in .tmpl are
// rendered with data and lose the suffix; everything else is copied
// byte-for-byte. An already-populated destination is left untouched so
// user edits to provisioning files survive re-runs.
func MaterializeTemplates(src fs.FS, root, destDir string, data any) error {
	populated, err := dirPopulated(destDir)
	if err != nil {
		return err
	}
	if populated {
		return nil
	}

	return fs.WalkDir(src, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		raw, err := fs.ReadFile(src, path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}

		content := string(raw)
		if strings.HasSuffix(rel, templateExt) {
			target = strings.TrimSuffix(target, templateExt)
			if content, err = renderTemplate(rel, content, data); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, []byte(content), 0o644)
	})
}

func renderTemplate(name, content string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

func dirPopulated(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", dir, err)
	}
	return len(entries) > 0, nil
}
