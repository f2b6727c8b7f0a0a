// Package render substitutes the run's resolved values into the
// shipped configuration templates. The renderer only supplies values
// and selects the orchestration variant; the templates themselves
// define what the services look like.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/siammridha/netbird-setup/interfaces"
)

// ComposeFileName is the rendered orchestration file's name inside
// the output directory.
const ComposeFileName = "docker-compose.yml"

// configTemplates are rendered for every mode. The orchestration
// template is selected per mode on top of these.
var configTemplates = []string{
	"management.json.tmpl",
	"dashboard.env.tmpl",
	"Caddyfile.tmpl",
	"turnserver.conf.tmpl",
}

// Values are the substitution inputs for one run.
type Values struct {
	Domain                 string
	SetupDir               string
	Mode                   interfaces.DeployMode
	RelayAuthSecret        string
	DatastoreEncryptionKey string
	CAPassword             string
}

// Renderer renders the template set into the output directory.
type Renderer struct {
	templateDir string
	outDir      string
	log         *slog.Logger
}

// NewRenderer creates a renderer reading templates from templateDir
// and writing rendered files to outDir.
func NewRenderer(templateDir, outDir string, log *slog.Logger) *Renderer {
	return &Renderer{
		templateDir: templateDir,
		outDir:      outDir,
		log:         log,
	}
}

// ComposeFile returns the path the orchestration file is rendered to.
func (r *Renderer) ComposeFile() string {
	return filepath.Join(r.outDir, ComposeFileName)
}

// RenderAll renders the four configuration templates plus the
// mode-selected orchestration template and returns the rendered
// compose file path. A missing template is fatal: without its config
// the deployment cannot proceed.
func (r *Renderer) RenderAll(v Values) (string, error) {
	if err := os.MkdirAll(r.outDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	for _, name := range configTemplates {
		target := filepath.Join(r.outDir, strings.TrimSuffix(name, ".tmpl"))
		if err := r.renderOne(name, target, v); err != nil {
			return "", err
		}
	}

	composeTemplate := fmt.Sprintf("docker-compose.%s.yml.tmpl", v.Mode)
	if err := r.renderOne(composeTemplate, r.ComposeFile(), v); err != nil {
		return "", err
	}
	return r.ComposeFile(), nil
}

func (r *Renderer) renderOne(name, target string, v Values) error {
	source := filepath.Join(r.templateDir, name)
	data, err := os.ReadFile(source)
	if os.IsNotExist(err) {
		return fmt.Errorf("missing required template: %s", source)
	}
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	// Rendered files carry secrets; keep them operator-only.
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create rendered file %s: %w", target, err)
	}
	if err := tmpl.Execute(f, v); err != nil {
		f.Close()
		return fmt.Errorf("failed to render template %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	r.log.Debug("Rendered template",
		slog.String("template", name),
		slog.String("target", target))
	return nil
}
