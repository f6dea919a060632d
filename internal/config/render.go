package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/env"
)

// Template delimiters differ from Go's defaults so that Jinja expressions
// ("{{ ... }}") in scenario.yml pass through untouched to ansible.
const (
	leftDelim  = "[["
	rightDelim = "]]"
)

// TemplateContext represents the data exposed to templates when rendering scenario.yml.
type TemplateContext struct {
	// ScenarioName is the selected scenario.
	ScenarioName string
	// ProjectDirectory is the project root on disk.
	ProjectDirectory string
	// ScenarioDirectory is the directory holding scenario.yml.
	ScenarioDirectory string
	// UserVars contains inline user variables.
	UserVars env.Vars
	// EnvMap merges OS env, envFiles, var-files and user variables.
	EnvMap env.Vars
}

// rawHeader is a minimal struct used to extract top-level fields before templating.
type rawHeader struct {
	EnvFiles []string `yaml:"envFiles"`
}

// LoadAndRender reads a YAML file, loads its envFiles and the given var-files,
// and returns the rendered bytes.
func LoadAndRender(path string, tctx TemplateContext, varFiles []string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	varFileVars := make(env.Vars)
	for _, vf := range varFiles {
		if strings.TrimSpace(vf) == "" {
			continue
		}
		vp, err := env.LoadVarFile(vf)
		if err != nil {
			return nil, fmt.Errorf("load var-file %q: %w", vf, err)
		}
		varFileVars = env.Merge(varFileVars, vp)
	}

	// envFiles may itself be templated, so the header is read from a first
	// render that only sees OS env, var-files and inline vars.
	tctx.EnvMap = env.Merge(env.FromOS(), varFileVars, tctx.UserVars)
	firstPass, err := RenderTemplate(filepath.Base(path), rawBytes, tctx)
	if err != nil {
		return nil, err
	}

	var header rawHeader
	if err := yaml.Unmarshal(firstPass, &header); err != nil {
		return nil, fmt.Errorf("parse top-level config fields of %q: %w", path, err)
	}
	if len(header.EnvFiles) == 0 {
		return firstPass, nil
	}

	envFileVars, err := env.LoadEnvFiles(filepath.Dir(path), header.EnvFiles)
	if err != nil {
		return nil, err
	}
	tctx.EnvMap = env.Merge(env.FromOS(), envFileVars, varFileVars, tctx.UserVars)

	return RenderTemplate(filepath.Base(path), rawBytes, tctx)
}

// RenderTemplate renders arbitrary YAML or text content using the template helpers.
func RenderTemplate(name string, raw []byte, tctx TemplateContext) ([]byte, error) {
	tmpl, err := template.New(name).
		Delims(leftDelim, rightDelim).
		Funcs(buildFuncMap(tctx)).
		Option("missingkey=zero").
		Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tctx); err != nil {
		return nil, fmt.Errorf("execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// buildFuncMap constructs the set of template functions available in scenario.yml.
func buildFuncMap(tctx TemplateContext) template.FuncMap {
	return template.FuncMap{
		"default": funcDef,
		"toLower": strings.ToLower,
		"envOr":   funcEnvOr(tctx.EnvMap),
		"ternary": funcTernary,
		"join":    strings.Join,
	}
}

// funcDef returns def when value is empty or whitespace, otherwise value.
func funcDef(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// funcEnvOr returns a function that looks up a key in envMap and falls back to def.
func funcEnvOr(envMap env.Vars) func(key, def string) string {
	return func(key, def string) string {
		if v, ok := envMap[key]; ok && v != "" {
			return v
		}
		return def
	}
}

// funcTernary returns a when cond is true, otherwise b.
func funcTernary(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}

var varFragmentsType = reflect.TypeOf(VarFragments{})

// varFragmentsHook lets host_vars/group_vars entries be either one mapping
// or a sequence of mappings.
func varFragmentsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != varFragmentsType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return VarFragments(nil), nil
	case map[string]any:
		return VarFragments{v}, nil
	case []any:
		out := make(VarFragments, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("variable fragment %d: expected mapping, got %T", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return data, nil
}
