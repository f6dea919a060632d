package provisioner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/config"
	"github.com/codex-k8s/scenarioctl/internal/env"
	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

// Inventory artifacts managed inside the scratch inventory directory.
const (
	HostsArtifact     = "hosts"
	HostVarsArtifact  = "host_vars"
	GroupVarsArtifact = "group_vars"
)

var artifacts = []string{HostsArtifact, HostVarsArtifact, GroupVarsArtifact}

// Mode selects how inventory artifacts are materialized. It is either
// Generated or Linked.
type Mode interface {
	isMode()
}

// Generated writes artifacts from the declared inventory fragments.
type Generated struct {
	Hosts     map[string]any
	HostVars  map[string]config.VarFragments
	GroupVars map[string]config.VarFragments
}

// Linked symlinks artifacts to externally managed paths. Sources maps an
// artifact name to an absolute source path.
type Linked struct {
	Sources map[string]string
}

func (Generated) isMode() {}
func (Linked) isMode()    {}

// MaterializationMode picks Linked when any link is declared, otherwise Generated.
func (a *Ansible) MaterializationMode() Mode {
	inv := a.cfg.Provisioner.Inventory
	if len(inv.Links) > 0 {
		sources := make(map[string]string, len(inv.Links))
		for name, src := range inv.Links {
			sources[name] = env.AbsPath(src, a.cfg.ScenarioDirectory())
		}
		return Linked{Sources: sources}
	}
	return Generated{Hosts: inv.Hosts, HostVars: inv.HostVars, GroupVars: inv.GroupVars}
}

// Materialize writes or links the inventory artifacts into dir.
func Materialize(dir string, mode Mode) error {
	switch m := mode.(type) {
	case Linked:
		return m.link(dir)
	case Generated:
		return m.write(dir)
	default:
		return fmt.Errorf("unsupported materialization mode %T", mode)
	}
}

func (m Linked) link(dir string) error {
	for _, name := range maputil.SortedKeys(m.Sources) {
		if !slices.Contains(artifacts, name) {
			return fmt.Errorf("unsupported inventory link %q (supported: %s)", name, strings.Join(artifacts, ", "))
		}
		src := m.Sources[name]
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &FatalError{Message: fmt.Sprintf("The source path '%s' does not exist.", src)}
			}
			return fmt.Errorf("stat link source %q: %w", src, err)
		}
		target := filepath.Join(dir, name)
		if err := removeArtifact(dir, target); err != nil {
			return err
		}
		if err := os.Symlink(src, target); err != nil {
			return fmt.Errorf("link %s to %q: %w", name, src, err)
		}
	}
	return nil
}

func (m Generated) write(dir string) error {
	if len(m.Hosts) > 0 {
		if err := writeYAML(filepath.Join(dir, HostsArtifact), m.Hosts); err != nil {
			return err
		}
	}
	if err := writeVarFiles(dir, HostVarsArtifact, m.HostVars); err != nil {
		return err
	}
	return writeVarFiles(dir, GroupVarsArtifact, m.GroupVars)
}

// writeVarFiles writes one file per entry; nothing is created for an empty map.
func writeVarFiles(dir, artifact string, vars map[string]config.VarFragments) error {
	if len(vars) == 0 {
		return nil
	}
	root := filepath.Join(dir, artifact)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create %s directory: %w", artifact, err)
	}
	for _, name := range maputil.SortedKeys(vars) {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%s entry %q: name must be a single path element", artifact, name)
		}
		path := filepath.Join(root, name)
		if !safeInventoryPath(root, path) {
			return fmt.Errorf("%s entry %q escapes %s", artifact, name, root)
		}
		if err := writeYAML(path, vars[name].Flatten()); err != nil {
			return err
		}
	}
	return nil
}

// RemoveVars deletes hosts, host_vars and group_vars from dir. Symlinks are
// unlinked without touching their targets.
func RemoveVars(dir string) error {
	for _, name := range artifacts {
		if err := removeArtifact(dir, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func removeArtifact(dir, path string) error {
	if !safeInventoryPath(dir, path) {
		return fmt.Errorf("refusing to remove %q outside %q", path, dir)
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// safeInventoryPath reports whether path lies strictly inside root.
func safeInventoryPath(root, path string) bool {
	root = filepath.Clean(strings.TrimSpace(root))
	path = filepath.Clean(strings.TrimSpace(path))
	if root == "" || root == "." || root == string(os.PathSeparator) {
		return false
	}
	if path == root {
		return false
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// writeYAML encodes v as a YAML document with sorted keys.
func writeYAML(path string, v any) error {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
