package provisioner

import (
	"errors"
	"path/filepath"

	"github.com/codex-k8s/scenarioctl/internal/env"
)

// Path-list variables composed for every playbook run.
const (
	EnvRolesPath     = "ANSIBLE_ROLES_PATH"
	EnvLibrary       = "ANSIBLE_LIBRARY"
	EnvFilterPlugins = "ANSIBLE_FILTER_PLUGINS"
)

// DataDirectory holds built-in playbooks and plugins for the ansible provisioner.
func (a *Ansible) DataDirectory() string {
	return filepath.Join(a.cfg.DataDirectory, "provisioner", "ansible")
}

// PluginDirectory is the built-in plugins root.
func (a *Ansible) PluginDirectory() string {
	return filepath.Join(a.DataDirectory(), "plugins")
}

// ModulesDirectory is the built-in modules directory.
func (a *Ansible) ModulesDirectory() string {
	return filepath.Join(a.PluginDirectory(), "modules")
}

// FilterPluginsDirectory is the built-in filter plugins directory.
func (a *Ansible) FilterPluginsDirectory() string {
	return filepath.Join(a.PluginDirectory(), "filter")
}

// Env returns the complete environment for playbook runs: the OS environment,
// ANSIBLE_CONFIG, the SCENARIO_* variables, provisioner.env and the three
// search paths. A user value for a search path is appended after the
// built-in, scratch and project entries.
func (a *Ansible) Env() env.Vars {
	user := env.FromAny(a.cfg.Provisioner.Env)
	ephemeral := a.cfg.EphemeralDirectory()
	project := a.cfg.ProjectDirectory

	lists := map[string][3]string{
		EnvRolesPath: {
			"",
			filepath.Join(ephemeral, "roles"),
			filepath.Join(project, ".."),
		},
		EnvLibrary: {
			a.ModulesDirectory(),
			filepath.Join(ephemeral, "modules"),
			filepath.Join(project, "modules"),
		},
		EnvFilterPlugins: {
			a.FilterPluginsDirectory(),
			filepath.Join(ephemeral, "plugins", "filter"),
			filepath.Join(project, "plugins", "filter"),
		},
	}

	paths := make(env.Vars, len(lists))
	for key, dirs := range lists {
		userValue, err := env.AbsolutePathFor(user, key, a.cfg.ScenarioDirectory())
		if errors.Is(err, env.ErrKeyNotFound) {
			userValue = ""
		}
		paths[key] = env.PathList(dirs[0], dirs[1], dirs[2], userValue)
	}

	return env.Merge(
		env.FromOS(),
		env.Vars{"ANSIBLE_CONFIG": a.ConfigFile()},
		a.cfg.Env(),
		user,
		paths,
	)
}
