package provisioner

import (
	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

const (
	groupAll       = "all"
	groupUngrouped = "ungrouped"
)

// LifecycleVars are injected into every inventory group except ungrouped,
// child groups included. Classic molecule inventories list only hosts under
// children; here child groups carry the vars as well. Values are Jinja
// expressions resolved by ansible at run time.
var LifecycleVars = map[string]string{
	"scenario_file":                "{{ lookup('env', 'SCENARIO_FILE') }}",
	"scenario_base_file":           "{{ lookup('env', 'SCENARIO_BASE_FILE') }}",
	"scenario_ephemeral_directory": "{{ lookup('env', 'SCENARIO_EPHEMERAL_DIRECTORY') }}",
	"scenario_directory":           "{{ lookup('env', 'SCENARIO_DIRECTORY') }}",
	"scenario_yml":                 "{{ lookup('file', scenario_file) | from_yaml }}",
	"scenario_instance_config":     "{{ lookup('env', 'SCENARIO_INSTANCE_CONFIG') }}",
	"scenario_no_log":              "{{ lookup('env', 'SCENARIO_NO_LOG') or not scenario_yml.provisioner.log|default(False) | bool }}",
}

// HostVars are the inventory variables attached to one host entry.
type HostVars map[string]any

// Group is one node of the inventory tree.
type Group struct {
	Hosts    map[string]HostVars
	Children map[string]*Group
	Vars     map[string]string
}

func newGroup() *Group {
	return &Group{
		Hosts:    make(map[string]HostVars),
		Children: make(map[string]*Group),
	}
}

func (g *Group) child(name string) *Group {
	c, ok := g.Children[name]
	if !ok {
		c = newGroup()
		g.Children[name] = c
	}
	return c
}

func (g *Group) addHost(name string, vars HostVars) {
	g.Hosts[name] = vars
	g.Vars = LifecycleVars
}

// toMap renders the node with empty sections omitted.
func (g *Group) toMap() map[string]any {
	out := make(map[string]any)
	if len(g.Hosts) > 0 {
		hosts := make(map[string]any, len(g.Hosts))
		for name, vars := range g.Hosts {
			entry := maputil.Copy(vars)
			if entry == nil {
				entry = map[string]any{}
			}
			hosts[name] = entry
		}
		out["hosts"] = hosts
	}
	if len(g.Children) > 0 {
		children := make(map[string]any, len(g.Children))
		for name, c := range g.Children {
			children[name] = c.toMap()
		}
		out["children"] = children
	}
	if g.Vars != nil {
		vars := make(map[string]any, len(g.Vars))
		for k, v := range g.Vars {
			vars[k] = v
		}
		out["vars"] = vars
	}
	return out
}

// inventoryBuilder creates group nodes on first reference.
type inventoryBuilder struct {
	groups map[string]*Group
}

func newInventoryBuilder() *inventoryBuilder {
	b := &inventoryBuilder{groups: make(map[string]*Group)}
	b.group(groupAll)
	b.group(groupUngrouped)
	return b
}

func (b *inventoryBuilder) group(name string) *Group {
	g, ok := b.groups[name]
	if !ok {
		g = newGroup()
		b.groups[name] = g
	}
	return g
}

// Build converts the tree into plain maps ready for YAML encoding.
func (b *inventoryBuilder) Build() map[string]any {
	out := make(map[string]any, len(b.groups))
	for name, g := range b.groups {
		if name == groupUngrouped {
			g.Vars = map[string]string{}
		}
		out[name] = g.toMap()
	}
	return out
}

// staticMemberships walks the static hosts fragment and returns, per host,
// the groups listing it under "hosts" at any depth of "children".
func staticMemberships(fragment map[string]any) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	var walk func(name string, node map[string]any)
	walk = func(name string, node map[string]any) {
		if name != groupAll {
			for _, host := range hostNames(node["hosts"]) {
				if seen[host] == nil {
					seen[host] = make(map[string]struct{})
				}
				if _, dup := seen[host][name]; dup {
					continue
				}
				seen[host][name] = struct{}{}
				out[host] = append(out[host], name)
			}
		}
		children, _ := node["children"].(map[string]any)
		for _, child := range maputil.SortedKeys(children) {
			if m, ok := children[child].(map[string]any); ok {
				walk(child, m)
			} else {
				walk(child, map[string]any{})
			}
		}
	}
	for _, name := range maputil.SortedKeys(fragment) {
		if node, ok := fragment[name].(map[string]any); ok {
			walk(name, node)
		}
	}
	return out
}

// hostNames accepts both forms ansible allows for a group's hosts: a mapping
// keyed by host name or a plain list of names.
func hostNames(v any) []string {
	switch hosts := v.(type) {
	case map[string]any:
		return maputil.SortedKeys(hosts)
	case []any:
		out := make([]string, 0, len(hosts))
		for _, h := range hosts {
			if name, ok := h.(string); ok && name != "" {
				out = append(out, name)
			}
		}
		return out
	case []string:
		return hosts
	}
	return nil
}

// Inventory builds the generated inventory from the declared platforms.
// Each host lands in all, in every group it belongs to (declared on the
// platform or listed in the static hosts fragment) and in ungrouped when it
// belongs to none.
func (a *Ansible) Inventory() (map[string]any, error) {
	b := newInventoryBuilder()
	static := staticMemberships(a.cfg.Provisioner.Inventory.Hosts)

	for _, p := range a.cfg.Platforms {
		opts, err := a.ConnectionOptions(p.Name)
		if err != nil {
			return nil, err
		}
		vars := HostVars(opts)

		b.group(groupAll).addHost(p.Name, vars)

		groups := mergeGroups(p.Groups, static[p.Name])
		if len(groups) == 0 {
			b.group(groupUngrouped).Hosts[p.Name] = vars
			continue
		}
		for _, name := range groups {
			g := b.group(name)
			g.addHost(p.Name, vars)
			for _, child := range p.Children {
				g.child(child).addHost(p.Name, vars)
			}
		}
	}
	return b.Build(), nil
}

func mergeGroups(declared, static []string) []string {
	out := make([]string, 0, len(declared)+len(static))
	seen := make(map[string]struct{}, len(declared)+len(static))
	for _, name := range append(append([]string{}, declared...), static...) {
		if name == "" || name == groupAll {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ConnectionOptions returns the host entry for name: driver options with
// provisioner.connection_options merged on top.
func (a *Ansible) ConnectionOptions(name string) (map[string]any, error) {
	opts := map[string]any{}
	if a.driver != nil {
		d, err := a.driver.ConnectionOptions(name)
		if err != nil {
			return nil, err
		}
		opts = d
	}
	return maputil.Merge(opts, a.cfg.Provisioner.ConnectionOptions), nil
}

// VerifyInventory fails when the inventory holds no hosts.
func (a *Ansible) VerifyInventory() error {
	inv, err := a.Inventory()
	if err != nil {
		return err
	}
	all, _ := inv[groupAll].(map[string]any)
	if hosts, _ := all["hosts"].(map[string]any); len(hosts) == 0 {
		return &FatalError{Message: "Instances missing from the platform section of the scenario declaration."}
	}
	return nil
}
