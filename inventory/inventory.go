package inventory

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// primaryKey is the host field used as the inventory hostname.
const primaryKey = "primary_address"

// groupNamePattern matches every character that is not valid in a group
// name.
var groupNamePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Host is one entry of the CMDB host list.
type Host struct {
	PrimaryAddress string    `json:"primary_address"`
	Enabled        bool      `json:"enabled"`
	GroupList      []*string `json:"group_list"`
}

// payload is the decoded CMDB response.
type payload struct {
	Hosts []Host `json:"hosts"`
}

// Inventory is the built host inventory in dynamic-inventory form: each
// group maps to its member hostnames, and _meta carries per-host variables.
type Inventory struct {
	Groups   map[string][]string
	HostVars map[string]map[string]interface{}
}

// SanitizeGroupName rewrites a CMDB group name into a valid inventory group
// name: invalid characters become underscores, the result is lowercased and
// dashes become underscores.
func SanitizeGroupName(name string) string {
	s := groupNamePattern.ReplaceAllString(name, "_")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "-", "_")
}

// Build validates the raw CMDB payload and assembles an Inventory from it.
// Hosts are ordered by primary address. A group list of [null] marks a host
// without groups; such hosts appear only in "all".
func Build(raw []byte) (*Inventory, error) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode inventory data: %w", err)
	}
	if err := ValidatePayload(decoded); err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode inventory data: %w", err)
	}

	sort.Slice(p.Hosts, func(i, j int) bool {
		return p.Hosts[i].PrimaryAddress < p.Hosts[j].PrimaryAddress
	})

	inv := &Inventory{
		Groups:   map[string][]string{"all": {}},
		HostVars: map[string]map[string]interface{}{},
	}

	for _, host := range p.Hosts {
		name := host.PrimaryAddress
		inv.Groups["all"] = append(inv.Groups["all"], name)
		inv.HostVars[name] = map[string]interface{}{
			"ansible_host": name,
			"enabled":      host.Enabled,
		}
		for _, group := range hostGroups(host) {
			// "all" already holds every host and "_meta" is claimed
			// by the output format.
			if group == "all" || group == "_meta" {
				continue
			}
			inv.Groups[group] = append(inv.Groups[group], name)
		}
	}

	return inv, nil
}

// hostGroups returns the sanitized group names of a host. A list holding a
// single null entry means the host has no groups.
func hostGroups(host Host) []string {
	if len(host.GroupList) == 1 && host.GroupList[0] == nil {
		return nil
	}
	var groups []string
	for _, g := range host.GroupList {
		if g == nil {
			continue
		}
		groups = append(groups, SanitizeGroupName(*g))
	}
	return groups
}

// MarshalJSON renders the inventory in the dynamic-inventory JSON format:
// one key per group with a hosts list, plus _meta.hostvars.
func (inv *Inventory) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"_meta": map[string]interface{}{
			"hostvars": inv.HostVars,
		},
	}
	for group, hosts := range inv.Groups {
		out[group] = map[string]interface{}{"hosts": hosts}
	}
	return json.Marshal(out)
}

// Render returns the inventory as indented dynamic-inventory JSON.
func (inv *Inventory) Render() ([]byte, error) {
	return json.MarshalIndent(inv, "", "  ")
}
