package crewcfg

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultProfileName is the implicit profile for single-team configs and
// the implicit crew for flat teammate lists.
const DefaultProfileName = "default"

// profilesView presents both config shapes uniformly: a single-team
// config behaves as profiles{"default": team}.
func (c *Config) profilesView() map[string]*Team {
	if len(c.Profiles) > 0 {
		return c.Profiles
	}
	if c.Team != nil {
		return map[string]*Team{DefaultProfileName: c.Team}
	}
	return nil
}

// ProfileNames returns profile names in file order when known, sorted
// otherwise. Single-team configs report just "default".
func (c *Config) ProfileNames() []string {
	view := c.profilesView()
	if len(c.profileOrder) == len(view) && len(view) > 0 {
		ordered := make([]string, 0, len(view))
		for _, name := range c.profileOrder {
			if _, ok := view[name]; ok {
				ordered = append(ordered, name)
			}
		}
		if len(ordered) == len(view) {
			return ordered
		}
	}
	names := make([]string, 0, len(view))
	for name := range view {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveProfile picks a profile: the explicit name, else the config's
// default, else the first profile in the file.
func (c *Config) ResolveProfile(name string) (string, *Team, error) {
	view := c.profilesView()
	if len(view) == 0 {
		return "", nil, fmt.Errorf("no teams configured")
	}

	if name != "" {
		t, ok := view[name]
		if !ok {
			return "", nil, fmt.Errorf("unknown profile %q (have: %v)", name, c.ProfileNames())
		}
		return name, t, nil
	}

	if c.Default != "" {
		if t, ok := view[c.Default]; ok {
			return c.Default, t, nil
		}
	}

	first := c.ProfileNames()[0]
	return first, view[first], nil
}

// Flatten returns the team's teammates with their crew attached. Flat
// teammates get crew "default"; grouped teammates get their crew's name.
// A non-empty crewFilter keeps only that crew.
func (t *Team) Flatten(crewFilter string) []Teammate {
	var out []Teammate
	for _, tm := range t.Teammates {
		if tm.Crew == "" {
			tm.Crew = DefaultProfileName
		}
		if crewFilter != "" && tm.Crew != crewFilter {
			continue
		}
		out = append(out, tm)
	}
	for _, grp := range t.Crews {
		for _, tm := range grp.Teammates {
			tm.Crew = grp.Name
			if crewFilter != "" && tm.Crew != crewFilter {
				continue
			}
			out = append(out, tm)
		}
	}
	return out
}

// ResolveTeammates flattens a team and applies role presets to every
// teammate, ready for provisioning and prompt generation.
func ResolveTeammates(t *Team, crewFilter string) []Teammate {
	mates := t.Flatten(crewFilter)
	for i := range mates {
		ApplyRole(&mates[i])
	}
	return mates
}

// Hash returns the 12-hex config hash. The hash is computed over the
// canonical JSON form, so reordered keys and whitespace changes in the
// source file do not change it.
func (c *Config) Hash() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}
