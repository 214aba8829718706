package crewcfg

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks the config and returns human-readable problems.
// An empty slice means the config is valid.
func (c *Config) Validate() []string {
	var errs []string

	hasTeam := c.Team != nil
	hasProfiles := len(c.Profiles) > 0
	switch {
	case hasTeam && hasProfiles:
		errs = append(errs, "config sets both \"team\" and \"profiles\"; use one shape")
	case !hasTeam && !hasProfiles:
		errs = append(errs, "config needs a \"team\" or a non-empty \"profiles\" map")
	}

	if c.Default != "" && hasProfiles {
		if _, ok := c.Profiles[c.Default]; !ok {
			errs = append(errs, fmt.Sprintf("default profile %q does not exist", c.Default))
		}
	}
	if c.Default != "" && hasTeam {
		errs = append(errs, "\"default\" is only meaningful with \"profiles\"")
	}

	if hasTeam {
		errs = append(errs, validateTeam("team", c.Team)...)
	}
	for _, name := range sortedKeys(c.Profiles) {
		errs = append(errs, validateTeam("profile "+name, c.Profiles[name])...)
	}
	return errs
}

func validateTeam(label string, t *Team) []string {
	var errs []string
	if t == nil {
		return []string{label + ": empty team"}
	}
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, label+": team name must be a non-empty string")
	}

	mates := t.Flatten("")
	if len(mates) == 0 {
		errs = append(errs, label+": no teammates defined")
	}

	seen := map[string]bool{}
	for _, tm := range mates {
		who := tm.Name
		if who == "" {
			who = "<unnamed>"
		}
		if strings.TrimSpace(tm.Name) == "" {
			errs = append(errs, fmt.Sprintf("%s: teammate missing \"name\"", label))
		} else if seen[tm.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate teammate name %q", label, tm.Name))
		}
		seen[tm.Name] = true

		if strings.TrimSpace(tm.Branch) == "" {
			errs = append(errs, fmt.Sprintf("%s: teammate %q missing \"branch\"", label, who))
		}
		if tm.Role != "" && !KnownRole(tm.Role) {
			errs = append(errs, fmt.Sprintf("%s: teammate %q has unknown role %q (known: %s)",
				label, who, tm.Role, strings.Join(RoleNames(), ", ")))
		}
	}
	return errs
}

func sortedKeys(m map[string]*Team) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
