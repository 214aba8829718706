package identity

import "strings"

// SharedScope is the pseudo-teammate for crew-shared records.
const SharedScope = "_shared"

// Prefix returns the tenant namespace prefix for a project hash.
func Prefix(projectHash string) string {
	return "proj/" + projectHash
}

// ProjectNS joins parts under the project tenant prefix, ignoring any
// crew scope.
func (r *Resolution) ProjectNS(parts ...string) string {
	return join(append([]string{Prefix(r.ProjectHash)}, parts...))
}

// ScopeNS joins parts under the tenant prefix, inside the crew scope
// when the process has a crew identity.
func (r *Resolution) ScopeNS(parts ...string) string {
	head := []string{Prefix(r.ProjectHash)}
	if r.Crew != nil {
		head = append(head, "crew", r.Crew.TeammateName)
	}
	return join(append(head, parts...))
}

// SessionNS returns the per-session namespace for a leaf such as
// "files", "subagents", or "handoff".
func (r *Resolution) SessionNS(sid, leaf string) string {
	return r.ScopeNS("session", sid, leaf)
}

// SessionRootNS returns where session summary records live.
func (r *Resolution) SessionRootNS() string {
	return r.ScopeNS("session")
}

// DiscoveryNS returns where this scope writes discoveries: the
// crew-shared namespace in crew mode, the project namespace otherwise.
func (r *Resolution) DiscoveryNS() string {
	if r.Crew != nil {
		return r.ProjectNS("crew", SharedScope, "discoveries")
	}
	return r.ProjectNS("discoveries")
}

// DiscoveryNamespaces returns every namespace to consult when surfacing
// discoveries, broadest first.
func (r *Resolution) DiscoveryNamespaces() []string {
	out := []string{r.ProjectNS("discoveries")}
	if r.Crew != nil {
		out = append(out, r.ProjectNS("crew", SharedScope, "discoveries"))
	}
	return out
}

func join(parts []string) string {
	return strings.Join(parts, "/")
}
