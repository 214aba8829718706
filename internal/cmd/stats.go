package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/style"
)

var statsGlobal bool

var statsCmd = &cobra.Command{
	Use:     "stats <view> [limit]",
	GroupID: GroupContext,
	Short:   "Aggregate views over the record store",
	Long: `Read-only aggregations over the captured records.

Views:
  overview   counts by type and namespace, plus the most-saved titles
  files      most-touched files in this scope
  agents     sub-agent spawns grouped by agent type
  sessions   recent session summaries, newest first
  branches   session counts per git branch

The project scope comes from the current directory; --global covers the
whole store.`,
	ValidArgs: []string{"overview", "files", "agents", "sessions", "branches"},
	Args:      cobra.RangeArgs(1, 2),
	RunE:      runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsGlobal, "global", false, "aggregate over every project, not just this one")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	limit := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("limit must be a positive integer, got %q", args[1])
		}
		limit = n
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	res := identity.Resolve(cwd, "")

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		// Read-only command: report and exit clean.
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	prefix := identity.Prefix(res.ProjectHash)
	if statsGlobal {
		prefix = ""
	}

	switch args[0] {
	case "overview":
		err = statsOverview(ctx, store, prefix, limit)
	case "files":
		err = statsFiles(ctx, store, res, limit)
	case "agents":
		err = statsAgents(ctx, store, res, limit)
	case "sessions":
		err = statsSessions(ctx, store, res, limit)
	case "branches":
		err = statsBranches(ctx, store, prefix)
	default:
		return fmt.Errorf("unknown view %q (views: overview, files, agents, sessions, branches)", args[0])
	}
	if err != nil {
		style.PrintError("%v", err)
	}
	return nil
}

func statsOverview(ctx context.Context, store *capsule.Store, prefix string, limit int) error {
	st, err := store.CollectStats(ctx, prefix)
	if err != nil {
		return err
	}

	scope := prefix
	if scope == "" {
		scope = "whole store"
	}
	fmt.Printf("%s  %s\n\n", style.Bold.Render("Record store"), style.Dim.Render(scope))
	fmt.Printf("  %d record(s) across %d namespace(s)\n", st.Total, st.Namespaces)
	if !st.Oldest.IsZero() {
		fmt.Printf("  oldest %s, newest %s\n",
			formatAge(time.Since(st.Oldest)), formatAge(time.Since(st.Newest)))
	}
	if len(st.ByType) > 0 {
		var types []string
		for t := range st.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		parts := make([]string, 0, len(types))
		for _, t := range types {
			parts = append(parts, fmt.Sprintf("%s %d", t, st.ByType[t]))
		}
		fmt.Printf("  by type: %s\n", strings.Join(parts, ", "))
	}

	if st.Total == 0 {
		return nil
	}

	counts, err := store.PrefixCounts(ctx, nonEmptyPrefix(prefix))
	if err != nil {
		return err
	}
	if len(counts) > 0 {
		fmt.Println()
		tbl := style.NewTable(
			style.Column{Name: "NAMESPACE", Width: 40},
			style.Column{Name: "RECORDS", Width: 7, Align: style.AlignRight},
			style.Column{Name: "NEWEST", Width: 11},
		)
		for _, nc := range counts {
			tbl.AddRow(nc.Namespace, fmt.Sprintf("%d", nc.Count), formatAge(time.Since(nc.Newest)))
		}
		fmt.Println(tbl.Render())
	}

	titles, err := store.TopTitles(ctx, nonEmptyPrefix(prefix), limit)
	if err != nil {
		return err
	}
	if len(titles) > 0 {
		fmt.Println(style.Bold.Render("  Most-saved titles"))
		for _, tc := range titles {
			fmt.Printf("  %4dx  %s %s\n", tc.Count, tc.Title,
				style.Dim.Render(fmt.Sprintf("(%d hits, %s)", tc.Hits, formatAge(time.Since(tc.LastSeen)))))
		}
	}
	return nil
}

// nonEmptyPrefix maps the whole-store scope to the tenant root so prefix
// queries stay valid.
func nonEmptyPrefix(prefix string) string {
	if prefix == "" {
		return "proj"
	}
	return prefix
}

func statsFiles(ctx context.Context, store *capsule.Store, res *identity.Resolution, limit int) error {
	recs, err := store.ListPrefix(ctx, res.ScopeNS("session"), 0)
	if err != nil {
		return err
	}

	type fileAgg struct {
		Path    string
		Count   int
		Actions map[string]int
		Last    time.Time
	}
	byPath := map[string]*fileAgg{}
	for _, r := range recs {
		if !strings.HasSuffix(r.Namespace, "/files") {
			continue
		}
		path := r.ContentString("filePath")
		if path == "" {
			path = r.Title
		}
		agg, ok := byPath[path]
		if !ok {
			agg = &fileAgg{Path: path, Actions: map[string]int{}}
			byPath[path] = agg
		}
		agg.Count++
		agg.Actions[r.ContentString("action")]++
		if r.UpdatedAt.After(agg.Last) {
			agg.Last = r.UpdatedAt
		}
	}
	if len(byPath) == 0 {
		fmt.Println("no file activity captured in this scope")
		return nil
	}

	aggs := make([]*fileAgg, 0, len(byPath))
	for _, a := range byPath {
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].Count != aggs[j].Count {
			return aggs[i].Count > aggs[j].Count
		}
		return aggs[i].Last.After(aggs[j].Last)
	})
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}

	fmt.Printf("%s\n\n", style.Bold.Render("Most-touched files"))
	for _, a := range aggs {
		var actions []string
		for act, n := range a.Actions {
			actions = append(actions, fmt.Sprintf("%s %d", act, n))
		}
		sort.Strings(actions)
		fmt.Printf("  %4dx  %s %s\n", a.Count, a.Path,
			style.Dim.Render("("+strings.Join(actions, ", ")+", "+formatAge(time.Since(a.Last))+")"))
	}
	return nil
}

func statsAgents(ctx context.Context, store *capsule.Store, res *identity.Resolution, limit int) error {
	recs, err := store.ListPrefix(ctx, res.ScopeNS("session"), 0)
	if err != nil {
		return err
	}

	type agentAgg struct {
		Type  string
		Count int
		Last  time.Time
	}
	byType := map[string]*agentAgg{}
	for _, r := range recs {
		if !strings.HasSuffix(r.Namespace, "/subagents") {
			continue
		}
		typ := r.ContentString("agentType")
		if typ == "" {
			typ = "unknown"
		}
		agg, ok := byType[typ]
		if !ok {
			agg = &agentAgg{Type: typ}
			byType[typ] = agg
		}
		agg.Count++
		if r.UpdatedAt.After(agg.Last) {
			agg.Last = r.UpdatedAt
		}
	}
	if len(byType) == 0 {
		fmt.Println("no sub-agent spawns captured in this scope")
		return nil
	}

	aggs := make([]*agentAgg, 0, len(byType))
	for _, a := range byType {
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].Count > aggs[j].Count })
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}

	fmt.Printf("%s\n\n", style.Bold.Render("Sub-agent spawns by type"))
	for _, a := range aggs {
		fmt.Printf("  %4dx  %s %s\n", a.Count, a.Type,
			style.Dim.Render("(last "+formatAge(time.Since(a.Last))+")"))
	}
	return nil
}

func statsSessions(ctx context.Context, store *capsule.Store, res *identity.Resolution, limit int) error {
	recs, err := store.List(ctx, res.SessionRootNS(), limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no sessions recorded in this scope")
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "ENDED", Width: 11},
		style.Column{Name: "SESSION", Width: 14},
		style.Column{Name: "BRANCH", Width: 22},
		style.Column{Name: "SUMMARY", Width: 40},
	)
	for _, r := range recs {
		tbl.AddRow(
			formatAge(time.Since(r.UpdatedAt)),
			r.Title,
			r.ContentString("branch"),
			firstLine(r.Summary),
		)
	}
	fmt.Println(tbl.Render())
	return nil
}

func statsBranches(ctx context.Context, store *capsule.Store, prefix string) error {
	tags, err := store.TagCounts(ctx, nonEmptyPrefix(prefix), "branch:")
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Println("no branch activity captured")
		return nil
	}

	type branchCount struct {
		Branch string
		Count  int
	}
	counts := make([]branchCount, 0, len(tags))
	for tag, n := range tags {
		counts = append(counts, branchCount{strings.TrimPrefix(tag, "branch:"), n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Branch < counts[j].Branch
	})

	fmt.Printf("%s\n\n", style.Bold.Render("Sessions per branch"))
	for _, bc := range counts {
		fmt.Printf("  %4dx  %s\n", bc.Count, bc.Branch)
	}
	return nil
}
