package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/hooks"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/style"
)

var contextCmd = &cobra.Command{
	Use:     "context",
	GroupID: GroupContext,
	Short:   "Inspect and edit the captured record store",
	Long: `Operator surface over the record store the hooks write into.

Namespaces are slash paths under each project's tenant prefix, e.g.
proj/<hash>/session/<sid>/files. Commands that take a namespace accept
it verbatim.`,
	RunE: requireSubcommand,
}

var contextSearchLimit int

var contextSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Full-text search across titles and summaries",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextSearch,
}

var (
	contextListLimit     int
	contextListRecursive bool
)

var contextListCmd = &cobra.Command{
	Use:   "list <namespace>",
	Short: "List records in a namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextList,
}

var contextShowJSON bool

var contextShowCmd = &cobra.Command{
	Use:   "show <namespace> <title>",
	Short: "Print one record in full",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextShow,
}

var (
	saveSummary string
	saveType    string
	saveTags    []string
)

var contextSaveCmd = &cobra.Command{
	Use:   "save <namespace> <title>",
	Short: "Write a record by hand",
	Long: `Write (or overwrite) a record. Useful for pinning a discovery or a
note the hooks would never capture on their own.`,
	Args: cobra.ExactArgs(2),
	RunE: runContextSave,
}

var (
	handoffSession string
	handoffRender  bool
)

var contextHandoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Regenerate the session handoff document",
	Long: `Build the handoff document for a session: files touched, sub-agents
spawned, and the prior handoff chain. Defaults to the most recent
session in the current scope.`,
	Args: cobra.NoArgs,
	RunE: runContextHandoff,
}

var (
	recentLimit    int
	recentFiles    bool
	recentSessions bool
)

var contextRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently captured records for this project",
	Args:  cobra.NoArgs,
	RunE:  runContextRecent,
}

func init() {
	contextSearchCmd.Flags().IntVar(&contextSearchLimit, "limit", 20, "maximum results")

	contextListCmd.Flags().IntVar(&contextListLimit, "limit", 50, "maximum records")
	contextListCmd.Flags().BoolVar(&contextListRecursive, "recursive", false, "include child namespaces")

	contextShowCmd.Flags().BoolVar(&contextShowJSON, "json", false, "emit the raw record as JSON")

	contextSaveCmd.Flags().StringVar(&saveSummary, "summary", "", "record summary text (required)")
	contextSaveCmd.Flags().StringVar(&saveType, "type", string(capsule.TypeSummary), "record type (SUMMARY, META, COLLECTION, SOURCE, ALIAS)")
	contextSaveCmd.Flags().StringArrayVar(&saveTags, "tag", nil, "tag to attach (repeatable)")
	_ = contextSaveCmd.MarkFlagRequired("summary")

	contextHandoffCmd.Flags().StringVar(&handoffSession, "session", "", "session id (defaults to the most recent)")
	contextHandoffCmd.Flags().BoolVar(&handoffRender, "render", false, "render the markdown for the terminal")

	contextRecentCmd.Flags().IntVar(&recentLimit, "limit", 20, "maximum records")
	contextRecentCmd.Flags().BoolVar(&recentFiles, "files", false, "only file-touch records")
	contextRecentCmd.Flags().BoolVar(&recentSessions, "sessions", false, "only session summaries")

	contextCmd.AddCommand(contextSearchCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextShowCmd)
	contextCmd.AddCommand(contextSaveCmd)
	contextCmd.AddCommand(contextHandoffCmd)
	contextCmd.AddCommand(contextRecentCmd)
	rootCmd.AddCommand(contextCmd)
}

func runContextSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	recs, err := store.Search(ctx, args[0], contextSearchLimit)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	if len(recs) == 0 {
		fmt.Printf("no records match %q\n", args[0])
		return nil
	}
	printRecordRows(recs)
	return nil
}

func runContextList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	var recs []*capsule.Record
	if contextListRecursive {
		recs, err = store.ListPrefix(ctx, args[0], contextListLimit)
	} else {
		recs, err = store.List(ctx, args[0], contextListLimit)
	}
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	if len(recs) == 0 {
		fmt.Printf("no records under %s\n", args[0])
		return nil
	}
	printRecordRows(recs)
	return nil
}

func runContextShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	rec, err := store.GetAndTouch(ctx, args[0], args[1])
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}

	if contextShowJSON {
		return printJSON(rec)
	}

	fmt.Printf("%s\n", style.Bold.Render(rec.Namespace+" / "+rec.Title))
	fmt.Printf("  type:    %s\n", rec.Type)
	if len(rec.Tags) > 0 {
		fmt.Printf("  tags:    %s\n", strings.Join(rec.Tags, ", "))
	}
	fmt.Printf("  created: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  updated: %s\n", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  hits:    %d\n", rec.HitCount)
	fmt.Println()
	fmt.Println(rec.Summary)
	if len(rec.Content) > 0 {
		data, err := json.MarshalIndent(rec.Content, "  ", "  ")
		if err == nil {
			fmt.Println()
			fmt.Printf("  %s\n", string(data))
		}
	}
	return nil
}

func runContextSave(cmd *cobra.Command, args []string) error {
	ns, err := capsule.NormalizeNamespace(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := &capsule.Record{
		Namespace: ns,
		Title:     args[1],
		Summary:   saveSummary,
		Type:      capsule.RecordType(strings.ToUpper(saveType)),
		Tags:      saveTags,
	}
	if err := store.Save(ctx, rec); err != nil {
		return err
	}
	fmt.Printf("%s saved %s / %s\n", style.SuccessPrefix, ns, args[1])
	return nil
}

func runContextHandoff(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	res := identity.Resolve(cwd, "")

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	sid := handoffSession
	if sid == "" {
		recent, err := store.List(ctx, res.SessionRootNS(), 1)
		if err != nil || len(recent) == 0 {
			style.PrintError("no sessions recorded under %s; pass --session", res.SessionRootNS())
			return nil
		}
		sid = recent[0].Title
	}

	doc := hooks.Handoff(ctx, store, res, sid)
	if handoffRender {
		fmt.Print(renderMarkdown(doc))
		return nil
	}
	fmt.Println(doc)
	return nil
}

func runContextRecent(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	res := identity.Resolve(cwd, "")

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	defer store.Close()

	var recs []*capsule.Record
	switch {
	case recentSessions:
		recs, err = store.List(ctx, res.SessionRootNS(), recentLimit)
	case recentFiles:
		// File records sit one level down from each session; over-fetch
		// and filter to the files leaf.
		all, lerr := store.ListPrefix(ctx, res.ScopeNS("session"), recentLimit*4)
		err = lerr
		for _, r := range all {
			if strings.HasSuffix(r.Namespace, "/files") {
				recs = append(recs, r)
				if len(recs) == recentLimit {
					break
				}
			}
		}
	default:
		recs, err = store.ListPrefix(ctx, identity.Prefix(res.ProjectHash), recentLimit)
	}
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}
	if len(recs) == 0 {
		fmt.Println("nothing captured for this project yet")
		return nil
	}
	printRecordRows(recs)
	return nil
}

// printRecordRows renders records as a compact table.
func printRecordRows(recs []*capsule.Record) {
	tbl := style.NewTable(
		style.Column{Name: "UPDATED", Width: 11},
		style.Column{Name: "TYPE", Width: 10},
		style.Column{Name: "NAMESPACE", Width: 44},
		style.Column{Name: "TITLE", Width: 28},
		style.Column{Name: "SUMMARY", Width: 40},
	)
	for _, r := range recs {
		tbl.AddRow(
			formatAge(time.Since(r.UpdatedAt)),
			string(r.Type),
			r.Namespace,
			r.Title,
			firstLine(r.Summary),
		)
	}
	fmt.Println(tbl.Render())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
