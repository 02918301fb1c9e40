package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/narrow/internal/fetch"
	"github.com/roach88/narrow/internal/model"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Realm          int64
	User           int64
	Anchor         string
	UseFirstUnread bool
	NumBefore      int
	NumAfter       int
	IncludeAnchor  bool
	IDs            []int64
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <narrow>",
		Short: "Fetch a page of messages around an anchor",
		Long: `Fetch the messages of a narrow around an anchor: up to --num-before
older messages, the anchor, and up to --num-after newer ones.

The anchor is a message id, "oldest", "newest" or "first_unread".
With --ids the listed messages are fetched instead and no anchor applies.`,
		Example: `  narrow fetch '[["channel","Verona"]]' --user 10 --anchor newest --num-before 20
  narrow fetch '[["channels","web-public"]]' --anchor oldest --num-after 50
  narrow fetch '[]' --user 10 --ids 4,5,6`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Realm, "realm", 1, "realm id")
	cmd.Flags().Int64Var(&opts.User, "user", 0, "viewer user id (0 for anonymous)")
	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "message id, oldest, newest or first_unread")
	cmd.Flags().BoolVar(&opts.UseFirstUnread, "use-first-unread-anchor", false, "anchor at the first unread message (legacy)")
	cmd.Flags().IntVar(&opts.NumBefore, "num-before", 0, "messages older than the anchor")
	cmd.Flags().IntVar(&opts.NumAfter, "num-after", 0, "messages newer than the anchor")
	cmd.Flags().BoolVar(&opts.IncludeAnchor, "include-anchor", true, "include the anchor message")
	cmd.Flags().Int64SliceVar(&opts.IDs, "ids", nil, "fetch exactly these message ids")

	return cmd
}

func runFetch(opts *FetchOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	n, err := loadNarrow(arg, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("invalid narrow", err)
	}

	var ids []int64
	spec := fetch.AnchorSpec{
		NumBefore:     opts.NumBefore,
		NumAfter:      opts.NumAfter,
		IncludeAnchor: opts.IncludeAnchor,
	}
	if cmd.Flags().Changed("ids") {
		ids = append([]int64{}, opts.IDs...)
	} else {
		var raw *string
		if cmd.Flags().Changed("anchor") {
			raw = &opts.Anchor
		}
		spec.Anchor, err = fetch.ParseAnchor(raw, opts.UseFirstUnread)
		if err != nil {
			return formatter.Fail("invalid anchor", err)
		}
	}

	st, err := openStore(ctx, opts.Config)
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer st.Close()

	engine, err := newEngine(opts.Config, st)
	if err != nil {
		return formatter.Fail("configure engine", err)
	}
	req, err := loadRequest(ctx, st, opts.Realm, opts.User, n)
	if err != nil {
		return formatter.Fail("load viewer", err)
	}

	res, err := engine.Fetch(ctx, req, spec, ids)
	if err != nil {
		return formatter.Fail("fetch failed", err)
	}
	formatter.VerboseLog("Fetched %d message(s)", len(res.Rows))

	return formatter.Success(res, func(w io.Writer) { printFetched(w, res) })
}

func printFetched(w io.Writer, res *fetch.FetchedMessages) {
	anchor := "none"
	if res.Anchor != nil {
		anchor = fmt.Sprint(*res.Anchor)
		if *res.Anchor >= model.MaxSentinel {
			anchor = "newest"
		}
	}
	fmt.Fprintf(w, "%d message(s), anchor %s\n", len(res.Rows), anchor)
	for _, r := range res.Rows {
		line := fmt.Sprintf("  %d", r.ID)
		if r.Flags != nil {
			line += fmt.Sprintf("  flags=%d", *r.Flags)
		}
		if r.EscapedTopic != "" {
			line += fmt.Sprintf("  topic=%q", r.EscapedTopic)
		}
		fmt.Fprintln(w, line)
	}

	var found []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"anchor", res.FoundAnchor},
		{"oldest", res.FoundOldest},
		{"newest", res.FoundNewest},
		{"history_limited", res.HistoryLimited},
	} {
		if f.set {
			found = append(found, f.name)
		}
	}
	if len(found) > 0 {
		fmt.Fprintf(w, "found: %s\n", strings.Join(found, ", "))
	}
	fmt.Fprintf(w, "include_history=%t search=%t\n", res.IncludeHistory, res.IsSearch)
}
