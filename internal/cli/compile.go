package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/narrow/internal/narrow"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Realm int64
	User  int64 // zero compiles for an anonymous viewer
}

// CompilationResult is a narrow lowered to SQL, before windowing.
type CompilationResult struct {
	Narrow         narrow.Narrow `json:"narrow"`
	Dialect        string        `json:"dialect"`
	SQL            string        `json:"sql"`
	Args           []any         `json:"args"`
	IsSearch       bool          `json:"is_search"`
	IsDMNarrow     bool          `json:"is_dm_narrow"`
	IncludeHistory bool          `json:"include_history"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <narrow>",
		Short: "Compile a narrow to SQL",
		Long: `Normalize a narrow, compile it onto the viewer's base query and print
the SQL with its bind arguments. Directory lookups (channels, users,
mutes) read the configured store; messages are never read.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Realm, "realm", 1, "realm id")
	cmd.Flags().Int64Var(&opts.User, "user", 0, "viewer user id (0 for anonymous)")

	return cmd
}

func runCompile(opts *CompileOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	n, err := loadNarrow(arg, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("invalid narrow", err)
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

	compiled, err := engine.Compile(ctx, req)
	if err != nil {
		return formatter.Fail("compile failed", err)
	}
	formatter.VerboseLog("Compiled %d term(s) for realm %d", len(compiled.Narrow), req.Realm.ID)

	result := CompilationResult{
		Narrow:         compiled.Narrow,
		Dialect:        st.Dialect().String(),
		SQL:            compiled.SQL,
		Args:           compiled.Args,
		IsSearch:       compiled.IsSearch,
		IsDMNarrow:     compiled.IsDMNarrow,
		IncludeHistory: compiled.IncludeHistory,
	}
	if result.Args == nil {
		result.Args = []any{}
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.SQL)
		fmt.Fprintf(w, "-- args: %v\n", result.Args)
		fmt.Fprintf(w, "-- dialect=%s search=%t dm=%t include_history=%t\n",
			result.Dialect, result.IsSearch, result.IsDMNarrow, result.IncludeHistory)
	})
}
