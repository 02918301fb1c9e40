package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/narrow/internal/store"
)

// SeedResult counts what a seed wrote.
type SeedResult struct {
	Realms   int `json:"realms"`
	Users    int `json:"users"`
	Channels int `json:"channels"`
	Messages int `json:"messages"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load a YAML seed into the configured store",
		Long: `Load realms, users, channels, subscriptions and messages from a YAML
seed file into the configured store in one transaction. Pass "-" to read
stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	data, err := readSeed(path, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("read seed", err)
	}
	seed, err := store.ParseSeed(data)
	if err != nil {
		return formatter.Fail("read seed", &InputError{Source: path, Err: err})
	}

	st, err := openStore(ctx, opts.Config)
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer st.Close()

	if err := st.WriteSeed(ctx, seed); err != nil {
		return formatter.Fail("write seed", err)
	}

	result := SeedResult{
		Realms:   len(seed.Realms),
		Users:    len(seed.Users),
		Channels: len(seed.Channels),
		Messages: len(seed.Messages),
	}
	formatter.VerboseLog("Seeded %s store from %s", opts.Config.Database.Driver, path)
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ seeded %d realm(s), %d user(s), %d channel(s), %d message(s)\n",
			result.Realms, result.Users, result.Channels, result.Messages)
	})
}

func readSeed(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return readInput(path, stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	return data, nil
}
