package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/narrow/internal/config"
	"github.com/roach88/narrow/internal/fetch"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/observability"
	"github.com/roach88/narrow/internal/querysql"
	"github.com/roach88/narrow/internal/search"
	"github.com/roach88/narrow/internal/store"
)

// InputError reports narrow or seed input that could not be read.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// readInput returns the bytes named by arg: "-" is stdin, "@path" a file,
// anything else the literal text.
func readInput(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, &InputError{Source: "stdin", Err: err}
		}
		return data, nil
	case strings.HasPrefix(arg, "@"):
		path := strings.TrimPrefix(arg, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &InputError{Source: path, Err: err}
		}
		return data, nil
	default:
		return []byte(arg), nil
	}
}

// loadNarrow reads and parses a narrow argument.
func loadNarrow(arg string, stdin io.Reader) (narrow.Narrow, error) {
	data, err := readInput(arg, stdin)
	if err != nil {
		return nil, err
	}
	return narrow.ParseNarrow(data)
}

// openStore opens the configured database.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.OpenDriver(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Search.Backend == "keyword" && st.Dialect() == querysql.Postgres {
		if err := st.EnableKeywordSearch(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	slog.Debug("opened store", "driver", cfg.Database.Driver, "dialect", st.Dialect().String())
	return st, nil
}

// newEngine builds a fetch engine over st from the configuration.
// Metrics go to a private registry so repeated commands in one process
// never collide.
func newEngine(cfg config.Config, st *store.Store) (*fetch.Engine, error) {
	strategy, err := search.New(cfg.Search.Backend, cfg.Search.Config)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics(cfg.Metrics.Namespace, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return fetch.New(st, fetch.WithSearch(strategy), fetch.WithMetrics(metrics)), nil
}

// loadRequest resolves the realm and, unless userID is zero, the viewer.
func loadRequest(ctx context.Context, st *store.Store, realmID, userID int64, n narrow.Narrow) (fetch.Request, error) {
	realm, err := st.LoadRealm(ctx, realmID)
	if err != nil {
		return fetch.Request{}, err
	}
	req := fetch.Request{Realm: realm, Narrow: n}
	if userID == 0 {
		return req, nil
	}
	viewer, err := st.LoadViewer(ctx, userID)
	if err != nil {
		return fetch.Request{}, err
	}
	if viewer.RealmID != realm.ID {
		return fetch.Request{}, fmt.Errorf("user %d in realm %d: %w", userID, realm.ID, model.ErrNotFound)
	}
	req.Viewer = viewer
	return req, nil
}
