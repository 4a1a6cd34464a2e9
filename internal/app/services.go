package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/config"
	"github.com/willibrandon/studio/internal/db"
	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/sqlexec"
	"github.com/willibrandon/studio/internal/storage/sqlite"
)

// Services are the long-lived collaborators shared by the console, the
// CLI commands and the HTTP API.
type Services struct {
	Config   *config.Config
	Registry *db.Registry
	Executor sqlexec.Executor
	Cache    *querycache.Cache
	Reader   *privileges.Reader
	Access   *privileges.Service
	History  *sqlite.HistoryStore

	historyDB *sqlite.DB
}

// NewServices wires the pool registry, the executor and the query cache
// for cfg. interactive allows password prompts on the terminal.
func NewServices(cfg *config.Config, interactive bool) *Services {
	registry := db.NewRegistry(cfg.Projects, db.WithInteractivePassword(interactive))

	s := &Services{Config: cfg, Registry: registry}

	var opts []sqlexec.Option
	if cfg.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
			logger.Warn("Execution history disabled", "error", err)
		} else if historyDB, err := sqlite.Open(cfg.History.Path); err != nil {
			logger.Warn("Execution history disabled", "path", cfg.History.Path, "error", err)
		} else {
			s.historyDB = historyDB
			s.History = sqlite.NewHistoryStore(historyDB, cfg.History.MaxEntries)
			opts = append(opts, sqlexec.WithRecorder(s.History))
		}
	}

	s.Executor = sqlexec.NewPoolExecutor(registry, opts...)
	s.Cache = querycache.New()
	s.Reader = privileges.NewReader(s.Executor, s.Cache)
	s.Access = privileges.NewService(s.Reader, s.Cache)
	return s
}

// Project resolves ref, or the default project when ref is empty.
func (s *Services) Project(ref string) (privileges.ProjectVars, error) {
	p, ok := s.Config.Project(ref)
	if !ok {
		if ref == "" {
			ref = s.Config.DefaultProject
		}
		return privileges.ProjectVars{}, fmt.Errorf("%w: %s", db.ErrUnknownProject, ref)
	}
	return privileges.ProjectVars{ProjectRef: p.Ref, ConnectionString: p.ConnectionString}, nil
}

// Mutator creates an API-access mutator reporting failures to notifier.
func (s *Services) Mutator(notifier privileges.Notifier) *privileges.Mutator {
	return privileges.NewMutator(s.Executor, s.Cache, notifier)
}

// Buckets creates the largest-size-limits query for a project.
func (s *Services) Buckets(project privileges.ProjectVars) *buckets.LargestSizeLimitsQuery {
	return buckets.NewLargestSizeLimitsQuery(s.Executor, s.Cache, buckets.ConnectionVars{
		ProjectRef:       project.ProjectRef,
		ConnectionString: project.ConnectionString,
	}, s.Config.Storage.SizeLimitScanThreshold)
}

// ServerVersion opens the project's pool and reads the server version.
func (s *Services) ServerVersion(ctx context.Context, project privileges.ProjectVars) (string, error) {
	pool, err := s.Registry.Pool(ctx, project.ProjectRef, project.ConnectionString)
	if err != nil {
		return "", err
	}
	return db.GetServerVersion(ctx, pool)
}

// Close releases pools and the history database.
func (s *Services) Close() {
	s.Registry.Close()
	if s.historyDB != nil {
		if err := s.historyDB.Close(); err != nil {
			logger.Warn("Closing history database failed", "error", err)
		}
	}
}
