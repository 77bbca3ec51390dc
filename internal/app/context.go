package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"growit/internal/config"
	"growit/internal/db"
	"growit/internal/progress"
)

// Context is the resolved local workspace: configuration, progress store
// and the stable anonymous analytics identity.
type Context struct {
	Workspace   string
	Config      *config.Config
	Progress    *progress.FileStore
	AnonymousID string
}

// Resolve loads growit.yml (or defaults) and sets up local state under
// <workspace>/.growit.
func Resolve(workspace string) (*Context, error) {
	if workspace == "" {
		workspace = "."
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	stateDir, err := db.EnsureWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	return &Context{
		Workspace:   workspace,
		Config:      cfg,
		Progress:    progress.NewFileStore(stateDir),
		AnonymousID: anonymousID(stateDir),
	}, nil
}

// anonymousID returns the persisted device identity, minting and saving a
// new UUID on first use. Unsaveable ids are still returned so analytics
// keeps working for the session.
func anonymousID(stateDir string) string {
	path := filepath.Join(stateDir, "anonymous_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	id := uuid.New().String()
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	return id
}
