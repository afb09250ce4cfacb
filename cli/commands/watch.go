package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/config"
	"github.com/satishbabariya/dbre/cli/internal/ui"
	"github.com/satishbabariya/dbre/cli/internal/watch"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-plan whenever the configuration or manifest changes",
	Long: `Watch announces the current schema, then prints a fresh plan each time
the manifest, the config file or database.properties changes.

A manifest change re-reads the live database. A config or properties change
reloads the configuration first, so a new connection or table filter takes
effect; an invalid configuration keeps the previous one.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := &watchSession{}
	if err := session.attach(ctx, a, false); err != nil {
		return err
	}
	defer session.close()

	files := append([]string{config.PropertiesFile, a.cfg.ManifestPath}, a.cfg.Files...)
	watcher, err := watch.NewWatcher(existingDirs(files), func(path string) error {
		return session.changed(ctx, path)
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.Start()

	ui.PrintSuccess("Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	ui.PrintInfo("Stopping watch mode...")
	return nil
}

// watchSession prints a plan for every database its app publishes. A
// manifest change re-reads the database; any other change reloads the
// configuration and rebuilds the app first.
type watchSession struct {
	mu     sync.Mutex
	app    *app
	schema *model.Schema
	remove func()
}

// attach makes a the current app. The first attach announces the schema
// through Start; later ones force a live read so a changed connection is
// used right away.
func (w *watchSession) attach(ctx context.Context, a *app, refresh bool) error {
	remove := a.service.AddListener(ctx, snapshot.ListenerFunc(func(db *model.Database) error {
		plan, _, err := a.plan(db)
		if err != nil {
			return err
		}
		ui.PrintSection("Schema " + db.Schema.Name)
		printPlan(plan)
		return nil
	}))

	schema, err := a.schema(ctx)
	if err == nil {
		if refresh {
			_, err = a.service.Get(ctx, schema, snapshot.ReadMode{ForceRefresh: true})
		} else {
			err = a.service.Start(ctx, schema)
		}
	}
	if err != nil {
		remove()
		if errors.Is(err, snapshot.ErrSchemaRequired) {
			return config.ErrNoSchema
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.remove != nil {
		w.remove()
	}
	w.app, w.schema, w.remove = a, schema, remove
	return nil
}

func (w *watchSession) changed(ctx context.Context, path string) error {
	ui.PrintInfo("%s changed, refreshing...", path)
	w.mu.Lock()
	a, schema := w.app, w.schema
	w.mu.Unlock()

	if manifest, err := filepath.Abs(a.cfg.ManifestPath); err == nil && manifest == path {
		_, err := a.service.Get(ctx, schema, snapshot.ReadMode{ForceRefresh: true})
		return err
	}

	next, err := newApp()
	if err != nil {
		ui.PrintWarning("Keeping the previous configuration: %v", err)
		return err
	}
	return w.attach(ctx, next, true)
}

func (w *watchSession) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.remove != nil {
		w.remove()
		w.remove = nil
	}
}

// existingDirs drops files whose directory does not exist yet.
func existingDirs(files []string) []string {
	var out []string
	for _, f := range files {
		if ok, err := afero.DirExists(config.AppFs, filepath.Dir(f)); err == nil && ok {
			out = append(out, f)
		}
	}
	return out
}
