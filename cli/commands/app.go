package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/config"
	"github.com/satishbabariya/dbre/cli/internal/manifest"
	"github.com/satishbabariya/dbre/inference"
	"github.com/satishbabariya/dbre/introspect"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/reconcile"
	"github.com/satishbabariya/dbre/snapshot"
)

// app wires the configured pipeline for one command.
type app struct {
	cfg     *config.Config
	service *snapshot.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if schemaFlag != "" {
		cfg.Schema = schemaFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := introspect.NewSQLProvider(cfg.Connection)
	if err != nil {
		return nil, err
	}
	source, err := introspect.NewSource(provider, cfg.Filter())
	if err != nil {
		return nil, err
	}
	store := snapshot.NewStore(config.AppFs, cfg.SnapshotPath)
	service := snapshot.NewService(source, store, snapshot.Defaults{
		Namespace: cfg.Namespace,
		Options:   cfg.Options,
	})
	return &app{cfg: cfg, service: service}, nil
}

// askSchema prompts for one of the listed schemas.
var askSchema = func(options []string) (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "Schema to introspect:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return choice, nil
}

// schema returns the schema the command works on: the configured one, the
// only one the database has, or one picked interactively. nil lets the
// service fall back to the last schema read or the stored snapshot.
func (a *app) schema(ctx context.Context) (*model.Schema, error) {
	if s := a.cfg.SchemaRef(); s != nil {
		return s, nil
	}
	schemas, err := a.service.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	if len(schemas) == 1 {
		return &schemas[0], nil
	}
	if !interactive {
		return nil, nil
	}
	if len(schemas) == 0 {
		return nil, config.ErrNoSchema
	}
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	choice, err := askSchema(names)
	if err != nil {
		return nil, fmt.Errorf("select schema: %w", err)
	}
	s := model.NewSchema(choice)
	return &s, nil
}

func (a *app) database(ctx context.Context, mode snapshot.ReadMode) (*model.Database, error) {
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}
	if schema == nil && mode.SafeMode {
		return nil, config.ErrNoSchema
	}
	db, err := a.service.Get(ctx, schema, mode)
	if errors.Is(err, snapshot.ErrSchemaRequired) {
		return nil, config.ErrNoSchema
	}
	return db, err
}

// plan reconciles db against the manifest.
func (a *app) plan(db *model.Database) (*reconcile.Plan, *manifest.Manifest, error) {
	res, err := inference.NewEngine().Infer(db)
	if err != nil {
		return nil, nil, err
	}
	m, err := manifest.Load(config.AppFs, a.cfg.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	plan, err := reconcile.Reconcile(db, res, m.Managed(), reconcile.Options{
		Namespace:        a.cfg.Namespace,
		ProjectNamespace: a.cfg.ProjectNamespace,
		DefaultPolicy:    a.cfg.Policy,
	})
	if err != nil {
		return nil, nil, err
	}
	return plan, m, nil
}

// completeSchemas offers the database's schemas for --schema. Failures
// yield no suggestions.
func completeSchemas(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	a, err := newApp()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	schemas, err := a.service.Schemas(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
