package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mdversion/internal/app"
	"mdversion/internal/config"
	"mdversion/internal/domain"
	"mdversion/internal/engine"
	"mdversion/internal/migrate"
	"mdversion/internal/repo"
	"mdversion/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "mdv",
	Short: "mdversion CLI",
	Long: `mdversion keeps an append-only version history for JSON metadata documents.
- Document: identified by type and name, owns versions 1..N in creation order.
- Version: immutable content snapshot with a publishing state (DRAFT, APPROVED, PUBLISHED, ARCHIVED).
- Active version: at most one PUBLISHED version per document is served as current.
- Compare: structural diff between two versions; removals are breaking.
- Schemas: optional JSON Schema per document type, strict or warning-only.
- Event log: audit trail of every mutation, view with 'mdv log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MDVERSION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/mdversion.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier recorded as author")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human readable logs")
	flags.String("jwt-secret", "", "HS256 secret for bearer tokens")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "log-level", "log-pretty", "jwt-secret"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(activateCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(activeCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

type contentFlags struct {
	content string
	file    string
	summary string
}

func (f *contentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.content, "content", "", "JSON content")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read JSON content from file (- for stdin)")
	cmd.Flags().StringVarP(&f.summary, "summary", "m", "", "change summary")
}

func (f *contentFlags) read() ([]byte, error) {
	switch {
	case f.content != "" && f.file != "":
		return nil, errors.New("use either --content or --file")
	case f.content != "":
		return []byte(f.content), nil
	case f.file == "-":
		return io.ReadAll(os.Stdin)
	case f.file != "":
		return os.ReadFile(f.file)
	default:
		return nil, errors.New("--content or --file required")
	}
}

func createCmd() *cobra.Command {
	var in contentFlags
	cmd := &cobra.Command{
		Use:   "create <type> <name>",
		Short: "Create a document with its first version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := in.read()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateFirstVersion(ctx, engine.VersionInput{
					Type:          args[0],
					Name:          args[1],
					Content:       content,
					Author:        viper.GetString("actor-id"),
					ChangeSummary: in.summary,
				})
				if err != nil {
					return err
				}
				return printVersionResult(res)
			})
		},
	}
	in.bind(cmd)
	return cmd
}

func versionCmd() *cobra.Command {
	ver := &cobra.Command{Use: "version", Short: "Manage versions"}
	ver.AddCommand(versionAddCmd())
	return ver
}

func versionAddCmd() *cobra.Command {
	var in contentFlags
	cmd := &cobra.Command{
		Use:   "add <type> <name>",
		Short: "Append a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := in.read()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateNewVersion(ctx, engine.VersionInput{
					Type:          args[0],
					Name:          args[1],
					Content:       content,
					Author:        viper.GetString("actor-id"),
					ChangeSummary: in.summary,
				})
				if err != nil {
					return err
				}
				return printVersionResult(res)
			})
		},
	}
	in.bind(cmd)
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <type> <name>",
		Short: "Show version history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				history, err := e.GetVersionHistory(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(history)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Version", "State", "Active", "Author", "Created", "Summary"})
				for _, v := range history {
					active := ""
					if v.IsActive() {
						active = "*"
					}
					tw.AppendRow(table.Row{v.Number(), v.State(), active, v.Author(), v.CreatedAt().Format(time.RFC3339), v.ChangeSummary()})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <type> <name> <version>",
		Short: "Show one version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[2])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetSpecificVersion(ctx, args[0], args[1], n)
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	}
}

func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <type> <name> <version>",
		Short: "Make a published version the active one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[2])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ActivateVersion(ctx, args[0], args[1], n, viper.GetString("actor-id")); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"type": args[0], "name": args[1], "active_version": n})
				}
				fmt.Printf("Activated %s/%s v%d\n", args[0], args[1], n)
				return nil
			})
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <type> <name> <version> <DRAFT|APPROVED|PUBLISHED|ARCHIVED>",
		Short: "Move a version through its publishing lifecycle",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[2])
			if err != nil {
				return err
			}
			target, err := domain.ParsePublishingState(args[3])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.TransitionVersion(ctx, args[0], args[1], n, target, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				fmt.Printf("%s/%s v%d is now %s\n", args[0], args[1], v.Number(), v.State())
				return nil
			})
		},
	}
}

func activeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active <type> <name>",
		Short: "Show the active version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, ok, err := e.GetActiveVersion(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no active version for %s/%s", args[0], args[1])
				}
				return printJSON(v)
			})
		},
	}
}

func compareCmd() *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "compare <type> <name> <from> <to>",
		Short: "Compare the content of two versions",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseVersion(args[2])
			if err != nil {
				return err
			}
			to, err := parseVersion(args[3])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cmp, err := e.CompareVersions(ctx, args[0], args[1], from, to)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"from_version":         cmp.FromVersion(),
						"to_version":           cmp.ToVersion(),
						"has_breaking_changes": cmp.HasBreakingChanges(),
						"summary":              cmp.Summary(),
						"changes":              cmp.Changes(),
					})
				}
				s := cmp.Summary()
				fmt.Printf("v%d -> v%d: %d added, %d modified, %d removed", from, to, s.Added, s.Modified, s.Removed)
				if cmp.HasBreakingChanges() {
					fmt.Print(" (BREAKING)")
				}
				fmt.Println()
				if !cmp.HasChanges() {
					return nil
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Change", "Path", "Old", "New"})
				for _, c := range cmp.Changes() {
					tw.AppendRow(table.Row{c.Type, c.Path, formatValue(c.OldValue), formatValue(c.NewValue)})
				}
				tw.Render()
				if text {
					for _, c := range cmp.Changes() {
						if line, ok := textChange(c); ok {
							fmt.Printf("%s: %s\n", c.Path, line)
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "show character diffs for modified strings")
	return cmd
}

func listCmd() *cobra.Command {
	var opts engine.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDocuments(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Type", "Name", "Versions", "Latest", "Active", "Updated"})
				for _, d := range items {
					active := "-"
					if d.ActiveVersion != nil {
						active = strconv.Itoa(*d.ActiveVersion)
					}
					tw.AppendRow(table.Row{d.Type, d.Name, d.VersionCount, d.LatestVersion, active, d.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "document type filter")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "max documents")
	return cmd
}

func schemaCmd() *cobra.Command {
	sc := &cobra.Command{
		Use:   "schema",
		Short: "Manage content schemas",
		Long:  "A schema is a JSON Schema bound to a document type. Strict schemas reject violating content; others only warn.",
	}
	sc.AddCommand(schemaSetCmd())
	sc.AddCommand(schemaShowCmd())
	sc.AddCommand(schemaListCmd())
	sc.AddCommand(schemaDeleteCmd())
	return sc
}

func schemaSetCmd() *cobra.Command {
	var (
		file, description string
		strict            bool
	)
	cmd := &cobra.Command{
		Use:   "set <type>",
		Short: "Create or replace the schema for a document type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := (&contentFlags{file: file}).read()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.SchemaInput{
					Type:        args[0],
					Schema:      raw,
					Description: description,
					StrictMode:  strict,
					ActorID:     viper.GetString("actor-id"),
				}
				def, err := e.UpdateSchema(ctx, in)
				if errors.Is(err, domain.ErrSchemaNotFound) {
					def, err = e.CreateSchema(ctx, in)
				}
				if err != nil {
					return err
				}
				return printJSON(def)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON Schema file (- for stdin)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject content that violates the schema")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func schemaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <type>",
		Short: "Show the schema for a document type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				def, err := e.GetSchema(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(def)
			})
		},
	}
}

func schemaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				defs, err := e.ListSchemas(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(defs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Type", "Strict", "Description", "Updated"})
				for _, d := range defs {
					tw.AppendRow(table.Row{d.Type, d.StrictMode, d.Description, d.UpdatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func schemaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type>",
		Short: "Remove the schema for a document type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteSchema(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate non-interactive clients with the X-Api-Key header. Keys act with the default role.",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.CreateAPIKey(ctx, actorID, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": secret})
				}
				fmt.Printf("API key created for %s (id %s)\n", key.ActorID, key.ID)
				fmt.Printf("Key: %s\n", secret)
				fmt.Println("Store this key now; it will not be shown again.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id the key acts as")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAPIKey(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the actor (needs MDVERSION_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.SignToken(viper.GetString("jwt-secret"), viper.GetString("actor-id"), roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to embed (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every mutation appends an event: document and version creation, activation, state changes, schemas and API keys.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Correlation"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.ActorID, evt.CorrelationID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.DocType, "doc-type", "", "document type filter")
	cmd.Flags().StringVar(&f.DocName, "doc-name", "", "document name filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace config",
		Long:  "mdversion.yml holds server, limits, cache, auth roles, logging and webhook settings. Without a file the defaults apply.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default mdversion.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Database migrations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				applied, err := migrate.Status(ctx, rt.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(applied)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Version", "Name", "Applied"})
				for _, a := range applied {
					tw.AppendRow(table.Row{a.Version, a.Name, a.AppliedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			rt, err := openRuntime(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			defer rt.Close()
			log := rt.Log.Component("serve")

			if addr == "" {
				addr = rt.Config.Server.Addr
			}
			if basePath == "" {
				basePath = rt.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:              viper.GetString("jwt-secret"),
				AllowLegacyActorHeader: rt.Config.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				log.Warn().Msg("MDVERSION_JWT_SECRET not set; bearer tokens are rejected, only API keys authenticate")
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: basePath,
				Auth:     authCfg,
				Log:      rt.Log,
				Metrics:  rt.Metrics,
			})
			if err != nil {
				return err
			}
			waitWebhooks := server.StartWebhooks(ctx, rt.Engine, rt.Log, rt.Metrics)
			defer waitWebhooks()

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving mdversion API (OpenAPI at <base>/openapi.json, Swagger UI at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

// --- helpers ---

func openRuntime(level string) (*app.Runtime, error) {
	return app.Open(app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		LogLevel:   level,
		LogPretty:  viper.GetBool("log-pretty"),
		LogOutput:  os.Stderr,
	})
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	level := viper.GetString("log-level")
	if level == "" {
		level = "warn"
	}
	rt, err := openRuntime(level)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, rt.Engine)
	})
}

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(viper.GetString("workspace"))
}

func parseVersion(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "v"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version %q", raw)
	}
	return n, nil
}

func printVersionResult(res engine.VersionResult) error {
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if viper.GetBool("json") {
		return printJSON(res.Version)
	}
	v := res.Version
	fmt.Printf("Created v%d (%s) by %s\n", v.Number(), v.State(), v.Author())
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
