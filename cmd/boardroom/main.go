package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"boardroom/internal/app"
	"boardroom/internal/config"
	"boardroom/internal/db"
	"boardroom/internal/domain"
	"boardroom/internal/repo"
	"boardroom/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "boardroom",
	Short: "Boardroom CLI",
	Long: `Boardroom puts a founder's idea in front of a board of AI advisors.
Core concepts:
- Idea: the pitch everything hangs off; it stays locked until the gatekeeper rates it VIABLE or FIRE.
- Gatekeeper: asks pointed questions, then renders a verdict (TRASH, MID, VIABLE, FIRE).
- Personas: twelve advisors (CEO, CTO, CFO, ...) you can talk to one on one once the idea is unlocked.
- Routed chat: the router picks the best advisor for each message.
- Panel: four seats debate in turn and the operations persona summarizes, creating tasks as it goes.
- Tasks: the idea's action list, written by you or by the operations persona.
- Workspace: the directory holding boardroom.yml, .env, and the .boardroom database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("BOARDROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/boardroom.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner", "local-founder", "owner id for local idea commands")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(ideaCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(transcriptCmd())
	rootCmd.AddCommand(personaCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default boardroom.yml and create the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				fmt.Printf("Wrote %s\n", path)
				fmt.Printf("Set %s to enable the %s backend.\n", a.Config.Generation.APIKeyEnv, a.Config.Generation.Provider)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long:  "boardroom.yml tunes the provider, the router's keyword scoring, the panel seats, the gatekeeper threshold, and the server.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func ideaCmd() *cobra.Command {
	idea := &cobra.Command{Use: "idea", Short: "Manage ideas"}

	var description string
	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an idea",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				i, err := a.Repo.CreateIdea(ctx, domain.Idea{
					OwnerID:     viper.GetString("owner"),
					Title:       strings.Join(args, " "),
					Description: description,
				})
				if err != nil {
					return err
				}
				return printJSON(i)
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "idea description")
	idea.AddCommand(create)

	idea.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ideas, err := a.Repo.ListIdeas(ctx, viper.GetString("owner"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ideas)
				}
				tw := newTable("ID", "Title", "Verdict", "Unlocked", "Created")
				for _, i := range ideas {
					verdict := ""
					if i.Verdict != nil {
						verdict = string(*i.Verdict)
					}
					tw.AppendRow(table.Row{i.ID, i.Title, verdict, i.Unlocked(), i.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})

	idea.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show an idea with its dashboard analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				i, err := a.Repo.GetOwnedIdea(ctx, args[0], viper.GetString("owner"))
				if err != nil {
					return err
				}
				return printJSON(i)
			})
		},
	})

	idea.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an idea with its transcripts and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Repo.GetOwnedIdea(ctx, args[0], viper.GetString("owner")); err != nil {
					return err
				}
				if err := a.Repo.DeleteIdea(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return idea
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage an idea's tasks"}
	var ideaID string
	task.PersistentFlags().StringVar(&ideaID, "idea", "", "idea id")
	_ = task.MarkPersistentFlagRequired("idea")

	task.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Repo.ListTasks(ctx, ideaID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := newTable("ID", "Title", "Status", "Priority", "Assignee", "Due")
				for _, t := range tasks {
					assignee := ""
					if t.AssigneeID != nil {
						assignee = a.Personas.Name(*t.AssigneeID)
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, assignee, stringOrEmpty(t.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	})

	var add struct{ description, priority, assignee, due string }
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if add.assignee != "" && !a.Personas.Has(add.assignee) {
					return fmt.Errorf("unknown persona %q", add.assignee)
				}
				owner := viper.GetString("owner")
				t, err := a.Repo.CreateTask(ctx, domain.Task{
					IdeaID:      ideaID,
					Title:       strings.Join(args, " "),
					Description: add.description,
					Priority:    domain.TaskPriority(add.priority),
					AssigneeID:  optionalString(add.assignee),
					CreatedBy:   &owner,
					DueDate:     optionalString(add.due),
				})
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	addCmd.Flags().StringVar(&add.description, "description", "", "task description")
	addCmd.Flags().StringVar(&add.priority, "priority", "", "low, medium, high, or urgent")
	addCmd.Flags().StringVar(&add.assignee, "assignee", "", "persona id")
	addCmd.Flags().StringVar(&add.due, "due", "", "due date (YYYY-MM-DD)")
	task.AddCommand(addCmd)

	var upd struct{ title, status, priority, assignee string }
	updateCmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.TaskPatch
			if cmd.Flags().Changed("title") {
				p.Title = &upd.title
			}
			if cmd.Flags().Changed("status") {
				s := domain.TaskStatus(upd.status)
				p.Status = &s
			}
			if cmd.Flags().Changed("priority") {
				pr := domain.TaskPriority(upd.priority)
				p.Priority = &pr
			}
			if cmd.Flags().Changed("assignee") {
				p.AssigneeID = &upd.assignee
			}
			if p.Empty() {
				return errors.New("nothing to update; pass --title, --status, --priority, or --assignee")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if upd.assignee != "" && !a.Personas.Has(upd.assignee) {
					return fmt.Errorf("unknown persona %q", upd.assignee)
				}
				t, err := a.Repo.UpdateTask(ctx, ideaID, args[0], p, viper.GetString("owner"))
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	updateCmd.Flags().StringVar(&upd.title, "title", "", "task title")
	updateCmd.Flags().StringVar(&upd.status, "status", "", "todo, in-progress, done, or blocked")
	updateCmd.Flags().StringVar(&upd.priority, "priority", "", "low, medium, high, or urgent")
	updateCmd.Flags().StringVar(&upd.assignee, "assignee", "", "persona id (empty clears)")
	task.AddCommand(updateCmd)

	task.AddCommand(&cobra.Command{
		Use:   "rm <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Repo.DeleteTask(ctx, ideaID, args[0], viper.GetString("owner")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return task
}

func transcriptCmd() *cobra.Command {
	tr := &cobra.Command{
		Use:   "transcript",
		Short: "Read or clear an idea's conversations",
		Long:  "Transcripts are partitioned by mode (direct, routed, panel, gatekeeper) and, for direct chats, by persona.",
	}
	var f domain.MessageFilter
	var mode string
	tr.PersistentFlags().StringVar(&f.IdeaID, "idea", "", "idea id")
	tr.PersistentFlags().StringVar(&mode, "mode", "", "direct, routed, panel, or gatekeeper")
	tr.PersistentFlags().StringVar(&f.PersonaID, "persona", "", "persona id")
	_ = tr.MarkPersistentFlagRequired("idea")
	parse := func() error {
		if mode == "" {
			return nil
		}
		m, ok := domain.ParseMode(mode)
		if !ok {
			return fmt.Errorf("unknown mode %q", mode)
		}
		f.Mode = m
		return nil
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := parse(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				msgs, err := a.Repo.ListMessages(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(msgs)
				}
				for _, m := range msgs {
					speaker := "You"
					if m.Role == domain.RoleAssistant {
						speaker = a.Personas.Name(m.PersonaID)
					}
					fmt.Printf("[%s] %s:\n%s\n\n", m.Mode, speaker, m.Content)
				}
				return nil
			})
		},
	}
	show.Flags().IntVar(&f.Limit, "limit", 0, "only the most recent entries")
	tr.AddCommand(show)

	tr.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete a transcript partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := parse(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				removed, err := a.Repo.ClearMessages(ctx, f, viper.GetString("owner"))
				if err != nil {
					return err
				}
				fmt.Printf("removed %d messages\n", removed)
				return nil
			})
		},
	})
	return tr
}

func personaCmd() *cobra.Command {
	p := &cobra.Command{Use: "persona", Short: "Inspect the advisor roster"}
	p.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				all := a.Personas.All()
				if viper.GetBool("json") {
					return printJSON(all)
				}
				tw := newTable("ID", "Name", "Title", "Expertise", "Calls", "Routable")
				for _, per := range all {
					name := per.Emoji + " " + per.Name
					if per.ID == a.Personas.Default().ID {
						name += " (default)"
					}
					tw.AppendRow(table.Row{per.ID, name, per.Title, strings.Join(per.Expertise, ", "), per.CanCall, per.Routable})
				}
				tw.Render()
				return nil
			})
		},
	})
	return p
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
		Long:  "The diary of an idea: task changes, verdicts, and cleared transcripts.",
	}
	var ideaID string
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show an idea's latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.ListEvents(ctx, ideaID, 0, 10000)
				if err != nil {
					return err
				}
				if len(events) > n {
					events = events[len(events)-n:]
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "Time", "Type", "Entity", "Actor")
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().StringVar(&ideaID, "idea", "", "idea id")
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	_ = tail.MarkFlagRequired("idea")
	log.AddCommand(tail)
	return log
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	var save bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --owner with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			secret := os.Getenv(cfg.Server.JWTSecretEnv)
			if secret == "" {
				return fmt.Errorf("%s is not set", cfg.Server.JWTSecretEnv)
			}
			tok, err := server.SignToken(secret, viper.GetString("owner"), ttl)
			if err != nil {
				return err
			}
			if save {
				envPath := filepath.Join(viper.GetString("workspace"), ".env")
				if err := setEnvValue(envPath, "BOARDROOM_TOKEN", tok); err != nil {
					return err
				}
				fmt.Printf("saved BOARDROOM_TOKEN to %s\n", envPath)
				return nil
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the workspace .env as BOARDROOM_TOKEN")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				sc := a.Config.Server
				if cmd.Flags().Changed("addr") {
					sc.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					sc.BasePath = basePath
				}
				if cmd.Flags().Changed("dev-login") {
					sc.DevLogin = devLogin
				}
				secret := os.Getenv(sc.JWTSecretEnv)
				if secret == "" {
					if !sc.DevLogin {
						return fmt.Errorf("%s is required for bearer auth", sc.JWTSecretEnv)
					}
					secret = uuid.NewString() + uuid.NewString()
					a.Logger.Warn("no jwt secret set; dev tokens are signed with an ephemeral secret", zap.String("env", sc.JWTSecretEnv))
				}
				handler, err := server.New(server.Config{
					Engine:      a.Engine,
					Repo:        a.Repo,
					BasePath:    sc.BasePath,
					Auth:        server.AuthConfig{JWTSecret: secret, DevLogin: sc.DevLogin},
					Logger:      a.Logger,
					Metrics:     a.Metrics,
					TurnTimeout: sc.TurnTimeout,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: sc.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				a.Logger.Info("serving",
					zap.String("addr", sc.Addr),
					zap.String("base_path", sc.BasePath),
					zap.String("provider", a.Gateway.Provider()),
					zap.Bool("dev_login", sc.DevLogin))
				fmt.Printf("Serving Boardroom API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", sc.Addr, sc.BasePath, sc.BasePath)
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := fn(ctx, a); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w (check --owner and the id)", err)
		}
		return err
	}
	return nil
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
