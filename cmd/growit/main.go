package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"growit/internal/analytics"
	"growit/internal/app"
	"growit/internal/curriculum"
	"growit/internal/db"
	"growit/internal/engine"
	"growit/internal/migrate"
	"growit/internal/mission"
	"growit/internal/progress"
	"growit/internal/repo"
	"growit/internal/server"
	growitsdk "growit/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "growit",
	Short: "GrowIt CLI",
	Long: `GrowIt is a 10-day micro-learning companion for Figma.
Each day pairs a short lesson with a hands-on mission made of small gated
steps; finishing a day's mission unlocks the next day. Progress lives in
your local workspace, and an optional backend tracks study streaks.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GROWIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("curriculum", "", "curriculum id (overrides config default)")
	rootCmd.PersistentFlags().String("lang", "", "language code (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("curriculum", rootCmd.PersistentFlags().Lookup("curriculum"))
	_ = viper.BindPFlag("lang", rootCmd.PersistentFlags().Lookup("lang"))
}

func registerCommands() {
	rootCmd.AddCommand(curriculumCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// cli bundles everything a command needs: registry, workspace context and
// the background analytics emitter.
type cli struct {
	appCtx   *app.Context
	registry *curriculum.Registry
	emitter  *analytics.Emitter
	lang     string
}

func withCLI(fn func(c *cli) error) error {
	appCtx, err := app.Resolve(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	reg, err := curriculum.Load()
	if err != nil {
		return err
	}
	var client *growitsdk.Client
	if base := appCtx.Config.Analytics.BaseURL; base != "" {
		client = growitsdk.New(base)
		client.BearerToken = loadToken(appCtx)
	}
	c := &cli{
		appCtx:   appCtx,
		registry: reg,
		emitter:  analytics.NewEmitter(client, appCtx.AnonymousID, appCtx.Config.Analytics.Debug),
		lang:     viper.GetString("lang"),
	}
	if c.lang == "" {
		c.lang = appCtx.Config.App.Language
	}
	defer c.emitter.Close(2 * time.Second)
	return fn(c)
}

func (c *cli) curriculumID() string {
	if id := viper.GetString("curriculum"); id != "" {
		return id
	}
	return c.appCtx.Config.App.Curriculum
}

func (c *cli) curriculum() (curriculum.Curriculum, error) {
	return c.registry.Curriculum(c.curriculumID())
}

func (c *cli) sdkClient() (*growitsdk.Client, error) {
	base := c.appCtx.Config.Analytics.BaseURL
	if base == "" {
		return nil, fmt.Errorf("no server configured; set analytics.base_url in growit.yml")
	}
	client := growitsdk.New(base)
	client.BearerToken = loadToken(c.appCtx)
	return client, nil
}

func tokenPath(appCtx *app.Context) string {
	return filepath.Join(appCtx.Workspace, ".growit", "token")
}

func loadToken(appCtx *app.Context) string {
	data, err := os.ReadFile(tokenPath(appCtx))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func curriculumCmd() *cobra.Command {
	cur := &cobra.Command{Use: "curriculum", Short: "Browse curricula"}
	cur.AddCommand(curriculumListCmd())
	cur.AddCommand(curriculumShowCmd())
	return cur
}

func curriculumListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available curricula",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				type item struct {
					ID        string `json:"id"`
					Title     string `json:"title"`
					TotalDays int    `json:"total_days"`
					Completed int    `json:"completed_days"`
				}
				var items []item
				for _, id := range c.registry.IDs() {
					cur, err := c.registry.Curriculum(id)
					if err != nil {
						return err
					}
					items = append(items, item{
						ID:        cur.ID,
						Title:     cur.Title.Get(c.lang),
						TotalDays: len(cur.Days),
						Completed: len(c.appCtx.Progress.CompletedDays(cur.ID)),
					})
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Days", "Completed"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Title, it.TotalDays, it.Completed})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func curriculumShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the day-by-day plan with lock status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				cur, err := c.curriculum()
				if err != nil {
					return err
				}
				completed := map[int]bool{}
				for _, d := range c.appCtx.Progress.CompletedDays(cur.ID) {
					completed[d] = true
				}
				if viper.GetBool("json") {
					type dayItem struct {
						Day        int    `json:"day"`
						Title      string `json:"title"`
						Mission    string `json:"mission"`
						Completed  bool   `json:"completed"`
						Accessible bool   `json:"accessible"`
					}
					var items []dayItem
					for _, d := range cur.Days {
						items = append(items, dayItem{
							Day:        d.Day,
							Title:      d.Title.Get(c.lang),
							Mission:    d.Mission.Get(c.lang),
							Completed:  completed[d.Day],
							Accessible: progress.DayAccessible(c.appCtx.Progress, cur.ID, d.Day),
						})
					}
					return printJSON(items)
				}
				color.New(color.Bold).Println(cur.Title.Get(c.lang))
				fmt.Println(cur.Description.Get(c.lang))
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Day", "Title", "Mission", "Status"})
				for _, d := range cur.Days {
					status := "locked"
					switch {
					case completed[d.Day]:
						status = "done"
					case progress.DayAccessible(c.appCtx.Progress, cur.ID, d.Day):
						status = "open"
					}
					tw.AppendRow(table.Row{d.Day, d.Title.Get(c.lang), d.Mission.Get(c.lang), status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{Use: "mission", Short: "Run daily missions"}
	m.AddCommand(missionRunCmd())
	return m
}

func missionRunCmd() *cobra.Command {
	var day int
	var report bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a day's mission interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				cur, err := c.curriculum()
				if err != nil {
					return err
				}
				if _, ok := cur.Day(day); !ok {
					return fmt.Errorf("day %d not in curriculum %s", day, cur.ID)
				}
				if !progress.DayAccessible(c.appCtx.Progress, cur.ID, day) {
					color.Red("Day %d is locked. Complete day %d first.", day, day-1)
					return nil
				}
				m, err := c.registry.Mission(cur.ID, day)
				if err != nil {
					return err
				}
				runner := &missionRunner{
					cli:    c,
					cur:    cur,
					report: report,
					in:     bufio.NewScanner(os.Stdin),
				}
				return runner.run(cmd.Context(), m)
			})
		},
	}
	cmd.Flags().IntVar(&day, "day", 1, "day number")
	cmd.Flags().BoolVar(&report, "report", true, "report study minutes to the server when logged in")
	return cmd
}

type missionRunner struct {
	cli    *cli
	cur    curriculum.Curriculum
	report bool
	in     *bufio.Scanner
}

func (mr *missionRunner) run(ctx context.Context, m curriculum.Mission) error {
	c := mr.cli
	var summary *mission.Summary
	run := mission.NewRun(mr.cur.ID, m, mission.WithOnComplete(func(s mission.Summary) {
		summary = &s
	}))

	color.New(color.Bold).Printf("\nDay %d — %s\n", m.Day, m.Title.Get(c.lang))
	fmt.Println(m.Subtitle.Get(c.lang))
	c.emitter.Emit("mission_started", map[string]any{
		"curriculum_id": mr.cur.ID,
		"day":           m.Day,
	})

	for !run.Done() {
		if err := mr.step(run); err != nil {
			if errors.Is(err, errInputClosed) {
				fmt.Println("\nInput closed. The mission was left unfinished.")
				return nil
			}
			return err
		}
	}

	c.appCtx.Progress.MarkDayComplete(mr.cur.ID, m.Day)
	color.Green("\nMission complete! Day %d is done.", m.Day)
	if next, ok := mr.cur.Day(m.Day + 1); ok {
		fmt.Printf("Day %d unlocked: %s\n", next.Day, next.Title.Get(c.lang))
	}
	if summary != nil {
		fmt.Printf("Study time: %d min\n", summary.StudyMinutes)
		c.emitter.Emit("mission_completed", map[string]any{
			"curriculum_id": summary.CurriculumID,
			"day":           summary.Day,
			"study_minutes": summary.StudyMinutes,
		})
		if mr.report {
			mr.reportProgress(ctx, summary.StudyMinutes)
		}
	}
	return nil
}

func (mr *missionRunner) step(run *mission.Run) error {
	step := run.ViewStep()
	fmt.Printf("\n[%d/%d]", run.View()+1, run.TotalSteps())
	if step.Zone != "" {
		fmt.Printf(" (%s)", step.Zone)
	}
	fmt.Println()

	switch step.Kind {
	case curriculum.StepQuiz:
		return mr.quizStep(run, step)
	default:
		return mr.actionStep(run, step)
	}
}

func (mr *missionRunner) actionStep(run *mission.Run, step curriculum.Step) error {
	c := mr.cli
	fmt.Println(step.Instruction.Get(c.lang))
	if step.Shortcut != "" {
		color.Cyan("Shortcut: %s", step.Shortcut)
	}
	if hint := step.Troubleshoot.Get(c.lang); hint != "" {
		color.Yellow("Stuck? %s", hint)
	}
	if step.TextInput() {
		fmt.Printf("> %s: ", step.Placeholder.Get(c.lang))
		text, err := mr.read()
		if err != nil {
			return err
		}
		if err := run.SubmitText(text); err != nil {
			if errors.Is(err, mission.ErrEmptyInput) {
				color.Red("Type something first.")
				return nil
			}
			return err
		}
		return nil
	}
	button := step.Button.Get(c.lang)
	if button == "" {
		button = "Done"
	}
	fmt.Printf("[Enter] %s ", button)
	if _, err := mr.read(); err != nil {
		return err
	}
	return run.CompleteAction()
}

func (mr *missionRunner) quizStep(run *mission.Run, step curriculum.Step) error {
	c := mr.cli
	fmt.Println(step.Question.Get(c.lang))
	for i, opt := range step.Options {
		fmt.Printf("  %d) %s\n", i+1, opt.Get(c.lang))
	}
	fmt.Print("Answer: ")
	line, err := mr.read()
	if err != nil {
		return err
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(step.Options) {
		color.Red("Pick a number between 1 and %d.", len(step.Options))
		return nil
	}
	result, err := run.AnswerQuiz(choice - 1)
	if err != nil {
		return err
	}
	if result == mission.QuizCorrect {
		if msg := step.SuccessMessage.Get(c.lang); msg != "" {
			color.Green(msg)
		} else {
			color.Green("Correct!")
		}
		return nil
	}
	color.Red("Not quite — try again.")
	run.ClearQuizFeedback()
	return nil
}

var errInputClosed = errors.New("input closed")

func (mr *missionRunner) read() (string, error) {
	if mr.in.Scan() {
		return mr.in.Text(), nil
	}
	if err := mr.in.Err(); err != nil {
		return "", err
	}
	return "", errInputClosed
}

func (mr *missionRunner) reportProgress(ctx context.Context, minutes int) {
	client, err := mr.cli.sdkClient()
	if err != nil || client.BearerToken == "" {
		return
	}
	stats, err := client.UpdateStudyProgress(ctx, minutes)
	if err != nil {
		if mr.cli.appCtx.Config.Analytics.Debug {
			fmt.Println("study report failed:", err)
		}
		return
	}
	fmt.Printf("Streak: %d day(s), total %d min\n", stats.CurrentStreak, stats.TotalStudyMinutes)
}

func progressCmd() *cobra.Command {
	p := &cobra.Command{Use: "progress", Short: "Inspect local progress"}
	p.AddCommand(progressShowCmd())
	p.AddCommand(progressResetCmd())
	return p
}

func progressShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show completed days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				cur, err := c.curriculum()
				if err != nil {
					return err
				}
				days := c.appCtx.Progress.CompletedDays(cur.ID)
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"curriculum_id":  cur.ID,
						"completed_days": days,
					})
				}
				if len(days) == 0 {
					fmt.Printf("No completed days yet in %s.\n", cur.ID)
					return nil
				}
				fmt.Printf("%s: %d/%d days completed %v\n", cur.ID, len(days), len(cur.Days), days)
				return nil
			})
		},
	}
}

func progressResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase progress for the current curriculum",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				if !yes {
					return fmt.Errorf("pass --yes to confirm")
				}
				c.appCtx.Progress.Reset(c.curriculumID())
				fmt.Printf("Progress for %s cleared.\n", c.curriculumID())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm reset")
	return cmd
}

func accountCmd() *cobra.Command {
	a := &cobra.Command{Use: "account", Short: "Backend account and study stats"}
	a.AddCommand(accountSignupCmd())
	a.AddCommand(accountLoginCmd())
	a.AddCommand(accountMeCmd())
	a.AddCommand(accountStatsCmd())
	return a
}

func accountSignupCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				client, err := c.sdkClient()
				if err != nil {
					return err
				}
				u, err := client.Signup(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				fmt.Printf("Account created for %s (id %d). Log in with 'growit account login'.\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func accountLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				client, err := c.sdkClient()
				if err != nil {
					return err
				}
				tok, err := client.Login(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				if err := os.WriteFile(tokenPath(c.appCtx), []byte(tok.AccessToken+"\n"), 0o600); err != nil {
					return err
				}
				if u, err := client.Me(cmd.Context()); err == nil {
					c.emitter.SetUserID(strconv.FormatInt(u.ID, 10))
				}
				c.emitter.Emit("login", nil)
				color.Green("Logged in as %s.", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func accountMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				client, err := c.sdkClient()
				if err != nil {
					return err
				}
				u, err := client.Me(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
}

func accountStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show study stats and streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(func(c *cli) error {
				client, err := c.sdkClient()
				if err != nil {
					return err
				}
				s, err := client.StudyStats(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Streak: %d day(s)\n", s.CurrentStreak)
				fmt.Printf("Today:  %d min\n", s.TodayStudyMinutes)
				fmt.Printf("Total:  %d min\n", s.TotalStudyMinutes)
				if s.LastStudyDate != "" {
					fmt.Printf("Last study date: %s\n", s.LastStudyDate)
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect collected events"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail collected analytics events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Received", "Type", "User", "Anonymous"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.ReceivedAt, e.EventType, e.UserID, e.AnonymousID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			appCtx, err := app.Resolve(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			reg, err := curriculum.Load()
			if err != nil {
				return err
			}
			cfg := appCtx.Config
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if secret := os.Getenv("GROWIT_JWT_SECRET"); secret != "" {
				cfg.Server.JWTSecret = secret
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("GROWIT_JWT_SECRET is required for bearer auth")
			}
			e := engine.New(conn, reg, cfg)
			if cfg.Analytics.SpoolDir != "" {
				e.Sink = &analytics.Spool{Dir: filepath.Join(workspace, ".growit", cfg.Analytics.SpoolDir)}
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
				Origins:  cfg.Server.AllowedOrigins,
			})
			if err != nil {
				return err
			}
			fwd := &analytics.Forwarder{Repo: e.Repo, Hooks: cfg.Forwarder.Hooks}
			fwd.Start(cmd.Context())
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving GrowIt API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
