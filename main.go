// Command d2dedup finds and fixes duplicate translations on DHIS2 metadata objects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/minios-linux/d2dedup/config"
	"github.com/minios-linux/d2dedup/dedupe"
	"github.com/minios-linux/d2dedup/dhis2"
	"github.com/minios-linux/d2dedup/i18n"
	"github.com/minios-linux/d2dedup/present"
	"github.com/minios-linux/d2dedup/session"
	"github.com/minios-linux/d2dedup/settings"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitError   = 1
	exitPartial = 2
)

// exitCodeError makes main exit with a specific code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

type globalOptions struct {
	configPath string
	server     string
	username   string
	auth       string
	logLevel   string
	language   string
	proxy      string
	timeout    time.Duration
	maxRetries int
}

var global globalOptions

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "d2dedup",
		Short: "Find and fix duplicate translations in DHIS2 metadata",
		Long: `d2dedup finds and fixes duplicate translations in DHIS2 metadata.

A DHIS2 object may carry several translations for the same locale and
property, e.g. two French names. d2dedup scans every translatable metadata
type, shows the colliding values, lets you pick the one to keep, and writes
each object back with only the chosen value. Objects are re-fetched right
before writing so unrelated edits are not lost.

Commands:
  init        Write a starter .d2dedup.yaml
  scan        Report duplicate translations (read-only)
  fix         Choose winners and write the fixed objects back
  auth        Manage stored server credentials

Configuration is read from .d2dedup.yaml in the working directory, or from
--config. D2DEDUP_SERVER, D2DEDUP_USERNAME, D2DEDUP_PASSWORD and
D2DEDUP_TOKEN override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	pf := root.PersistentFlags()
	pf.StringVar(&global.configPath, "config", "", "Config file (default: ./"+config.FileName+")")
	pf.StringVar(&global.server, "server", "", "DHIS2 base URL")
	pf.StringVar(&global.username, "username", "", "DHIS2 username (basic auth)")
	pf.StringVar(&global.auth, "auth", "", "Authentication: basic or token")
	pf.StringVar(&global.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&global.language, "lang", "", "Language of d2dedup's messages (default: from environment)")
	pf.StringVar(&global.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	pf.DurationVar(&global.timeout, "timeout", 0, "Request timeout (0 = config or 60s)")
	pf.IntVar(&global.maxRetries, "max-retries", 0, "Retries on network errors and 5xx (default: config or 3; 0 disables)")

	_ = root.RegisterFlagCompletionFunc("auth", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"basic\tUsername and password", "token\tPersonal access token"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newInitCmd(),
		newScanCmd(),
		newFixCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil && ec.code != exitPartial {
			log.Error(ec.err.Error())
		}
		os.Exit(ec.code)
	}
	if errors.Is(err, present.ErrAborted) {
		log.Warn(i18n.T("Aborted."))
		os.Exit(exitError)
	}
	log.Error(err.Error())
	os.Exit(exitError)
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// app carries what every command needs once flags and config are resolved.
type app struct {
	cfg    *config.File
	log    *log.Logger
	out    io.Writer
	errOut io.Writer

	// interactive is true when stdin and stdout are terminals.
	interactive  bool
	authExplicit bool
	prompter     *present.Interactive
}

// newApp resolves configuration (flags > environment > file > defaults),
// sets up logging and the message catalogue.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(".", global.configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	i18n.Init(cfg.Language)

	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)

	return &app{
		cfg:          cfg,
		log:          logger,
		out:          os.Stdout,
		errOut:       os.Stderr,
		interactive:  isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
		authExplicit: cmd.Flags().Changed("auth"),
		prompter:     present.NewInteractive(logger),
	}, nil
}

// applyFlags copies explicitly set global flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.File) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = global.server
	}
	if flags.Changed("username") {
		cfg.Username = global.username
	}
	if flags.Changed("auth") {
		cfg.Auth = global.auth
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = global.logLevel
	}
	if flags.Changed("lang") {
		cfg.Language = global.language
	}
	if flags.Changed("proxy") {
		cfg.Proxy = global.proxy
	}
	if flags.Changed("timeout") && global.timeout > 0 {
		cfg.Timeout = global.timeout
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = global.maxRetries
	}
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "d2dedup",
		Level:           lvl,
		ReportTimestamp: false,
	}), nil
}

// signalContext cancels on the first interrupt. The batch stops between
// objects.
func signalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logger.Warn(i18n.T("Interrupted, finishing the current object..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// credentials resolves the authentication for the configured server:
// flags and environment first, then the credential store. A missing
// password is asked for when running in a terminal.
func (a *app) credentials() (dhis2.Auth, error) {
	explicit := settings.Info{Username: a.cfg.Username, Password: a.cfg.Password, Token: a.cfg.Token}
	switch {
	case a.cfg.Token != "" && a.cfg.Auth == config.AuthToken:
		explicit.Type = settings.TypeToken
	case a.cfg.Password != "" || a.authExplicit:
		explicit.Type = a.cfg.Auth
	}

	info := settings.Resolve(a.cfg.Server, explicit)
	if info.Type == "" {
		info.Type = a.cfg.Auth
	}

	switch info.Type {
	case settings.TypeToken:
		if info.Token == "" {
			return dhis2.Auth{}, fmt.Errorf("no token for %s: set %s or run 'd2dedup auth login --auth token'", a.cfg.Server, config.EnvToken)
		}
		return dhis2.Auth{Kind: dhis2.AuthToken, Token: info.Token}, nil
	default:
		if info.Password == "" && a.interactive {
			c := &present.Credentials{Kind: settings.TypeBasic, Username: info.Username}
			if err := a.prompter.AskCredentials(a.cfg.Server, c); err != nil {
				return dhis2.Auth{}, err
			}
			info.Username, info.Password = c.Username, c.Secret
		}
		if info.Username == "" {
			return dhis2.Auth{}, fmt.Errorf("no credentials for %s: pass --username and set %s, or run 'd2dedup auth login'", a.cfg.Server, config.EnvPassword)
		}
		return dhis2.Auth{Kind: dhis2.AuthBasic, Username: info.Username, Password: info.Password}, nil
	}
}

func (a *app) client() (*dhis2.Client, error) {
	if a.cfg.Server == "" {
		return nil, fmt.Errorf("no server configured: pass --server, set %s or add server to %s", config.EnvServer, config.FileName)
	}
	auth, err := a.credentials()
	if err != nil {
		return nil, err
	}
	return dhis2.New(dhis2.Options{
		BaseURL:    a.cfg.Server,
		Auth:       auth,
		Timeout:    a.cfg.Timeout,
		Proxy:      a.cfg.Proxy,
		MaxRetries: a.cfg.Retries(),
		UserAgent:  "d2dedup/" + version,
		Log:        a.log,
	})
}

// scanOptions narrows a detection pass.
type scanOptions struct {
	include []string
	exclude []string
	objects []string
}

// scan runs a detection pass with progress on errOut and keeps only groups
// of the requested objects.
func (a *app) scan(ctx context.Context, src dedupe.ObjectSource, opts scanOptions) (dedupe.ScanResult, error) {
	include := opts.include
	if len(include) == 0 {
		include = a.cfg.Types.Include
	}
	exclude := append(append([]string(nil), a.cfg.Types.Exclude...), opts.exclude...)

	progress := present.NewTerminal(a.errOut, a.log)
	scanner := &dedupe.Scanner{
		Source:     src,
		Log:        a.log,
		Include:    include,
		Exclude:    exclude,
		OnProgress: progress.NotifyProgress,
	}

	result, err := scanner.Scan(ctx)
	if err != nil {
		return result, err
	}
	for _, s := range result.Skipped {
		a.log.Warn(i18n.T("Could not fetch objects"), "type", s.Type, "err", s.Err)
	}

	result.Groups = filterObjects(result.Groups, opts.objects)
	return result, nil
}

// filterObjects keeps the groups of the given objects; no ids keeps all.
func filterObjects(groups []dedupe.DuplicateGroup, ids []string) []dedupe.DuplicateGroup {
	if len(ids) == 0 {
		return groups
	}
	return lo.Filter(groups, func(g dedupe.DuplicateGroup, _ int) bool {
		return lo.Contains(ids, g.ObjectID)
	})
}

// splitList flattens repeated and comma-separated flag values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("d2dedup version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// init (write config file)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter " + config.FileName,
		Long: `Write the resolved configuration (defaults, environment and flags) to
` + config.FileName + ` in the working directory, or to --config.
Passwords and tokens are never written; use 'd2dedup auth login' for those.

Examples:
  d2dedup init --server https://play.dhis2.org/40 --username admin
  d2dedup init --server https://dhis.example.org --auth token --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			path := global.configPath
			if path == "" {
				path = config.FileName
			}
			return runInit(a, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func runInit(a *app, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := a.cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintln(a.out, i18n.T("Configuration written to %s.", path))
	return nil
}

// ---------------------------------------------------------------------------
// scan (read-only report)
// ---------------------------------------------------------------------------

type scanArgs struct {
	output string
	scanOptions
}

func newScanCmd() *cobra.Command {
	var (
		output  string
		include []string
		exclude []string
		objects []string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report duplicate translations",
		Long: `Scan every translatable metadata type and report objects that carry
more than one translation for the same locale and property.
Does not modify anything on the server.

Examples:
  d2dedup scan --server https://play.dhis2.org/40
  d2dedup scan --type dataElements,indicators
  d2dedup scan --output yaml > duplicates.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(a.log)
			defer cancel()

			return runScan(ctx, a, scanArgs{
				output: output,
				scanOptions: scanOptions{
					include: splitList(include),
					exclude: splitList(exclude),
					objects: splitList(objects),
				},
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or yaml")
	cmd.Flags().StringSliceVar(&include, "type", nil, "Only scan these types (plural names, comma-separated)")
	cmd.Flags().StringSliceVar(&exclude, "exclude-type", nil, "Skip these types (plural names, comma-separated)")
	cmd.Flags().StringSliceVar(&objects, "object", nil, "Only report these object ids")

	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"table\tAligned table", "yaml\tMachine-readable report"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runScan(ctx context.Context, a *app, args scanArgs) error {
	if args.output != "table" && args.output != "yaml" {
		return fmt.Errorf("unknown output format %q (valid: table, yaml)", args.output)
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	result, err := a.scan(ctx, client, args.scanOptions)
	if err != nil {
		return err
	}

	if args.output == "yaml" {
		return present.NewReport(a.cfg.Server, result).WriteYAML(a.out)
	}

	term := present.NewTerminal(a.out, a.log)
	term.ShowState = true
	term.RenderState(result.Groups, nil)
	a.log.Info(i18n.T("Scan complete"), "types", len(result.Types), "objects", result.Objects, "groups", len(result.Groups))
	return nil
}

// ---------------------------------------------------------------------------
// fix (choose winners, write back)
// ---------------------------------------------------------------------------

type fixArgs struct {
	keep   string
	all    bool
	yes    bool
	dryRun bool
	retry  bool
	scanOptions
}

func newFixCmd() *cobra.Command {
	var (
		args    fixArgs
		include []string
		exclude []string
		objects []string
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Choose winners and write fixed objects back",
		Long: `Scan for duplicate translations, choose which value survives in each
duplicate group, and write the affected objects back.

In a terminal, d2dedup asks for the winner of every group and for the
objects to fix. Otherwise --keep chooses winners and --all or --object
chooses objects.

Every object is fetched again right before it is written. A failing object
does not stop the others; failed objects and their choices are kept in the
session file so 'fix --retry' can try them again. The exit status is 2 when
some objects failed.

Examples:
  d2dedup fix                                   Interactive
  d2dedup fix --keep first --all --yes          Keep the first value everywhere
  d2dedup fix --keep longest --object fbfJHSPpUQD
  d2dedup fix --keep last --all --dry-run       Show the diff only
  d2dedup fix --retry --yes                     Retry objects that failed last time`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(a.log)
			defer cancel()

			args.include = splitList(include)
			args.exclude = splitList(exclude)
			args.objects = splitList(objects)
			return runFix(ctx, a, args)
		},
	}

	cmd.Flags().StringVar(&args.keep, "keep", "", "Choose winners without asking: first, last, longest or none")
	cmd.Flags().BoolVar(&args.all, "all", false, "Fix every object with duplicates")
	cmd.Flags().BoolVarP(&args.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&args.dryRun, "dry-run", false, "Print the changes as a diff instead of writing")
	cmd.Flags().BoolVar(&args.retry, "retry", false, "Only retry objects that failed in the last run")
	cmd.Flags().StringSliceVar(&include, "type", nil, "Only scan these types (plural names, comma-separated)")
	cmd.Flags().StringSliceVar(&exclude, "exclude-type", nil, "Skip these types (plural names, comma-separated)")
	cmd.Flags().StringSliceVar(&objects, "object", nil, "Only fix these object ids")

	_ = cmd.RegisterFlagCompletionFunc("keep", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"first\tKeep the first value (server order)",
			"last\tKeep the last value",
			"longest\tKeep the longest value",
			"none\tRemove every duplicated translation",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runFix(ctx context.Context, a *app, args fixArgs) error {
	var policy dedupe.KeepPolicy
	if args.keep != "" {
		p, err := dedupe.ParseKeepPolicy(args.keep)
		if err != nil {
			return err
		}
		policy = p
	}
	ask := a.interactive && policy == ""
	if !ask && !args.all && !args.retry && len(args.objects) == 0 {
		return errors.New("nothing selected: pass --all or --object, or run in a terminal without --keep")
	}

	sess, err := session.Load(a.cfg.Session)
	if err != nil {
		return err
	}
	if sess.Server != "" && sess.Server != settings.NormalizeServer(a.cfg.Server) {
		a.log.Warn(i18n.T("Session belongs to another server, starting over"), "session", sess.Server)
		sess.Forget(lo.Keys(sess.Choices)...)
		sess.Forget(sess.FailedObjects()...)
	}

	opts := args.scanOptions
	if args.retry {
		failed := sess.FailedObjects()
		if len(failed) == 0 {
			fmt.Fprintln(a.out, i18n.T("No failed objects to retry."))
			return nil
		}
		a.log.Info(i18n.T("Retrying failed objects"), "session", sess.Path(), "state", sess.Summary())
		opts.objects = failed
		if len(opts.include) == 0 {
			opts.include = sess.FailedTypes()
		}
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	result, err := a.scan(ctx, client, opts)
	if err != nil {
		return err
	}

	term := present.NewTerminal(a.out, a.log)
	state := present.NewState(result.Groups, term)
	if state.Len() == 0 {
		state.Render()
		if args.retry && !args.dryRun {
			// fixed elsewhere since the last run
			sess.Forget(opts.objects...)
			return sess.Save()
		}
		return nil
	}

	if n, err := sess.Restore(state.SelectionStore); err != nil {
		return err
	} else if n > 0 {
		a.log.Info(i18n.T("Restored earlier choices"), "groups", n, "session", sess.Path())
	}
	if policy != "" {
		if err := state.ApplyPolicy(policy); err != nil {
			return err
		}
	}

	switch {
	case args.all || args.retry:
		state.SelectAll()
	case len(opts.objects) > 0:
		state.Include(opts.objects...)
	case ask:
		if err := a.prompter.ChooseObjects(state); err != nil {
			return err
		}
	}
	if ask {
		ids := lo.Filter(state.ObjectIDs(), func(id string, _ int) bool { return state.IsIncluded(id) })
		if err := a.prompter.ChooseWinners(state, ids); err != nil {
			return err
		}
	}

	selected := state.Selected()
	if len(selected) == 0 {
		fmt.Fprintln(a.out, i18n.T("Nothing to update."))
		return nil
	}
	term.PrintTable(selected, state.Included())

	if a.interactive && !args.yes && !args.dryRun {
		objects := len(lo.Uniq(lo.Map(selected, func(g dedupe.DuplicateGroup, _ int) string { return g.ObjectID })))
		ok, err := a.prompter.Confirm(i18n.N("Write %d object to %s?", "Write %d objects to %s?", objects, objects, a.cfg.Server))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, i18n.T("Nothing was written."))
			return nil
		}
	}

	var writer dedupe.ObjectWriter = client
	if args.dryRun {
		writer = present.NewDryRunWriter(client, a.out)
	}
	batch := dedupe.NewBatchReconciler(writer, a.log)

	sess.Record(selected...)
	batchResult := state.Fix(ctx, batch)

	if !args.dryRun {
		sess.Server = settings.NormalizeServer(a.cfg.Server)
		sess.RecordResult(batchResult)
		if err := sess.Save(); err != nil {
			a.log.Warn(i18n.T("Could not save session"), "err", err)
		} else if len(batchResult.Failed) > 0 {
			fmt.Fprintln(a.out, i18n.T("Session %s: %s. Run 'd2dedup fix --retry' to try again.", sess.Path(), sess.Summary()))
		}
	}

	if len(batchResult.Failed) > 0 {
		return &exitCodeError{
			code: exitPartial,
			err:  fmt.Errorf("%d of %d objects failed", batchResult.FailedObjects(), batchResult.FailedObjects()+batchResult.SucceededObjects()),
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// ---------------------------------------------------------------------------
// auth (credential store)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored server credentials",
		Long: `Manage the credentials d2dedup uses for each DHIS2 server.

Credentials are stored per server URL in ` + "`" + `$XDG_DATA_HOME/d2dedup/auth.json` + "`" + `
(0600). Flags and D2DEDUP_* environment variables take precedence.

Examples:
  d2dedup auth login --server https://play.dhis2.org/40
  d2dedup auth login --server https://dhis.example.org --auth token
  d2dedup auth logout --server https://play.dhis2.org/40
  d2dedup auth logout --all
  d2dedup auth list`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials for a server",
		Long: `Ask for credentials (or read them from D2DEDUP_* variables when not in a
terminal), check them against /api/system/info, and store them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(a.log)
			defer cancel()
			return runAuthLogin(ctx, a, !noVerify)
		},
	}

	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Store without contacting the server")
	return cmd
}

func runAuthLogin(ctx context.Context, a *app, verify bool) error {
	if a.cfg.Server == "" {
		return fmt.Errorf("no server configured: pass --server or set %s", config.EnvServer)
	}

	c := &present.Credentials{Kind: a.cfg.Auth, Username: a.cfg.Username, Secret: a.cfg.Password}
	if a.cfg.Auth == config.AuthToken {
		c.Secret = a.cfg.Token
	}
	if a.interactive && c.Secret == "" {
		if err := a.prompter.AskCredentials(a.cfg.Server, c); err != nil {
			return err
		}
	}

	info := &settings.Info{Type: c.Kind}
	auth := dhis2.Auth{Kind: c.Kind}
	switch c.Kind {
	case settings.TypeToken:
		info.Token, auth.Token = c.Secret, c.Secret
	default:
		info.Username, info.Password = c.Username, c.Secret
		auth.Username, auth.Password = c.Username, c.Secret
	}

	if verify {
		client, err := dhis2.New(dhis2.Options{
			BaseURL: a.cfg.Server, Auth: auth, Timeout: a.cfg.Timeout,
			Proxy: a.cfg.Proxy, MaxRetries: a.cfg.Retries(), Log: a.log,
		})
		if err != nil {
			return err
		}
		sys, err := client.Ping(ctx)
		if err != nil {
			return fmt.Errorf("checking credentials: %w", err)
		}
		a.log.Info(i18n.T("Connected"), "server", a.cfg.Server, "version", sys.Version)
	}

	if err := settings.Set(a.cfg.Server, info); err != nil {
		return err
	}
	fmt.Fprintln(a.out, i18n.T("Credentials for %s saved.", settings.NormalizeServer(a.cfg.Server)))
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove stored credentials for the server given by --server (or the
config file), or for every server with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if all {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				fmt.Fprintln(a.out, i18n.T("All stored credentials removed."))
				return nil
			}
			if a.cfg.Server == "" {
				return errors.New("no server given: pass --server or --all")
			}
			if err := settings.Remove(a.cfg.Server); err != nil {
				return err
			}
			fmt.Fprintln(a.out, i18n.T("Credentials for %s removed.", settings.NormalizeServer(a.cfg.Server)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove credentials for every server")
	_ = cmd.RegisterFlagCompletionFunc("server", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return settings.Load().Servers(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			printCredentials(os.Stdout, settings.Load(), os.Getenv)
		},
	}
}

// printCredentials lists stored servers with masked secrets, then the
// environment overrides.
func printCredentials(w io.Writer, store settings.Store, getenv func(string) string) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "%s (%s)\n", bold(i18n.T("Stored credentials")), settings.FilePath())
	if len(store) == 0 {
		fmt.Fprintf(w, "  %s\n", red(i18n.T("none")))
	} else {
		rows := [][]string{}
		for _, server := range store.Servers() {
			info := store[server]
			who := info.Username
			if info.IsToken() {
				who = "-"
			}
			rows = append(rows, []string{"  " + server, info.Type, who, settings.MaskKey(info.Secret())})
		}
		table, _ := present.RenderTable(rows)
		fmt.Fprintln(w, table)
	}

	fmt.Fprintf(w, "\n%s\n", bold(i18n.T("Environment variables")))
	for _, env := range []string{config.EnvServer, config.EnvUsername, config.EnvPassword, config.EnvToken} {
		val := getenv(env)
		switch {
		case val == "":
			fmt.Fprintf(w, "  %-18s %s\n", env, red(i18n.T("not set")))
		case env == config.EnvPassword || env == config.EnvToken:
			fmt.Fprintf(w, "  %-18s %s\n", env, green(settings.MaskKey(val)))
		default:
			fmt.Fprintf(w, "  %-18s %s\n", env, green(val))
		}
	}
}
