package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samanhappy/selectly/pkg/auth"
	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/export"
	"github.com/samanhappy/selectly/pkg/logging"
	"github.com/samanhappy/selectly/pkg/model"
	"github.com/samanhappy/selectly/pkg/paths"
	"github.com/samanhappy/selectly/pkg/storage"
	"github.com/samanhappy/selectly/pkg/terminal"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(0)
	}

	out := terminal.New()

	var err error
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
	case "--help", "-h", "help":
		printHelp()
	case "serve":
		err = runServeCommand(args[1:])
	case "chat":
		err = runChatCommand(out, args[1:])
	case "providers":
		err = runProvidersCommand(out, args[1:])
	case "config":
		err = runConfigCommand(out, args[1:])
	case "records":
		err = runRecordsCommand(out, args[1:])
	case "signin":
		err = runSigninCommand(out, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		out.Error("%v", err)
		os.Exit(1)
	}
}

type dependencies struct {
	settings *config.Settings
	logger   *logging.Logger
	db       *storage.Store
	configs  *config.Store
	tokens   *auth.TokenSource
	router   *model.Router
}

func (d *dependencies) Close() {
	d.configs.Flush(context.Background())
	_ = d.db.Close()
	_ = d.logger.Close()
}

func initDependencies() (*dependencies, error) {
	settings, err := config.LoadSettings(paths.ConfigFilePath())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(paths.LogsBaseDir())
	if err != nil {
		// Logging is best effort; the daemon still works without it.
		logger = logging.Discard()
	}
	logger.SetMinLevel(logging.Level(settings.LogLevel))

	db, err := storage.New(settings.DatabasePath)
	if err != nil {
		return nil, err
	}

	configs := config.NewStore(db, config.StoreOptions{
		Language:         settings.Language,
		CloudBaseURL:     settings.CloudBaseURL,
		DebounceInterval: settings.DebounceInterval,
		Logger:           logger,
	})
	cfg := configs.Load(context.Background())

	tokens := auth.NewTokenSource(settings.CloudBaseURL, db, logger)
	tokens.Load(context.Background())

	router := model.NewRouter(model.RouterOptions{
		CloudBaseURL:       settings.CloudBaseURL,
		Tokens:             tokens,
		NetworkLogsEnabled: settings.NetworkLogs,
		Logger:             logger,
	})
	router.Configure(cfg.LLM)

	return &dependencies{
		settings: settings,
		logger:   logger,
		db:       db,
		configs:  configs,
		tokens:   tokens,
		router:   router,
	}, nil
}

func runChatCommand(out *terminal.Writer, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	modelFlag := fs.String("model", "", "model as providerId/modelName (default: configured default)")
	markdown := fs.Bool("markdown", false, "render the full response as markdown instead of streaming")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("usage: selectly chat [-model provider/name] <prompt>")
	}

	deps, err := initDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := context.Background()
	if *markdown {
		content, err := deps.router.Chat(ctx, prompt, *modelFlag)
		if err != nil {
			return err
		}
		return out.Markdown(content)
	}

	err = deps.router.ChatStreamPrompt(ctx, prompt, func(delta, _ string) {
		out.Stream(delta)
	}, *modelFlag)
	out.StreamEnd()
	return err
}

func runProvidersCommand(out *terminal.Writer, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	deps, err := initDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := context.Background()
	switch args[0] {
	case "list":
		out.Header("Providers")
		for _, p := range deps.configs.EnabledProviders(ctx) {
			out.ProviderLine(p.ID, p.Name, p.Enabled, p.APIKey != "" || p.ID == config.CloudProviderID)
		}
		return nil

	case "test":
		if len(args) < 2 {
			return fmt.Errorf("usage: selectly providers test <provider-id>")
		}
		id := args[1]
		provider, ok := deps.configs.GetProvider(ctx, id)
		if !ok {
			return fmt.Errorf("unknown provider %q", id)
		}
		success, _ := terminal.WithSpinner("testing "+id, func() (bool, error) {
			return deps.router.TestProvider(ctx, provider), nil
		})
		status := config.TestStatusError
		if success {
			status = config.TestStatusSuccess
		}
		deps.configs.UpdateProviderStatus(ctx, id, status)
		if !success {
			return fmt.Errorf("provider %q is not reachable with the configured key", id)
		}
		out.Success("provider %q is reachable", id)
		return nil

	case "set-key":
		if len(args) < 2 {
			return fmt.Errorf("usage: selectly providers set-key <provider-id>")
		}
		id := args[1]
		provider, ok := deps.configs.GetProvider(ctx, id)
		if !ok {
			return fmt.Errorf("unknown provider %q", id)
		}
		key := out.PromptSecret("API key for " + id)
		if key == "" {
			return fmt.Errorf("no key entered")
		}
		provider.APIKey = key
		provider.Enabled = true
		if _, err := deps.configs.SetProvider(ctx, provider); err != nil {
			return err
		}
		out.Success("saved key for %q", id)
		return nil

	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: selectly providers remove <provider-id>")
		}
		if _, err := deps.configs.RemoveProvider(ctx, args[1]); err != nil {
			return err
		}
		out.Success("removed provider %q", args[1])
		return nil

	default:
		return fmt.Errorf("unknown providers subcommand %q", args[0])
	}
}

func runConfigCommand(out *terminal.Writer, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}

	switch args[0] {
	case "path":
		out.Println("%s", paths.ConfigFilePath())
		out.Dim("data: %s", paths.DataDir())
		return nil

	case "show":
		deps, err := initDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()
		return export.WriteConfig(os.Stdout, deps.configs.Current(context.Background()))

	case "export":
		deps, err := initDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		name := export.Filename("selectly-config", "json", time.Now())
		if len(args) > 1 {
			name = args[1]
		}
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.WriteConfig(f, deps.configs.Current(context.Background())); err != nil {
			return err
		}
		out.Success("configuration exported to %s", name)
		return nil

	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: selectly config import <file>")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		raw, err := export.ReadConfig(f)
		if err != nil {
			return err
		}

		deps, err := initDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.configs.Import(context.Background(), raw); err != nil {
			return err
		}
		out.Success("configuration imported from %s", args[1])
		return nil

	default:
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

func runRecordsCommand(out *terminal.Writer, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	deps, err := initDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := context.Background()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("records list", flag.ContinueOnError)
		limit := fs.Int("limit", 20, "maximum records to show")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		records, err := deps.db.ListRecords(ctx, *limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			out.Dim("no collected records")
			return nil
		}
		out.Header("Collected records")
		for _, rec := range records {
			out.Println("%s  %s", rec.CreatedAt.Local().Format("2006-01-02 15:04"), firstLine(rec.Content))
			if rec.Note != "" {
				out.Dim("    note: %s", rec.Note)
			}
		}
		return nil

	case "export":
		fs := flag.NewFlagSet("records export", flag.ContinueOnError)
		format := fs.String("format", "csv", "export format: csv or xlsx")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		records, err := deps.db.ListRecords(ctx, 0)
		if err != nil {
			return err
		}

		name := export.Filename("selectly-records", *format, time.Now())
		if fs.NArg() > 0 {
			name = fs.Arg(0)
		}
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()

		switch *format {
		case "csv":
			err = export.WriteRecordsCSV(f, records)
		case "xlsx":
			err = export.WriteRecordsXLSX(f, records)
		default:
			return fmt.Errorf("unsupported format %q", *format)
		}
		if err != nil {
			return err
		}
		out.Success("%d records exported to %s", len(records), name)
		return nil

	default:
		return fmt.Errorf("unknown records subcommand %q", args[0])
	}
}

func runSigninCommand(out *terminal.Writer, args []string) error {
	deps, err := initDependencies()
	if err != nil {
		return err
	}
	defer deps.Close()

	token := ""
	if len(args) > 0 {
		token = args[0]
	} else {
		token = out.PromptSecret("Paste access token")
	}
	if token == "" {
		return fmt.Errorf("no token provided")
	}
	if err := deps.tokens.SetToken(context.Background(), token); err != nil {
		return err
	}
	deps.router.RefreshCloudToken()
	out.Success("signed in")
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

func printVersion() {
	fmt.Printf("selectly %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`selectly - local companion daemon for the Selectly extension

Usage:
  selectly <command> [options]

Commands:
  serve                       Run the local API daemon
  chat [-model p/m] <prompt>  Send a prompt and stream the response
  providers [list]            List providers and their status
  providers test <id>         Test connectivity for a provider
  providers set-key <id>      Store an API key for a provider
  providers remove <id>       Remove a custom provider
  config [show|path]          Inspect configuration
  config export [file]        Export configuration to a JSON backup
  config import <file>        Import a configuration backup
  records [list]              List collected selections
  records export [-format f]  Export records as csv or xlsx
  signin [token]              Store the cloud access token
  version                     Print version information

Environment:
  SELECTLY_DATA_DIR           Override the data directory (~/.selectly)
  SELECTLY_LISTEN             Override the listen address
`)
}
