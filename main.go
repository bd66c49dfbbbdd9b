package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	topics "github.com/synapsedaili/youtube-automation/01_topics"
	upload "github.com/synapsedaili/youtube-automation/05_upload"
	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/pipeline"
	"github.com/synapsedaili/youtube-automation/types"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	// Load .env (local dev only; CI passes secrets as env vars)
	_ = godotenv.Load()

	if len(args) < 2 {
		printUsage()
		return 1
	}
	cmd, cmdArgs := args[1], args[2:]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "run":
		err = runPipeline(ctx, cmdArgs)
	case "next":
		err = runNext(ctx, cmdArgs)
	case "seed":
		err = runSeed(ctx, cmdArgs)
	case "auth":
		err = runAuth(ctx, cmdArgs)
	case "history":
		err = runHistory(ctx, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logging.L().Error("command failed", "cmd", cmd, "kind", types.Kind(err), "err", err)
		if hint := upload.Remediation(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		return 1
	}
	return 0
}

// commonFlags registers --config and --verbose on a subcommand.
func commonFlags(fs *flag.FlagSet) (configPath *string, verbose *bool) {
	configPath = fs.String("config", "config.yaml", "Path to config.yaml")
	verbose = fs.Bool("verbose", false, "Verbose logging")
	return configPath, verbose
}

func loadConfig(path string, verbose bool) (*config.Config, error) {
	logging.Configure(verbose)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	modeFlag := fs.String("mode", "shorts", "Content mode: shorts, podcast or both")
	rotationFlag := fs.String("rotation", "", "Override rotation for a single mode: advance or peek")
	configPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modeFlag == "both" && *rotationFlag != "" {
		return fmt.Errorf("%w: --rotation applies to a single mode; set rotation.both in config", types.ErrConfiguration)
	}
	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	if _, err := topics.Seed(cfg.Paths.TopicsFile, topics.DefaultTopics, false); err != nil {
		return fmt.Errorf("seed default topics: %w", err)
	}

	be, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	unlock, err := be.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	orch, err := be.orchestrator(ctx)
	if err != nil {
		return err
	}

	logger := logging.For("main")
	if *modeFlag == "both" {
		shorts, err := cfg.Mode(types.ModeShorts)
		if err != nil {
			return err
		}
		podcast, err := cfg.Mode(types.ModePodcast)
		if err != nil {
			return err
		}
		results, err := orch.RunBoth(ctx, shorts, podcast, pipeline.BothPolicy(cfg.Rotation.Both))
		for _, res := range results {
			logger.Info("published", "mode", res.Mode, "topic", res.Topic.Topic, "url", res.URL)
		}
		return err
	}

	mode, err := types.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	profile, err := cfg.Mode(mode)
	if err != nil {
		return err
	}
	rotationName := *rotationFlag
	if rotationName == "" {
		rotationName = cfg.Modes[string(mode)].Rotation
	}
	rotation, err := pipeline.ParseRotation(rotationName)
	if err != nil {
		return err
	}

	res, err := orch.Run(ctx, pipeline.Request{Mode: profile, Rotation: rotation})
	if err != nil {
		return err
	}
	logger.Info("published", "mode", res.Mode, "topic", res.Topic.Topic, "url", res.URL)
	return nil
}

func runNext(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("next", flag.ContinueOnError)
	configPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}
	be, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	sel, err := be.rotator.NextTopic(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d/%d\t%s\n", sel.Index+1, sel.Count, sel.Topic)
	return nil
}

func runSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	source := fs.String("source", "default", "Topic source: default or reddit")
	subreddit := fs.String("subreddit", "", "Subreddit to rank (reddit source)")
	limit := fs.Int("limit", 0, "Maximum number of topics (reddit source)")
	force := fs.Bool("force", false, "Overwrite an existing topic list")
	configPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	list := topics.DefaultTopics
	switch *source {
	case "default":
	case "reddit":
		if *subreddit == "" {
			*subreddit = cfg.Topics.Subreddit
		}
		if *limit <= 0 {
			*limit = cfg.Topics.Limit
		}
		seeder, err := topics.NewRedditSeeder(logging.For("topics"))
		if err != nil {
			return err
		}
		if list, err = seeder.Topics(ctx, *subreddit, *limit); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown topic source %q", types.ErrConfiguration, *source)
	}

	written, err := topics.Seed(cfg.Paths.TopicsFile, list, *force)
	if err != nil {
		return err
	}
	if !written {
		logging.For("topics").Warn("topic list already exists, use --force to overwrite", "path", cfg.Paths.TopicsFile)
		return nil
	}
	logging.For("topics").Info("topic list written", "path", cfg.Paths.TopicsFile, "topics", len(list))
	return nil
}

func runAuth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ContinueOnError)
	configPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	consent := &upload.InteractiveConsent{
		SecretsFile: cfg.Upload.ClientSecretsFile,
		TokenFile:   cfg.Upload.TokenFile,
		In:          os.Stdin,
		Out:         os.Stderr,
	}
	tok, err := consent.Authorize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nToken saved to %s\n", cfg.Upload.TokenFile)
	if tok.RefreshToken != "" {
		fmt.Fprintf(os.Stderr, "For CI, set YOUTUBE_REFRESH_TOKEN=%s\n", tok.RefreshToken)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Show the most recent N uploads (0 for all)")
	configPath, verbose := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}
	be, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	recs, err := be.log.Records(ctx)
	if err != nil {
		return err
	}
	if *limit > 0 && len(recs) > *limit {
		recs = recs[len(recs)-*limit:]
	}
	for _, r := range recs {
		fmt.Printf("%s\t%-7s\t%s\t%s\n", r.Timestamp, r.Mode, r.ExternalVideoID, r.Title)
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: synapse-daily <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  run --mode shorts|podcast|both [--rotation advance|peek] [--config path] [--verbose]")
	fmt.Println("  next                          Show the topic the next run will use")
	fmt.Println("  seed [--source default|reddit] [--subreddit name] [--limit N] [--force]")
	fmt.Println("  auth                          Authorise the YouTube channel interactively")
	fmt.Println("  history [--limit N]           List recorded uploads")
}
