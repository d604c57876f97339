package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/agent"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/generator"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend/repository"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/config"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/cron"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/logger"
)

func main() {
	cmdGenerate := kingpin.Command("generate", "Generate a synthetic campaign spend dataset")
	genOutput := cmdGenerate.Flag("output", "CSV file to write (defaults to DATA_CSV_PATH)").Short('o').String()
	genSeed := cmdGenerate.Flag("seed", "Random seed, 0 picks one").Int64()
	genYear := cmdGenerate.Flag("year", "Year of the generated records").Default("2025").Int()
	genPostgres := cmdGenerate.Flag("postgres", "Write records to Postgres instead of CSV").Bool()

	cmdReport := kingpin.Command("report", "Generate and publish the spend distribution report")

	cmdAsk := kingpin.Command("ask", "Ask the campaign insight agent a question")
	askQuestion := cmdAsk.Arg("question", "Question to ask, omit for an interactive session").Strings()

	cmdServe := kingpin.Command("serve", "Serve the HTTP API and run the report schedule")

	cmdMigrate := kingpin.Command("migrate", "Apply database migrations")

	cmdLoad := kingpin.Command("load", "Load a spend CSV into Postgres")
	loadInput := cmdLoad.Flag("input", "CSV file to load (defaults to DATA_CSV_PATH)").Short('i').String()
	loadAppend := cmdLoad.Flag("append", "Append instead of replacing existing records").Bool()

	cmd := kingpin.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cmdGenerate.FullCommand():
		err = generate(ctx, cfg, log, *genOutput, *genSeed, *genYear, *genPostgres)
	case cmdReport.FullCommand():
		err = runReport(ctx, cfg, log, os.Stdout)
	case cmdAsk.FullCommand():
		err = ask(ctx, cfg, log, strings.Join(*askQuestion, " "), os.Stdin, os.Stdout)
	case cmdServe.FullCommand():
		err = serve(ctx, cfg, log)
	case cmdMigrate.FullCommand():
		err = migrate(ctx, cfg, log)
	case cmdLoad.FullCommand():
		err = load(ctx, cfg, log, *loadInput, *loadAppend)
	}

	if err != nil {
		log.Error("command failed", slog.String("command", cmd), slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func generate(ctx context.Context, cfg *config.Config, log *slog.Logger, output string, seed int64, year int, toPostgres bool) error {
	gcfg := generator.DefaultConfig()
	gcfg.Seed = seed
	gcfg.Year = year

	gen, err := generator.New(gcfg)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	records := gen.Generate()

	var sink spend.Sink
	if toPostgres {
		database, err := openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		sink = repository.NewPostgresRepository(database.Pool, logger.Component(log, "spend"))
	} else {
		if output == "" {
			output = cfg.Data.CSVPath
		}
		sink = repository.NewCSVRepository(output, logger.Component(log, "spend"))
	}

	if err := sink.Save(ctx, records); err != nil {
		return fmt.Errorf("failed to save generated records: %w", err)
	}

	log.Info("synthetic dataset generated",
		slog.Int("records", len(records)),
		slog.Int("year", year),
		slog.Bool("postgres", toPostgres),
	)
	return nil
}

func runReport(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	deps, err := InitDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	r, err := deps.InsightsService.Refresh(ctx)
	if r == nil {
		return err
	}
	if err != nil {
		log.Warn("report generated but not fully published", slog.Any("error", err))
	}

	_, werr := io.WriteString(out, report.RenderMarkdown(r))
	return errors.Join(err, werr)
}

func ask(ctx context.Context, cfg *config.Config, log *slog.Logger, question string, in io.Reader, out io.Writer) error {
	deps, err := InitDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	session := agent.NewSession()

	if question != "" {
		return answer(ctx, deps.Agent, session, question, out)
	}

	fmt.Fprintf(out, "%s ready. Ask about campaign spend, empty line to quit.\n", agent.Name)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			return nil
		}
		if err := answer(ctx, deps.Agent, session, q, out); err != nil {
			return err
		}
	}
}

func answer(ctx context.Context, a *agent.Agent, session *agent.Session, question string, out io.Writer) error {
	ans, err := a.Ask(ctx, session, question)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", ans.Text)
	return err
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := InitDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if cfg.Schedule.Enabled {
		job := func(ctx context.Context) error {
			_, err := deps.InsightsService.Refresh(ctx)
			return err
		}
		scheduler, err := cron.NewScheduler(cfg.Schedule.Spec, job, 5*time.Minute, logger.Component(log, "scheduler"))
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           deps.Handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	database, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

func load(ctx context.Context, cfg *config.Config, log *slog.Logger, input string, appendOnly bool) error {
	if input == "" {
		input = cfg.Data.CSVPath
	}
	records, err := repository.NewCSVRepository(input, logger.Component(log, "spend")).Load(ctx)
	if err != nil {
		return err
	}

	database, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := repository.NewPostgresRepository(database.Pool, logger.Component(log, "spend"))
	if appendOnly {
		err = repo.Append(ctx, records)
	} else {
		err = repo.Save(ctx, records)
	}
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	log.Info("spend records loaded", slog.String("input", input), slog.Int("records", len(records)))
	return nil
}
