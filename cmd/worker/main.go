package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/config"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/db"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/handlers"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/jobs"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/logging"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/realtime"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/schemas"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/services/marketplace"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/services/ranking"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/utils"
)

const usage = `usage: worker [command] [flags]

commands:
  serve             scheduler, task worker and ops HTTP server (default)
  run-once          recompute every user now and exit
  create-user       register a user from flags
  rank-bids         print a project's bids, best first
  top-freelancers   print the best ranked freelancers`

var errUsage = errors.New("unknown command")

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)

	if err := run(cfg, log, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Stderr.WriteString(usage + "\n")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred closes always happen.
func run(cfg config.Config, log zerolog.Logger, args []string) error {
	ctx := context.Background()

	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve", "run-once", "create-user", "rank-bids", "top-freelancers":
	default:
		return fmt.Errorf("%w: %s", errUsage, cmd)
	}

	gdb, err := db.Connect(cfg.DBDSN, cfg.DBPool)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := marketplace.NewStore(gdb)

	rdb := realtime.NewRedis(cfg.Redis)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	agg := ranking.NewAggregator(store, ranking.PortfolioV1{}, log, ranking.AggregatorConfig{
		Workers: cfg.Metrics.Workers,
		Lock:    realtime.NewLocker(rdb),
		LockTTL: cfg.Metrics.LockTTL,
	})

	switch cmd {
	case "serve":
		return serve(cfg, log, store, agg, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	case "run-once":
		res, err := agg.Run(ctx, models.RunTriggerManual)
		if err != nil {
			return fmt.Errorf("metrics run: %w", err)
		}
		printJSON(res)
	case "create-user":
		return createUser(ctx, cfg, store, args)
	case "rank-bids":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		project := fs.Uint("project", 0, "project id")
		_ = fs.Parse(args)
		bids, err := ranking.NewRanker(store).ProjectBids(ctx, *project)
		if err != nil {
			return fmt.Errorf("rank bids of project %d: %w", *project, err)
		}
		printJSON(bids)
	case "top-freelancers":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		skills := fs.String("skills", "", "comma separated skills to match")
		limit := fs.Int("limit", 20, "max results")
		_ = fs.Parse(args)
		top, err := ranking.NewRanker(store).Freelancers(ctx, models.SplitSkills(*skills), *limit)
		if err != nil {
			return fmt.Errorf("rank freelancers: %w", err)
		}
		printJSON(top)
	}
	return nil
}

func serve(cfg config.Config, log zerolog.Logger, store *marketplace.Store, agg *ranking.Aggregator, pingRedis handlers.Check) error {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	enq := jobs.NewEnqueuer(redisOpt, cfg.Metrics.UniqueTTL, log)
	defer enq.Close()

	worker := jobs.NewWorker(redisOpt, agg, cfg.Metrics.TaskConcurrency, log)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start task worker: %w", err)
	}
	defer worker.Shutdown()

	sched, err := jobs.NewScheduler(redisOpt, cfg.Metrics.Schedule, cfg.Metrics.UniqueTTL, log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Shutdown()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handlers.NewMetricsHandler(store, enq, map[string]handlers.Check{
		"db":    store.Ping,
		"redis": pingRedis,
	}, log).Register(app)

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.AppPort).Str("schedule", cfg.Metrics.Schedule).Msg("metrics worker starting")
		listenErr <- app.Listen(":" + cfg.AppPort)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("shutting down")
	case err := <-listenErr:
		return fmt.Errorf("ops server: %w", err)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("ops server shutdown")
	}
	log.Info().Msg("metrics worker stopped")
	return nil
}

func createUser(ctx context.Context, cfg config.Config, store *marketplace.Store, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	var in schemas.UserInput
	fs.StringVar(&in.Username, "username", "", "username")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.StringVar(&in.Password, "password", "", "password")
	fs.BoolVar(&in.IsFreelancer, "freelancer", false, "register as freelancer")
	fs.StringVar(&in.Bio, "bio", "", "bio")
	fs.StringVar(&in.Skills, "skills", "", "comma separated skills")
	_ = fs.Parse(args)

	hasher := utils.NewPasswordHasher(utils.HasherConfig{
		Algorithm:  cfg.Password.Hasher,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2: utils.Argon2Params{
			Memory:      cfg.Password.Argon2Memory,
			Iterations:  cfg.Password.Argon2Iterations,
			Parallelism: cfg.Password.Argon2Parallelism,
		},
	})

	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	u, cred, err := schemas.NewLoader(hasher).User(raw)
	if err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	if err := store.CreateUser(ctx, &u, cred); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	printJSON(schemas.DumpUserPublic(u))
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
