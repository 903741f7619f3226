package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/drivethru-sim/agent/agents/engine"
	"github.com/tanpawarit/drivethru-sim/agent/agents/oracle"
	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	gatewayx "github.com/tanpawarit/drivethru-sim/agent/gateway"
	"github.com/tanpawarit/drivethru-sim/agent/gateway/lilacstub"
	goalx "github.com/tanpawarit/drivethru-sim/agent/goal"
	llmx "github.com/tanpawarit/drivethru-sim/agent/llm"
	menux "github.com/tanpawarit/drivethru-sim/agent/menu"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	"github.com/tanpawarit/drivethru-sim/agent/sim"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
	configx "github.com/tanpawarit/drivethru-sim/pkg/config"
	logx "github.com/tanpawarit/drivethru-sim/pkg/logger"
)

type Args struct {
	Level   string `arg:"-l,--level" default:"simple" help:"order complexity: simple, medium or complex"`
	Runs    int    `arg:"-n,--runs" default:"1" help:"number of simulated customers"`
	Workers int    `arg:"-w,--workers" default:"1" help:"conversations run in parallel"`
	Seed    uint64 `arg:"--seed" help:"fix goal and persona generation; 0 is random"`
	Env     string `arg:"--env" help:"path to a .env file"`
	Stub    bool   `arg:"--stub" help:"talk to an in-process echo agent instead of Lilac"`
	Quiet   bool   `arg:"-q,--quiet" help:"print only the summary"`
}

func (Args) Description() string {
	return "drivethru-sim plays synthetic drive-through customers against the Lilac ordering agent."
}

type MenuConfig struct {
	Path string `envconfig:"PATH"`
}

type StoreConfig struct {
	Driver string `envconfig:"DRIVER" default:"none"`
}

func main() {
	var args Args
	arg.MustParse(&args)
	configx.SetEnvFile(args.Env)

	if logCfg, err := configx.New[logx.Config]("LOG"); err == nil {
		logx.Init(*logCfg)
	} else {
		logx.Init()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx, args); err != nil {
		log.Error().Err(err).Msg("simulation aborted")
		os.Exit(1)
	}
}

func run(ctx context.Context, args Args) error {
	level, err := goalx.ParseLevel(args.Level)
	if err != nil {
		return err
	}

	catalog, err := loadMenu()
	if err != nil {
		return err
	}

	var opts []sim.Option
	gateway, hook, closeGateway, err := newGateway(args.Stub)
	if err != nil {
		return err
	}
	defer closeGateway()
	if hook != nil {
		opts = append(opts, sim.WithStartHook(hook))
	}

	store, closeStore, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		opts = append(opts, sim.WithStore(store))
	}

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return err
	}
	customer, err := oracle.NewRegistry(ctx, *llmCfg)
	if err != nil {
		return err
	}

	engineCfg, err := configx.New[engine.Config]("ENGINE")
	if err != nil {
		return err
	}
	eng, err := engine.New(gateway, customer, *engineCfg)
	if err != nil {
		return err
	}

	runner, err := sim.NewRunner(catalog, gateway, eng, opts...)
	if err != nil {
		return err
	}

	sum := runner.RunBatch(ctx, sim.BatchConfig{
		Runs:    args.Runs,
		Workers: args.Workers,
		Level:   level,
		Seed:    args.Seed,
	})

	if !args.Quiet {
		for _, rep := range sum.Reports {
			printReport(rep)
		}
	}
	fmt.Printf("runs=%d succeeded=%d failed=%d elapsed=%s avg=%s\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Elapsed.Round(time.Millisecond), sum.Average.Round(time.Millisecond))

	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", sum.Failed, sum.Total)
	}
	return nil
}

func loadMenu() (*menux.Catalog, error) {
	cfg, err := configx.New[MenuConfig]("MENU")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return menux.Default()
	}
	return menux.Load(cfg.Path)
}

// newGateway returns the remote agent client. In stub mode the client talks
// to an in-process echo agent that is told each goal through the start hook.
func newGateway(stub bool) (contractx.Gateway, func(string, []orderx.Item), func(), error) {
	if !stub {
		cfg, err := configx.New[gatewayx.Config]("LILAC")
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := gatewayx.NewClient(*cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, func() {}, nil
	}

	agent := lilacstub.New(lilacstub.EchoGoal())
	server := httptest.NewServer(agent.Handler())

	policy := gatewayx.DefaultPolicy()
	policy.TurnDelay = 0
	client, err := gatewayx.NewClient(
		gatewayx.Config{APIBaseURL: server.URL, APIToken: "stub"},
		gatewayx.WithHTTPClient(server.Client()),
		gatewayx.WithPolicy(policy),
	)
	if err != nil {
		server.Close()
		return nil, nil, nil, err
	}
	log.Info().Str("url", server.URL).Msg("using in-process lilac stub")
	return client, agent.Expect, server.Close, nil
}

func newStore(ctx context.Context) (statex.Store, func(), error) {
	cfg, err := configx.New[StoreConfig]("STORE")
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, func() {}, nil
	case "postgres":
		pgCfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewPostgresRunStore(ctx, *pgCfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "upstash":
		upCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewUpstashRunStore(*upCfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func printReport(rep sim.Report) {
	fmt.Printf("=== run %s (%s) order=%s ===\n", rep.RunID, rep.Level, rep.OrderID)
	for _, m := range rep.Conversation.Transcript {
		fmt.Printf("%s: %s\n", statex.Speaker(m.Role), m.Content)
	}
	fmt.Println("goal:")
	for _, it := range rep.Goal {
		fmt.Printf("  - %s\n", it)
	}
	fmt.Println("final order:")
	for _, it := range rep.Final {
		fmt.Printf("  - %s\n", it)
	}
	if rep.Err != nil {
		fmt.Printf("error: %v\n", rep.Err)
	}
	verdict := "not verified"
	if rep.Verified {
		verdict = rep.Verdict.String()
	}
	fmt.Printf("%s (turns=%d, state=%s, took %s)\n\n",
		verdict, rep.Conversation.Turns, rep.Conversation.FinalState, rep.Duration.Round(time.Millisecond))
}
