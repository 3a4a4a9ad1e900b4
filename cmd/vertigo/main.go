package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/backgroundworkers"
	"github.com/vielumine/vertigo/common/pubsub"
	"github.com/vielumine/vertigo/common/sentryhook"
	"github.com/vielumine/vertigo/escalation"
	"github.com/vielumine/vertigo/moderation"
	"github.com/vielumine/vertigo/performance"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/policy"
	"github.com/vielumine/vertigo/reconciler"
	"github.com/vielumine/vertigo/sanctions"
)

var (
	flagRunWorkers    bool
	flagRunEverything bool

	flagDryRun bool

	flagSeedPolicy string
	flagAnalyze    int64

	flagLogTimestamp bool
	flagVersion      bool
)

func init() {
	flag.BoolVar(&flagRunWorkers, "workers", false, "Run the background workers (expiry reconciler and performance sweeps)")
	flag.BoolVar(&flagRunEverything, "all", false, "Run everything in a single process")
	flag.BoolVar(&flagDryRun, "dry", false, "Do a dryrun, initialize everything but don't start anything")
	flag.StringVar(&flagSeedPolicy, "seedpolicy", "", "Load guild policies from the given yaml file and exit")
	flag.Int64Var(&flagAnalyze, "analyze", 0, "Run a staff performance analysis for the given guild id and exit")
	flag.BoolVar(&flagLogTimestamp, "ts", false, "Set to include timestamps in log")
	flag.BoolVar(&flagVersion, "version", false, "Print the version and exit")
}

func main() {
	flag.Parse()

	if flagVersion {
		fmt.Println(common.VERSION)
		return
	}

	common.AddLogHook(common.ContextHook{})
	common.SetLogFormatter(&log.TextFormatter{
		DisableTimestamp: !flagLogTimestamp,
	})
	common.RedirectStdLog()

	if !flagRunWorkers && !flagRunEverything && !flagDryRun && flagSeedPolicy == "" && flagAnalyze == 0 {
		log.Error("Didnt specify what to run, see -h for more info")
		os.Exit(1)
	}

	log.Info("Starting vertigo version " + common.VERSION)

	core, err := common.CoreInit()
	if err != nil {
		log.WithError(err).Fatal("Failed running core init")
	}

	err = sentryhook.Setup(common.ConfSentryDSN.GetString())
	if err != nil {
		log.WithError(err).Error("Failed setting up the sentry hook")
	}

	sanctions.RegisterPlugin(core)
	policy.RegisterPlugin(core)
	core.InitSchemas("promotion_suggestions", performance.SuggestionDBSchemas...)

	ps := pubsub.New(core)

	sanctionStore := sanctions.NewPGStore(core)
	policyStore := policy.NewCachedStore(policy.NewPGStore(core), ps)
	suggestionStore := performance.NewPGSuggestionStore(core)

	// the log platform stands in until a transport binding is plugged in
	plat := &platform.LogPlatform{}

	engine := escalation.NewEngine(sanctionStore, policyStore, plat, plat, core)
	expiry := reconciler.New(core, sanctionStore, plat, plat, engine)
	analyzer := performance.NewAnalyzer(sanctionStore, policyStore, suggestionStore, plat)
	service := moderation.NewService(sanctionStore, policyStore, engine, plat, analyzer, suggestionStore)

	core.RegisterPlugin(&moderation.Plugin{})
	core.RegisterPlugin(expiry)
	core.RegisterPlugin(analyzer)

	if flagSeedPolicy != "" {
		seeded, err := policy.SeedFromFile(context.Background(), policyStore, flagSeedPolicy)
		if err != nil {
			log.WithError(err).Fatal("Failed seeding guild policies")
		}

		log.Infof("Seeded %d guild policies from %s", seeded, flagSeedPolicy)
		return
	}

	if flagAnalyze != 0 {
		report, err := service.AnalyzeStaff(context.Background(), flagAnalyze)
		if err != nil {
			log.WithError(err).Fatal("Failed analyzing the guild")
		}

		log.Infof("Analyzed %d staff members: %d promotion suggestions, %d demotion warnings",
			report.TotalStaff, report.Promotions, report.Warnings)
		return
	}

	if flagDryRun {
		log.Println("This is a dry run, exiting")
		return
	}

	runner := backgroundworkers.NewRunner(core)
	runner.RunWorkers()

	go ps.PollEvents()

	listenSignal(runner, ps)
}

// Gracefull shutdown, waits for the running workers to finish their current
// tick before exiting.
func listenSignal(runner *backgroundworkers.Runner, ps *pubsub.PubSub) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info("SHUTTING DOWN...")

	wg := new(sync.WaitGroup)
	runner.StopWorkers(wg)
	ps.Stop()

	wg.Wait()
	sentryhook.Flush(time.Second * 5)

	log.Info("Bye..")
}
