package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/pensamiento/apps/api/echo"
	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/scoreboard"
	"github.com/trezcool/pensamiento/core/user"
	emailsvc "github.com/trezcool/pensamiento/services/email"
	logsvc "github.com/trezcool/pensamiento/services/logger"
	scoreboardsvc "github.com/trezcool/pensamiento/services/scoreboard"
	"github.com/trezcool/pensamiento/storage/database"
	inmemdb "github.com/trezcool/pensamiento/storage/database/inmem"
	sqlxrepos "github.com/trezcool/pensamiento/storage/database/sqlx"
)

type repositories struct {
	tx       core.Transactor
	users    user.Repository
	catalog  catalog.Repository
	awards   award.Repository
	students performance.Repository
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	repos, err := setUpRepositories(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	board, closeBoard, err := setUpScoreboard(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scoreboard: %v", err), err)
	}
	defer func() {
		if err = closeBoard(); err != nil {
			logger.Error(fmt.Sprintf("closing scoreboard: %v", err), err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	// set up services
	mailSvc := emailsvc.NewService(conf, logger)
	catalogSvc := catalog.NewService(repos.catalog)
	awardSvc := award.NewService(
		award.Deps{
			Tx:         repos.tx,
			Repo:       repos.awards,
			Students:   repos.students,
			Catalog:    catalogSvc,
			Scoreboard: board,
			Mailer:     mailSvc,
			Logger:     logger,
			Validate:   validate,
		},
		award.Options{
			ReissuePolicy:       conf.Awards.ReissuePolicy,
			StrictActivityMatch: conf.Awards.StrictActivityMatch,
			CodeAttempts:        conf.Awards.CodeAttempts,
		},
	)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus collectors of services/metrics.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("reissue_policy").Set(conf.Awards.ReissuePolicy)
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        user.NewService(repos.users),
			CatalogSvc:     catalogSvc,
			AwardSvc:       awardSvc,
			PerformanceSvc: performance.NewService(repos.students, conf.Leaderboard.Size),
			Scoreboard:     board,
			Validate:       validate,
			Translator:     translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return repositories{
			tx:       db,
			users:    inmemdb.NewUserRepository(db),
			catalog:  inmemdb.NewCatalogRepository(db),
			awards:   inmemdb.NewAwardRepository(db),
			students: inmemdb.NewPerformanceRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, err
	}
	return repositories{
		tx:       sqlxrepos.NewStore(db),
		users:    sqlxrepos.NewUserRepository(db),
		catalog:  sqlxrepos.NewCatalogRepository(db),
		awards:   sqlxrepos.NewAwardRepository(db),
		students: sqlxrepos.NewPerformanceRepository(db),
		close:    db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*2)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpScoreboard uses redis when configured, and an in-process feed otherwise.
func setUpScoreboard(conf *core.Config) (scoreboard.Publisher, func() error, error) {
	if conf.Redis.URL == "" {
		return scoreboardsvc.NewMemoryPublisher(conf.Scoreboard.Size), func() error { return nil }, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	board, err := scoreboardsvc.NewRedisPublisher(ctx, conf.Redis.URL, conf.Scoreboard.Size)
	if err != nil {
		return nil, nil, err
	}
	return board, board.Close, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
