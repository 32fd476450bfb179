package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/user"
	logsvc "github.com/trezcool/pensamiento/services/logger"
	scoreboardsvc "github.com/trezcool/pensamiento/services/scoreboard"
	"github.com/trezcool/pensamiento/storage/database"
	inmemdb "github.com/trezcool/pensamiento/storage/database/inmem"
	sqlxrepos "github.com/trezcool/pensamiento/storage/database/sqlx"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := &commandLine{validate: validate, translator: translator, out: os.Stdout}

	var (
		tx        core.Transactor
		usrRepo   user.Repository
		catRepo   catalog.Repository
		awardRepo award.Repository
	)
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		tx = db
		usrRepo = inmemdb.NewUserRepository(db)
		catRepo = inmemdb.NewCatalogRepository(db)
		awardRepo = inmemdb.NewAwardRepository(db)
		cli.students = inmemdb.NewPerformanceRepository(db)
	} else {
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Error(fmt.Sprintf("opening database: %v", err), err)
			return 1
		}
		defer closeDB(logger, db.DB)
		cli.db = db.DB
		tx = sqlxrepos.NewStore(db)
		usrRepo = sqlxrepos.NewUserRepository(db)
		catRepo = sqlxrepos.NewCatalogRepository(db)
		awardRepo = sqlxrepos.NewAwardRepository(db)
		cli.students = sqlxrepos.NewPerformanceRepository(db)
	}

	if conf.Redis.URL != "" {
		board, err := scoreboardsvc.NewRedisPublisher(ctx, conf.Redis.URL, conf.Scoreboard.Size)
		if err != nil {
			logger.Warn(fmt.Sprintf("live scoreboard disabled: %v", err), err)
		} else {
			defer board.Close()
			cli.watch = board.Subscribe
		}
	}

	cli.usrSvc = user.NewService(usrRepo)
	cli.catalogSvc = catalog.NewService(catRepo)
	cli.awardSvc = award.NewService(
		award.Deps{
			Tx:       tx,
			Repo:     awardRepo,
			Students: cli.students,
			Catalog:  cli.catalogSvc,
			Logger:   logger,
			Validate: validate,
		},
		award.Options{
			ReissuePolicy:       conf.Awards.ReissuePolicy,
			StrictActivityMatch: conf.Awards.StrictActivityMatch,
			CodeAttempts:        conf.Awards.CodeAttempts,
		},
	)

	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		return 1
	}
	return 0
}

func closeDB(logger core.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Error(fmt.Sprintf("closing database: %v", err), err)
	}
}
