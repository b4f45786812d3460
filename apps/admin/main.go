package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	storagesvc "github.com/trezcool/darasa/services/storage"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(context.Background(), db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	store, err := storagesvc.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	files := attachment.NewHelper(store, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator, conf)
	user.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf, validate)

	// start CLI
	cli := commandLine{
		conf:            conf,
		logger:          logger,
		db:              db.DB,
		usrSvc:          usrSvc,
		announcementSvc: announcement.NewService(sqlxrepos.NewAnnouncementRepository(db), files, usrSvc, mailSvc, conf, validate, logger),
		messageSvc:      message.NewService(sqlxrepos.NewMessageRepository(db), usrSvc, files, conf, validate),
		stdin:           bufio.NewReader(os.Stdin),
		stdout:          os.Stdout,
	}
	err = cli.run(os.Args)

	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
