package main

import (
	"context"
	"net/http"
	"os"

	"pneumatic/bizerror"
	"pneumatic/common"
	"pneumatic/domain"
	"pneumatic/es"
	"pneumatic/event"
	"pneumatic/infra/tracing"
	"pneumatic/notify"
	"pneumatic/persistence"
	"pneumatic/servehttp"
	"pneumatic/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	tracingCloser, err := tracing.Bootstrap()
	if err != nil {
		logrus.Fatalf("failed to bootstrap tracing %v\n", err)
	}
	defer tracingCloser.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&domain.User{}, &domain.Group{},
		&domain.Template{}, &domain.TaskTemplate{}, &domain.RawPerformerTemplate{},
		&domain.ConditionTemplate{}, &domain.RuleTemplate{}, &domain.PredicateTemplate{},
		&domain.Workflow{}, &domain.Task{}, &domain.TaskPerformer{}, &domain.FieldValue{},
		&event.EventRecord{},
	).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	es.CreateClientFromEnv()

	if amqpURL := os.Getenv("NOTIFY_AMQP_URL"); amqpURL != "" {
		if err := notify.Connect(amqpURL); err != nil {
			logrus.Fatalf("failed to connect notification broker %v\n", err)
		}
		defer notify.Close()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	servehttp.RegisterTaskHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterWorkflowHandler(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}
