package main

import (
	"context"
	"net/http"

	"contraflow/bizerror"
	"contraflow/client/es"
	"contraflow/client/s3"
	"contraflow/domain"
	"contraflow/domain/authority"
	"contraflow/domain/escalation"
	"contraflow/domain/kyc"
	"contraflow/domain/signing"
	"contraflow/event"
	"contraflow/indices"
	"contraflow/infra/tracing"
	"contraflow/persistence"
	"contraflow/servehttp"
	"contraflow/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	if err := migrate(ds); err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}

	s3.Bootstrap()
	es.Bootstrap()
	indices.Bootstrap()

	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "contraflow")
	})

	session.RegisterSessionsHandler(engine)
	servehttp.RegisterPublicSigningHandler(engine)

	servehttp.RegisterContractHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterKycItemHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterTemplateHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterWorkflowHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterSigningSessionHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterAuthorityHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterEscalationHandler(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}

func migrate(ds *persistence.DataSourceManager) error {
	db := ds.GormDB(context.Background())
	return db.AutoMigrate(
		&session.User{},
		&domain.Contract{},
		&domain.WorkflowTemplate{},
		&domain.WorkflowInstance{},
		&domain.WorkflowStageAction{},
		&authority.SigningAuthority{},
		&kyc.KycPack{},
		&kyc.KycPackItem{},
		&signing.SigningSession{},
		&signing.SigningSessionSigner{},
		&signing.SigningField{},
		&signing.SigningAuditLog{},
		&escalation.EscalationRule{},
		&escalation.EscalationEvent{},
		&event.EventRecord{},
	).Error
}
