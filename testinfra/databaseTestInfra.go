package testinfra

import (
	"context"
	"log"
	"os"
	"strings"

	"pneumatic/persistence"

	"github.com/google/uuid"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

// StartTestDatabase runs against an in-memory sqlite database unless
// TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) points at a real server.
func StartTestDatabase(baseName string) *TestDatabase {
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc == "" {
		// a named in-memory database keeps tests of one package isolated
		name := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
		dbConfig := &persistence.DatabaseConfig{DriverType: "sqlite3",
			DriverArgs: "file:" + name + "?mode=memory&cache=shared"}
		ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
		if err := ds.Start(); err != nil {
			log.Fatalf("database connection failed %v\n", err)
		}
		return &TestDatabase{DS: ds}
	}

	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	dbConfig := &persistence.DatabaseConfig{
		DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}

	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		log.Fatalf("failed to prepare database %v\n", err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database connection failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.TestDatabaseName != "" {
		db := testDatabase.DS.GormDB(context.Background())
		if db != nil {
			if err := db.Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
				log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
			}
		}
	}
	testDatabase.DS.Stop()
}
