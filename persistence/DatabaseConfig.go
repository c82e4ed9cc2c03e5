package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DATABASE_URL=mysql://root:root@(127.0.0.1:3306)/pneumatic?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	databaseUrl := os.Getenv("DATABASE_URL")
	if databaseUrl == "" {
		return nil, errors.New("environment variable DATABASE_URL is not set")
	}

	idx := strings.Index(databaseUrl, "://")
	if idx <= 0 || idx == len(databaseUrl)-3 {
		return nil, errors.New("invalid value of environment variable DATABASE_URL")
	}

	return &DatabaseConfig{DriverType: databaseUrl[0:idx], DriverArgs: databaseUrl[idx+3:]}, nil
}

// PrepareMysqlDatabase create the database if not exist yet (no conflict on concurrent boot)
func PrepareMysqlDatabase(driverArgs string) error {
	idx := strings.Index(driverArgs, "/")
	if idx < 0 {
		return errors.New("invalid mysql driver args")
	}
	databaseName := driverArgs[idx+1:]
	if argsIdx := strings.Index(databaseName, "?"); argsIdx >= 0 {
		databaseName = databaseName[0:argsIdx]
	}

	conn, err := sql.Open("mysql", driverArgs[0:idx+1])
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4")
	return err
}
