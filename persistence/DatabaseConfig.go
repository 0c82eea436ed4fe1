package persistence

import (
	"database/sql"
	"errors"
	"os"

	"github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DATABASE_DRIVER (default mysql), DATABASE_URL
// mysql example: root:root@(127.0.0.1:3306)/contraflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := os.Getenv("DATABASE_DRIVER")
	if driverType == "" {
		driverType = "mysql"
	}
	driverArgs := os.ExpandEnv(os.Getenv("DATABASE_URL"))
	if driverArgs == "" {
		return nil, errors.New("environment variable DATABASE_URL is not set")
	}
	return &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}, nil
}

// PrepareMysqlDatabase create the database of the DSN when absent.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4")
	return err
}
