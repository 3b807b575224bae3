package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/tkrehbiel/statuslace/telemetry"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database interface {
	Statuses
	Configs
	Open() error
	Close()
}

// sqliteDatabase keeps fetched statuses and server configs in a sqlite database
type sqliteDatabase struct {
	connection string
	db         *gorm.DB
	sqldb      *sql.DB
}

func (s *sqliteDatabase) Open() error {
	if s.db != nil {
		s.Close()
	}
	newLogger := logger.New(
		telemetry.Printer{Level: logrus.WarnLevel},
		logger.Config{
			SlowThreshold:             time.Second,  // Slow SQL threshold
			LogLevel:                  logger.Error, // Log level
			IgnoreRecordNotFoundError: true,         // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,        // Disable color
		},
	)
	db, err := gorm.Open(sqlite.Open(s.connection), &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return err
	}
	s.sqldb, err = db.DB()
	if err != nil {
		return err
	}
	s.db = db
	// create tables
	if err := s.db.AutoMigrate(&Status{}, &ServerConfig{}); err != nil {
		s.Close()
		return fmt.Errorf("migrating %s: %w", s.connection, err)
	}
	return nil
}

func (s *sqliteDatabase) Close() {
	if s.db != nil {
		s.sqldb.Close()
		s.sqldb = nil
		s.db = nil
	}
}

func (s *sqliteDatabase) opened() error {
	if s.db == nil {
		return fmt.Errorf("database %s has not been opened", s.connection)
	}
	return nil
}

func NewDatabase(connection string) Database {
	return &sqliteDatabase{
		connection: connection,
	}
}
