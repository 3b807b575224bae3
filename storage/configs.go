package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/tkrehbiel/statuslace/statusnet"
	"gorm.io/gorm"
)

// ServerConfig represents an ORM object for the last config fetched from a host
type ServerConfig struct {
	Host      string `gorm:"primaryKey"`
	Name      string
	TextLimit int
	FetchedAt time.Time
	Source    string // json source
}

type Configs interface {
	FindConfig(host string) (*ServerConfig, error)
	SaveConfig(c *ServerConfig) error
}

// FromServerConfig converts an API config for storage
func FromServerConfig(host string, c statusnet.ServerConfig) ServerConfig {
	return ServerConfig{
		Host:      host,
		Name:      c.Site.Name,
		TextLimit: c.TextLimit(),
		FetchedAt: time.Now().UTC(),
		Source:    string(c.JSON()),
	}
}

// ToServerConfig rebuilds the API config from its stored json source
func (c ServerConfig) ToServerConfig() (statusnet.ServerConfig, error) {
	cfg, err := statusnet.ParseServerConfig([]byte(c.Source))
	if err != nil {
		return cfg, fmt.Errorf("stored config for %s: %w", c.Host, err)
	}
	return cfg, nil
}

func (s *sqliteDatabase) FindConfig(host string) (*ServerConfig, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	if host == "" {
		return nil, nil
	}
	var c ServerConfig
	tx := s.db.First(&c, ServerConfig{Host: host})
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &c, nil
}

func (s *sqliteDatabase) SaveConfig(c *ServerConfig) error {
	if err := s.opened(); err != nil {
		return err
	}
	tx := s.db.Save(c)
	return tx.Error
}
