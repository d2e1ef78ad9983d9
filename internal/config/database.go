package config

import (
	"github.com/atrium-collab/atrium/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitDB opens the relational store and migrates the schema.
func InitDB(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DatabaseURI), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatMember{},
		&models.ChatMessage{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.PinnedMessage{},
		&models.ChatSettings{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
