package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/tkrehbiel/statuslace/statusnet"
	"gorm.io/gorm"
)

// Status represents an ORM object for a status fetched from a server
type Status struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index"`
	InReplyToID    string
	ScreenName     string
	Text           string
	Published      time.Time `gorm:"index"`
	Source         string    // json source
}

type Statuses interface {
	FindStatus(id string) (*Status, error)
	SaveStatus(st *Status) error
	GetConversation(conversationID string, n int) ([]Status, error)
}

// FromStatus converts an API status for storage
func FromStatus(s statusnet.Status) Status {
	return Status{
		ID:             s.ID.String(),
		ConversationID: s.ConversationID.String(),
		InReplyToID:    s.InReplyToStatusID.String(),
		ScreenName:     s.ScreenName(),
		Text:           s.Text,
		Published:      s.Timestamp(),
		Source:         string(s.JSON()),
	}
}

// ToStatus rebuilds the API status from its stored json source
func (st Status) ToStatus() (statusnet.Status, error) {
	s, err := statusnet.ParseStatus([]byte(st.Source))
	if err != nil {
		return s, fmt.Errorf("stored status %s: %w", st.ID, err)
	}
	return s, nil
}

func (s *sqliteDatabase) FindStatus(id string) (*Status, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	var st Status
	tx := s.db.First(&st, Status{ID: id})
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &st, nil
}

// SaveStatus inserts or replaces a status
func (s *sqliteDatabase) SaveStatus(st *Status) error {
	if err := s.opened(); err != nil {
		return err
	}
	if st.ID == "" {
		return fmt.Errorf("saving status: %w", statusnet.ErrMissingID)
	}
	tx := s.db.Save(st)
	return tx.Error
}

// GetConversation returns up to n stored statuses of a conversation, newest first.
// Statuses published at the same time, or without a time, are ordered by numeric id.
func (s *sqliteDatabase) GetConversation(conversationID string, n int) (statuses []Status, err error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, nil
	}
	tx := s.db.Where("conversation_id = ?", conversationID).Order("published desc, length(id) desc, id desc")
	if n > 0 {
		tx = tx.Limit(n)
	}
	tx = tx.Find(&statuses)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return statuses, nil
}
