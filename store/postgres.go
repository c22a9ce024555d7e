/*
 * Copyright (C) 2025 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirish81/chatgraph"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ chatgraph.Checkpointer = &Postgres{}

// MessageModel is a persisted message
type MessageModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	ThreadID  string    `gorm:"uniqueIndex:idx_thread_seq;size:255;not null;column:thread_id"`
	Seq       int       `gorm:"uniqueIndex:idx_thread_seq;not null;column:seq"`
	MessageID string    `gorm:"size:36;not null;column:message_id"`
	Role      string    `gorm:"size:20;not null;column:role"`
	Content   string    `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

func (MessageModel) TableName() string {
	return "chatgraph_messages"
}

func (m MessageModel) ToMessage() chatgraph.Message {
	return chatgraph.Message{
		ID:        m.MessageID,
		Role:      chatgraph.Role(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func ToMessageModel(threadID string, seq int, msg chatgraph.Message) MessageModel {
	return MessageModel{
		ThreadID:  threadID,
		Seq:       seq,
		MessageID: msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

// Postgres is a Checkpointer backed by PostgreSQL through gorm
type Postgres struct {
	db *gorm.DB
}

// NewPostgres connects to dsn, retrying up to attempts times, and migrates the schema
func NewPostgres(ctx context.Context, dsn string, attempts int) (*Postgres, error) {
	var db *gorm.DB
	err := connect(ctx, attempts, "postgres", func() error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err != nil {
			return err
		}
		return db.WithContext(ctx).AutoMigrate(&MessageModel{})
	})
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, threadID string) (chatgraph.Messages, bool, error) {
	records := make([]MessageModel, 0)
	if err := p.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("seq").Find(&records).Error; err != nil {
		return nil, false, err
	}
	messages := make(chatgraph.Messages, 0, len(records))
	for _, r := range records {
		messages = append(messages, r.ToMessage())
	}
	return messages, len(messages) > 0, nil
}

// Put appends the messages the store does not have yet, in a single transaction. A history that does not start
// with the stored messages is rejected with ErrConflict; concurrent inserts collide on idx_thread_seq.
func (p *Postgres) Put(ctx context.Context, threadID string, messages chatgraph.Messages) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		storedIDs := make([]string, 0)
		if err := tx.Model(&MessageModel{}).Where("thread_id = ?", threadID).Order("seq").
			Pluck("message_id", &storedIDs).Error; err != nil {
			return err
		}
		newMessages, err := tail(messages, storedIDs)
		if err != nil {
			return err
		}
		stored := len(storedIDs)
		if len(newMessages) == 0 {
			return nil
		}
		records := make([]MessageModel, 0, len(newMessages))
		for i, msg := range newMessages {
			records = append(records, ToMessageModel(threadID, stored+i, msg))
		}
		if err := tx.Create(&records).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %w", ErrConflict, err)
			}
			return err
		}
		return nil
	})
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := p.db.WithContext(ctx).Model(&MessageModel{}).Distinct().Order("thread_id").Pluck("thread_id", &ids).Error
	return ids, err
}

// Close closes the underlying connection pool
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
