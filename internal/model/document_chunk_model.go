package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type DocumentChunk struct {
	Id        int64           `gorm:"primaryKey;autoIncrement"`
	Content   string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768);not null"` // nomic-embed-text uses 768 dimensions
	Source    string          `gorm:"type:varchar(512);not null;index"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
