package models

import "time"

// Tipos de job de crawl
const (
	JobTypeScheduled = "scheduled"
	JobTypeManual    = "manual"
)

// Status possíveis de um job de crawl
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusStopped   = "stopped"
)

// CrawlJob representa uma execução do crawler, do início à finalização
type CrawlJob struct {
	ID              int64
	JobType         string
	Status          string
	Category        string // id da categoria ou "all"
	TotalProducts   int
	CrawledProducts int
	NewProducts     int
	FailedProducts  int
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     time.Time
	CreatedAt       time.Time
}
