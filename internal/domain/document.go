package domain

import "time"

// StageStatus is the state of one document pipeline stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// Document is a catalog file moving through the ingestion pipeline
// (download, parse, index, upload to Telegram). Only documents with
// Completed set and a TelegramFileID can be sent to users.
type Document struct {
	ID              string      `json:"id"               gorm:"type:char(36);primaryKey"`
	ParseFileURL    string      `json:"parse_file_url"   gorm:"type:varchar(1024);not null;default:''"`
	DownloadStatus  StageStatus `json:"download_status"  gorm:"type:varchar(16);not null;default:'pending';index"`
	ParseStatus     StageStatus `json:"parse_status"     gorm:"type:varchar(16);not null;default:'pending';index"`
	IndexStatus     StageStatus `json:"index_status"     gorm:"type:varchar(16);not null;default:'pending';index"`
	TelegramStatus  StageStatus `json:"telegram_status"  gorm:"type:varchar(16);not null;default:'pending';index"`
	DeleteStatus    StageStatus `json:"delete_status"    gorm:"type:varchar(16);not null;default:'pending'"`
	Completed       bool        `json:"completed"        gorm:"not null;default:false;index"`
	TelegramFileID  *string     `json:"telegram_file_id,omitempty" gorm:"type:varchar(255)"`
	JSONData        *string     `json:"-"                gorm:"type:text"`
	PipelineRunning bool        `json:"pipeline_running" gorm:"not null;default:false"`
	CreatedAt       time.Time   `json:"created_at"       gorm:"index"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// Deliverable reports whether the document can be sent by file id.
func (d Document) Deliverable() bool {
	return d.Completed && d.TelegramFileID != nil && *d.TelegramFileID != ""
}

// Product is the user-facing catalog entry of a document.
type Product struct {
	ID            uint      `json:"id"             gorm:"primaryKey"`
	Title         string    `json:"title"          gorm:"type:varchar(512);not null"`
	Slug          string    `json:"slug"           gorm:"type:varchar(512);not null;uniqueIndex"`
	ParsedContent string    `json:"-"              gorm:"type:text"`
	DocumentID    string    `json:"document_id"    gorm:"type:char(36);not null;uniqueIndex"`
	ViewCount     int64     `json:"view_count"     gorm:"not null;default:0"`
	DownloadCount int64     `json:"download_count" gorm:"not null;default:0"`
	FileSize      int64     `json:"file_size"      gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// ErrorType classifies a DocumentError.
type ErrorType string

const (
	ErrorDownload         ErrorType = "download"
	ErrorTelegramSend     ErrorType = "telegram_send"
	ErrorTelegramDownload ErrorType = "telegram_download"
	ErrorParse            ErrorType = "parse"
	ErrorIndex            ErrorType = "index"
	ErrorOther            ErrorType = "other"
)

// DocumentError records a pipeline failure for a document.
type DocumentError struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	DocumentID   string    `json:"document_id"   gorm:"type:char(36);not null;index"`
	ErrorType    ErrorType `json:"error_type"    gorm:"type:varchar(32);not null;default:'other';index"`
	ErrorMessage string    `json:"error_message" gorm:"type:text;not null"`
	Attempt      int       `json:"attempt"       gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DocumentError.
func (DocumentError) TableName() string { return "document_errors" }
