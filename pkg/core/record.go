package core

import "time"

// Record is one catalog entity. AppID is the primary identifier; re-upserting
// an existing AppID replaces the stored row. The aggregable numeric columns
// and ScoreRank are pointers because source rows may carry empty cells, and
// statistics must distinguish null from zero.
type Record struct {
	AppID              int64    `json:"app_id"`
	Name               string   `json:"name"`
	ReleaseDate        string   `json:"release_date"` // ISO YYYY-MM-DD
	RequiredAge        int64    `json:"required_age"`
	Price              *float64 `json:"price"`
	DLCCount           *int64   `json:"dlc_count"`
	AboutGame          string   `json:"about_game"`
	SupportedLanguages string   `json:"supported_languages"`
	Windows            bool     `json:"windows"`
	Mac                bool     `json:"mac"`
	Linux              bool     `json:"linux"`
	Positive           *int64   `json:"positive"`
	Negative           *int64   `json:"negative"`
	ScoreRank          *int64   `json:"score_rank"`
	Developers         string   `json:"developers"`
	Publishers         string   `json:"publishers"`
	Categories         string   `json:"categories"`
	Genres             string   `json:"genres"`
	Tags               string   `json:"tags"`
}

// Rejection records one row an ingestion call could not accept.
type Rejection struct {
	Row    int    `json:"row"` // 1-based data row number, header excluded
	Reason string `json:"reason"`
}

// IngestEvent is the immutable audit record of one import operation.
type IngestEvent struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"` // file path or URL
	Mode       string      `json:"mode"`   // "upload", "file" or "url"
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
