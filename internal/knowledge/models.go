package knowledge

import "time"

type FAQEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Intent    string    `gorm:"type:varchar(16);index" json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (FAQEntry) TableName() string { return "faq_entries" }

type Article struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Intent    string    `gorm:"type:varchar(16);index" json:"intent,omitempty"`
	Source    string    `gorm:"type:varchar(255)" json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Article) TableName() string { return "knowledge_articles" }

// GeneticReport is the latest lab report fetched for a user.
type GeneticReport struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Codelab   string    `gorm:"type:varchar(64);not null" json:"codelab"`
	Data      string    `gorm:"type:text" json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GeneticReport) TableName() string { return "genetic_reports" }

func Models() []any {
	return []any{&FAQEntry{}, &Article{}, &GeneticReport{}}
}
