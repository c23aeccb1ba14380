package models

import "gorm.io/datatypes"

// Category is an award. Leadership prizes have a pre-assigned winner and are
// not voted on; their winner stays hidden until LeadershipRevealed is set.
type Category struct {
	BaseModel

	Name     string `gorm:"uniqueIndex;size:191;not null" json:"name"`
	Subtitle string `json:"subtitle,omitempty"`
	Special  bool   `gorm:"not null;default:false" json:"special"`

	IsLeadershipPrize      bool   `gorm:"not null;default:false" json:"is_leadership_prize"`
	PreAssignedWinner      string `json:"pre_assigned_winner,omitempty"`
	PreAssignedWinnerBio   string `json:"pre_assigned_winner_bio,omitempty"`
	PreAssignedWinnerImage string `json:"pre_assigned_winner_image,omitempty"`
	LeadershipRevealed     bool   `gorm:"not null;default:false" json:"leadership_revealed"`

	Candidates []Candidate `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"candidates,omitempty"`
}

// Candidate belongs to exactly one category.
type Candidate struct {
	BaseModel

	CategoryID   string         `gorm:"type:uuid;not null;index" json:"category_id"`
	Name         string         `gorm:"not null" json:"name"`
	Bio          string         `json:"bio,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Achievements datatypes.JSON `json:"achievements,omitempty"`
	SongTitle    string         `json:"song_title,omitempty"`
	SongURL      string         `json:"song_url,omitempty"`
}
