package main

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Website is a directory entry, identified by its root domain.
type Website struct {
	gorm.Model
	DisplayName string `gorm:"not null"`
	DomainName  string `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	IsVerified  bool   `gorm:"default:false"`

	Categories []Category `gorm:"many2many:website_categories"`
	Reviews    []Review
}

// Review holds one user's ratings for one website. At most one review per
// (user, website) pair; resubmitting deletes the old row and inserts a new
// one rather than updating in place.
type Review struct {
	gorm.Model
	UserID    uint `gorm:"index"`
	WebsiteID uint `gorm:"index"`

	RatingOverall     int
	RatingDesign      int
	RatingUsability   int
	RatingContent     int
	RatingReliability int

	Comment string `gorm:"type:text"`

	User    User    `gorm:"constraint:OnDelete:CASCADE;"`
	Website Website `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Category groups websites. The join rows in website_categories are fully
// replaced on edit, never diffed.
type Category struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null"`

	Websites []Website `gorm:"many2many:website_categories"`
}

// Submission statuses. A submission is terminal once it leaves pending.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission is a community-proposed website waiting for admin review.
type Submission struct {
	gorm.Model
	SubmittedByID       uint   `gorm:"index"`
	Name                string `gorm:"not null"`
	URL                 string `gorm:"uniqueIndex;not null"`
	Description         string `gorm:"type:text"`
	SuggestedCategoryID *uint
	Status              string `gorm:"default:pending;index"`

	SubmittedBy       User      `gorm:"foreignKey:SubmittedByID"`
	SuggestedCategory *Category `gorm:"foreignKey:SuggestedCategoryID"`
}

// User roles. Admins can reach the back-office; everyone else is a reviewer.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account with access to the site
type User struct {
	gorm.Model
	Username            string         `gorm:"uniqueIndex;not null"`
	Email               string         `gorm:"uniqueIndex"`
	PasswordHash        datatypes.JSON `gorm:"type:json"`
	SessionToken        string         `gorm:"index"`
	Role                string         `gorm:"default:user"`
	PasswordResetToken  string         `gorm:"index"`
	PasswordResetExpiry int64

	Reviews     []Review     `gorm:"foreignKey:UserID"`
	Submissions []Submission `gorm:"foreignKey:SubmittedByID"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
