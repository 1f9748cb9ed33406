// Package domain defines the persistence models of the file-search bot:
// Telegram users and their side records, the document catalog, broadcasts
// and their per-user delivery records. These types are mapped with GORM and
// form the core data layer of the application.
package domain

import (
	"strings"
	"time"
)

// User is a Telegram account that has interacted with the bot.
//
// Fields:
//   - TelegramID: external Telegram user id (unique).
//   - IsAdmin: may run admin commands and the admin API.
//   - IsBlocked: admin-applied block; blocked users never receive broadcasts.
//   - Left: soft signal set when Telegram reports the bot was blocked by the
//     user. It is cleared on the next successful delivery.
//   - StockLanguage: language code reported by the Telegram client.
//   - SelectedLanguage: language explicitly chosen in the bot, preferred over StockLanguage.
//   - LastActive: updated on every interaction.
type User struct {
	ID               uint      `json:"id"                gorm:"primaryKey"`
	TelegramID       int64     `json:"telegram_id"       gorm:"not null;uniqueIndex:ux_users_telegram_id"`
	FirstName        string    `json:"first_name"        gorm:"type:varchar(255);not null;default:''"`
	LastName         string    `json:"last_name"         gorm:"type:varchar(255);not null;default:''"`
	Username         string    `json:"username"          gorm:"type:varchar(255);not null;default:''"`
	StockLanguage    string    `json:"stock_language"    gorm:"type:varchar(16);not null;default:''"`
	SelectedLanguage string    `json:"selected_language" gorm:"type:varchar(16);not null;default:''"`
	Deeplink         string    `json:"deeplink"          gorm:"type:varchar(255);not null;default:''"`
	IsAdmin          bool      `json:"is_admin"          gorm:"not null;default:false"`
	IsBlocked        bool      `json:"is_blocked"        gorm:"not null;default:false;index"`
	Left             bool      `json:"left"              gorm:"not null;default:false"`
	LastActive       time.Time `json:"last_active"       gorm:"index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Language returns the preferred language code of the user.
func (u User) Language() string {
	if u.SelectedLanguage != "" {
		return u.SelectedLanguage
	}
	return u.StockLanguage
}

// FullName joins first and last names.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SubscribeChannel is a channel users must join before searching. Only
// active channels are enforced.
type SubscribeChannel struct {
	ID              uint      `json:"id"               gorm:"primaryKey"`
	ChannelUsername string    `json:"channel_username" gorm:"type:varchar(255);not null;default:''"`
	ChannelLink     string    `json:"channel_link"     gorm:"type:varchar(512);not null;default:''"`
	ChannelID       int64     `json:"channel_id"       gorm:"not null;uniqueIndex"`
	Active          bool      `json:"active"           gorm:"not null;default:true;index"`
	Private         bool      `json:"private"          gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for SubscribeChannel.
func (SubscribeChannel) TableName() string { return "subscribe_channels" }

// URL returns the public link of the channel.
func (c SubscribeChannel) URL() string {
	switch {
	case c.ChannelLink != "":
		return c.ChannelLink
	case c.ChannelUsername != "":
		return "https://t.me/" + strings.TrimPrefix(c.ChannelUsername, "@")
	default:
		return "https://t.me"
	}
}

// Location is a geo point shared by a user.
type Location struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    uint      `json:"user_id"    gorm:"not null;index"`
	Latitude  float64   `json:"latitude"   gorm:"not null"`
	Longitude float64   `json:"longitude"  gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Location.
func (Location) TableName() string { return "locations" }

// SearchQuery is an audit row written for every search a user runs.
type SearchQuery struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	UserID       uint      `json:"user_id"       gorm:"not null;index"`
	QueryText    string    `json:"query_text"    gorm:"type:text;not null"`
	FoundResults int64     `json:"found_results" gorm:"not null;default:0"`
	IsDeepSearch bool      `json:"is_deep_search" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`
}

// TableName returns the database table name for SearchQuery.
func (SearchQuery) TableName() string { return "search_queries" }
