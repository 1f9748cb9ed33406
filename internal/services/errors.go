// Package services defines the business logic for broadcasts, search, file
// delivery, the admin dashboard and the bot's access guards.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Broadcast-related errors.
var (
	// ErrBotNotConfigured is returned when an operation needs the Bot API but
	// no BOT_TOKEN is configured. It is the one error that aborts a delivery
	// instead of being recorded on the recipient.
	ErrBotNotConfigured = errors.New("telegram bot is not configured")

	// ErrBroadcastNotFound indicates that the requested broadcast does not exist.
	ErrBroadcastNotFound = errors.New("broadcast not found")

	// ErrInvalidBroadcast is returned when a broadcast is created without a
	// source chat or message.
	ErrInvalidBroadcast = errors.New("from_chat_id and message_id are required")

	// ErrInvalidStatus is returned when a recipient status filter is not one
	// of pending, sent or failed.
	ErrInvalidStatus = errors.New("invalid recipient status")
)

// Directory errors.
var (
	// ErrChannelNotFound indicates that the requested channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrDuplicateChannel is returned when a channel id is registered twice.
	ErrDuplicateChannel = errors.New("channel already exists")

	// ErrInvalidChannel is returned when a channel has no Telegram id.
	ErrInvalidChannel = errors.New("channel_id is required")

	// ErrUserNotFound indicates that no user matches the given identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidLocation is returned for coordinates outside the valid range.
	ErrInvalidLocation = errors.New("latitude must be in [-90,90] and longitude in [-180,180]")

	// ErrUnsupportedLanguage is returned when a language code is not one of
	// the bot's translations.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// File delivery errors.
var (
	// ErrFileNotFound indicates that no document matches the requested id.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileNotAvailable is returned when the document exists but has no
	// Telegram file id or is not completed yet.
	ErrFileNotAvailable = errors.New("file not available for sending")
)
