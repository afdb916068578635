package core

// # Error Codes Reference
//
// This file maps errors to user-friendly messages with codes for support
// reference. Errors are matched first by identity (sentinel errors and
// *startable.Issue), then by case-insensitive substring patterns for errors that
// arrive as text from drivers.
//
// # Block Errors (STR, COE, VAL)
//
// Reported by the decoder, one code per issue kind:
//
//	STR001 - Malformed block: a table is missing its unit row or its rows are ragged
//	COE001 - Bad value: a cell cannot be read as its column's unit
//	VAL001 - Invalid block: an empty column name, bad marker or bad metadata line
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported format (only .csv and .xlsx are read)
//	FILE003 - Unknown text encoding
//	FILE004 - No file provided
//	FILE005 - Worksheet not found
//
// # Parse Errors (PRS001-PRS099)
//
//	PRS001 - Invalid parse option (mode, output, block type or separator)
//	PRS002 - Storage not configured
//	PRS003 - Request cancelled
//	PRS004 - Request timed out
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited
//	RATE002 - Too many parses in progress
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application logs for
// the original technical error when users report ERR000.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/startable/internal/source"
	"github.com/JonMunkholm/startable/internal/startable"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// issueMessages maps issue kinds to user messages.
var issueMessages = map[startable.IssueKind]UserMessage{
	startable.StructuralError: {
		Message: "A table block is malformed",
		Action:  "Check that the table has a name row, a column name row and a unit row, and that no row is longer than the header",
		Code:    startable.StructuralError.Code(),
	},
	startable.CoercionError: {
		Message: "A cell value does not match its column unit",
		Action:  "Use numbers for numeric units, 0/1 for onoff, dates for datetime, and '-' for missing values",
		Code:    startable.CoercionError.Code(),
	},
	startable.ValidationError: {
		Message: "A block is invalid",
		Action:  "Check block markers, column names and metadata lines at the reported location",
		Code:    startable.ValidationError.Code(),
	},
}

// sentinelMessages maps sentinel errors, checked with errors.Is in order.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{source.ErrTooLarge, UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}},
	{source.ErrUnsupportedFormat, UserMessage{
		Message: "File format is not supported",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE002",
	}},
	{source.ErrUnknownCharset, UserMessage{
		Message: "Unknown text encoding",
		Action:  "Use utf-8, latin1, windows-1252 or another IANA charset name",
		Code:    "FILE003",
	}},
	{ErrNoInput, UserMessage{
		Message: "No file was provided",
		Action:  "Attach a file in the 'file' form field or send it as the request body",
		Code:    "FILE004",
	}},
	{source.ErrNoSheet, UserMessage{
		Message: "Worksheet not found",
		Action:  "Check the sheet name, or leave it empty to read the first sheet",
		Code:    "FILE005",
	}},
	{ErrInvalidOption, UserMessage{
		Message: "Invalid parse option",
		Action:  "Check the mode, output, types and separator parameters",
		Code:    "PRS001",
	}},
	{ErrStoreDisabled, UserMessage{
		Message: "Storage is not configured",
		Action:  "Set DATABASE_URL to enable storing parsed blocks",
		Code:    "PRS002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "PRS003",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "PRS004",
	}},
	{ErrTooManyParses, UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "RATE002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "This parse has already been stored",
			Action:  "Parse the file again to store it under a new ID",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
//
// Example:
//
//	_, err := svc.Parse(ctx, req) // strict mode, bad cell
//	msg := MapError(err)
//	// msg.Code == "COE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var issue *startable.Issue
	if errors.As(err, &issue) {
		if msg, ok := issueMessages[issue.Kind]; ok {
			return msg
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
