// Package errcode enumerates the error families the SDK's subsystems raise
// and classifies them for retry/rollback decisions. It plays the role the
// teacher's plain sentinel errors play, generalized into named families so
// pkg/collection and pkg/scheduler can switch on Class() rather than on
// error string matching.
package errcode

import "fmt"

// Family groups related error codes the way the original SDK's condition
// categories do (filesystem, http, archive, ...).
type Family string

const (
	Generic       Family = "generic"
	Filesystem    Family = "filesystem"
	Http          Family = "http"
	Archive       Family = "archive"
	Compression   Family = "compression"
	ModManagement Family = "mod_management"
	Api           Family = "api"
	UserData      Family = "user_data"
	Monetization  Family = "monetization"
)

// Class describes how a failure should be handled by the collection state
// machine and the reconciliation scheduler.
type Class int

const (
	// ClassRetryable means the operation may be retried this session.
	ClassRetryable Class = iota
	// ClassUnrecoverable means the entry should move to an error state and
	// never be retried automatically.
	ClassUnrecoverable
	// ClassDeleteDeferred means the failure occurred while removing local
	// state and should be retried via the deferred-unsubscribe ledger
	// instead of the regular retry path.
	ClassDeleteDeferred
	// ClassOther covers everything else (cancellation, informational).
	ClassOther
)

// Code is a single named error condition. Codes are comparable and safe to
// use as map keys and as the dynamic type behind an error via Is.
type Code struct {
	Family  Family
	Name    string
	class   Class
	Message string
}

func (c Code) Error() string {
	if c.Message != "" {
		return fmt.Sprintf("%s.%s: %s", c.Family, c.Name, c.Message)
	}
	return fmt.Sprintf("%s.%s", c.Family, c.Name)
}

// Class reports how this code should influence retry/rollback decisions.
func (c Code) Class() Class {
	return c.class
}

// Is allows errors.Is(err, errcode.FileNotFound) to match regardless of the
// attached Message, since Code values carry per-occurrence detail.
func (c Code) Is(target error) bool {
	other, ok := target.(Code)
	if !ok {
		return false
	}
	return other.Family == c.Family && other.Name == c.Name
}

// With returns a copy of the code carrying a specific occurrence message,
// used the way the teacher wraps errors with fmt.Errorf("...: %w", err).
func (c Code) With(format string, args ...any) Code {
	c.Message = fmt.Sprintf(format, args...)
	return c
}

func newCode(family Family, name string, class Class) Code {
	return Code{Family: family, Name: name, class: class}
}

var (
	// Generic
	Cancelled      = newCode(Generic, "cancelled", ClassOther)
	InternalError  = newCode(Generic, "internal_error", ClassUnrecoverable)
	NotInitialized = newCode(Generic, "not_initialized", ClassUnrecoverable)
	BadParameter   = newCode(Generic, "bad_parameter", ClassUnrecoverable)

	// Filesystem
	FileNotFound      = newCode(Filesystem, "file_not_found", ClassRetryable)
	InsufficientSpace = newCode(Filesystem, "insufficient_space", ClassRetryable)
	PermissionDenied  = newCode(Filesystem, "permission_denied", ClassUnrecoverable)
	PathTooLong       = newCode(Filesystem, "path_too_long", ClassUnrecoverable)

	// Http
	HttpNotFound         = newCode(Http, "not_found", ClassUnrecoverable)
	HttpRateLimited      = newCode(Http, "rate_limited", ClassRetryable)
	HttpUnauthorized     = newCode(Http, "unauthorized", ClassUnrecoverable)
	HttpServerError      = newCode(Http, "server_error", ClassRetryable)
	HttpConnectionFailed = newCode(Http, "connection_failed", ClassRetryable)
	HttpRedirectLimit    = newCode(Http, "redirect_limit_exceeded", ClassUnrecoverable)
	HttpBadResponse      = newCode(Http, "bad_response", ClassRetryable)

	// Archive
	ArchiveInvalidHeader   = newCode(Archive, "invalid_header", ClassUnrecoverable)
	ArchiveTruncated       = newCode(Archive, "truncated", ClassRetryable)
	ArchiveCRCMismatch     = newCode(Archive, "crc_mismatch", ClassRetryable)
	ArchiveUnsupportedZip  = newCode(Archive, "unsupported_zip_feature", ClassUnrecoverable)
	ArchiveEntryNotFound   = newCode(Archive, "entry_not_found", ClassUnrecoverable)

	// Compression
	CompressionFailed = newCode(Compression, "failed", ClassUnrecoverable)

	// ModManagement
	ModNotInstalled     = newCode(ModManagement, "not_installed", ClassUnrecoverable)
	ModAlreadyInstalled = newCode(ModManagement, "already_installed", ClassOther)
	ModNoRetryThisSession = newCode(ModManagement, "no_retry_this_session", ClassUnrecoverable)
	ModUninstallPending   = newCode(ModManagement, "uninstall_pending", ClassDeleteDeferred)

	// Api
	ApiInvalidResponse = newCode(Api, "invalid_response", ClassRetryable)
	ApiErrorBody       = newCode(Api, "error_response", ClassRetryable)

	// UserData
	UserNotAuthenticated = newCode(UserData, "not_authenticated", ClassUnrecoverable)
	UserTermsNotAgreed   = newCode(UserData, "terms_not_agreed", ClassUnrecoverable)

	// Monetization
	MonetizationNotEntitled = newCode(Monetization, "not_entitled", ClassUnrecoverable)
)
