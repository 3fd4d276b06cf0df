package usercontext

import (
	"errors"
	"fmt"

	"github.com/turner-mzeller/GitHubPortal/pkg/links"
)

var (
	// ErrInvalidInput is returned when context construction is invoked
	// with mutually exclusive inputs.
	ErrInvalidInput = errors.New("the context cannot be set from both a request and a link instance")

	// ErrNotInitialized is returned when context construction has no
	// usable claim source.
	ErrNotInitialized = errors.New("could not initialize the context for the acting user")

	// ErrMissingIdentifier is returned when a batch item carries no id.
	ErrMissingIdentifier = errors.New("no id known for this user instance")
)

// LogicError is an internal invariant violation: link resolution fell
// through every path. Always fatal, always logged.
type LogicError struct {
	Message string
}

func (e *LogicError) Error() string {
	return e.Message
}

// IsLogicError checks if an error is a logic error
func IsLogicError(err error) bool {
	var logicErr *LogicError
	return errors.As(err, &logicErr)
}

// TooManyLinksError reports that more than one identity link matches a
// single directory identity. The full match set is attached for the
// administrative remediation flow.
type TooManyLinksError struct {
	Links []*links.Link
}

func (e *TooManyLinksError) Error() string {
	return fmt.Sprintf("this account has %d linked GitHub accounts", len(e.Links))
}

// IsTooManyLinks checks if an error is a too-many-links condition
func IsTooManyLinks(err error) bool {
	var linksErr *TooManyLinksError
	return errors.As(err, &linksErr)
}

// FancyLink is a structured remediation action attached to user-facing
// errors.
type FancyLink struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// ConflictingIdentityError reports that the platform identity on the
// request does not match the platform identity on the stored link. This
// is an expected user-driven condition: SkipLog marks it as not needing
// operational logging.
type ConflictingIdentityError struct {
	// EndUser is the acting user's directory display name (or username).
	EndUser string
	// AuthenticatedUsername is the mismatched platform username on the
	// request.
	AuthenticatedUsername string
	// LinkedUsernameHint is a half-masked hint of the platform username
	// on the stored link.
	LinkedUsernameHint string
	// Remediation is the sign-out-and-relink action.
	Remediation FancyLink
	// SkipLog marks the error as expected, not operational.
	SkipLog bool
}

func (e *ConflictingIdentityError) Error() string {
	return fmt.Sprintf("%s, there is a different GitHub account linked to your corporate identity", e.EndUser)
}

// Detailed returns the long-form explanation shown to the end user.
func (e *ConflictingIdentityError) Detailed() string {
	return fmt.Sprintf(
		"You've authenticated with the GitHub username of %q, which is not the account that you have linked. "+
			"If you need to switch which account is associated with your identity, please sign out of GitHub, "+
			"come back to the portal to unlink the old account, and then continue with the new account. "+
			"Your other GitHub account username ends in: %s.",
		e.AuthenticatedUsername, e.LinkedUsernameHint)
}

// IsConflictingIdentity checks if an error is a conflicting-identity condition
func IsConflictingIdentity(err error) bool {
	var conflictErr *ConflictingIdentityError
	return errors.As(err, &conflictErr)
}

// StorageFailureError wraps a transport-level failure from the link
// store, preserving the original as a cause.
type StorageFailureError struct {
	StatusCode int
	Err        error
}

func (e *StorageFailureError) Error() string {
	return fmt.Sprintf("storage returned an HTTP %d", e.StatusCode)
}

func (e *StorageFailureError) Unwrap() error {
	return e.Err
}

// IsStorageFailure checks if an error is a wrapped storage failure
func IsStorageFailure(err error) bool {
	var storageErr *StorageFailureError
	return errors.As(err, &storageErr)
}

// AdminCheckFailedError reports that the sudoers membership query
// failed. It is distinct from a negative result: callers must not treat
// it as "not an admin".
type AdminCheckFailedError struct {
	Err error
}

func (e *AdminCheckFailedError) Error() string {
	return "we had trouble querying GitHub for important team management information, please try again later or report this issue"
}

func (e *AdminCheckFailedError) Unwrap() error {
	return e.Err
}

// IsAdminCheckFailed checks if an error is a failed administrator check
func IsAdminCheckFailed(err error) bool {
	var adminErr *AdminCheckFailedError
	return errors.As(err, &adminErr)
}

// ShouldSkipLogging reports whether an error is an expected user-driven
// condition that does not need operational logging.
func ShouldSkipLogging(err error) bool {
	var conflictErr *ConflictingIdentityError
	return errors.As(err, &conflictErr) && conflictErr.SkipLog
}
