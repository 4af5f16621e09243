package usecase

import "errors"

var (
	// ErrInvalidUsername indicates the username fails the format rules.
	ErrInvalidUsername = errors.New("username must be 3-30 alphanumeric or underscore characters")
	// ErrInvalidEmail indicates the email address is not well formed.
	ErrInvalidEmail = errors.New("email is not valid")
	// ErrWeakPassword indicates the candidate password fails the strength policy.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials covers both unknown identifier and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is inside an active lock window.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDeactivated indicates the account has been deactivated.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrInvalidTokenType indicates a token of the wrong type was presented.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrTokenRevoked indicates the refresh token is no longer in the stored set.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrPasswordReused indicates the candidate password matches the current
	// password or one of the recorded previous ones.
	ErrPasswordReused = errors.New("password was used before")
	// ErrIncorrectPassword indicates the supplied current password is wrong.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrInvalidOrExpiredToken indicates the reset token is unknown or expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAccountAlreadyActive indicates reactivation of an active account.
	ErrAccountAlreadyActive = errors.New("account is already active")
	// ErrProjectNameRequired indicates a project payload without a name.
	ErrProjectNameRequired = errors.New("project name is required")
	// ErrProjectNotFound indicates the project does not exist or is deleted.
	ErrProjectNotFound = errors.New("project not found")
	// ErrConversationNotFound indicates the conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidConversationMode indicates an unknown assistant mode.
	ErrInvalidConversationMode = errors.New("unknown conversation mode")
	// ErrEmptyMessage indicates a chat message with no content.
	ErrEmptyMessage = errors.New("message content is required")
	// ErrForbidden indicates the caller does not own the requested resource.
	ErrForbidden = errors.New("forbidden")
)
