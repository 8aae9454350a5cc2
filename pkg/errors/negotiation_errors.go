package errors

var (
	// Ledger
	ErrInvalidTarget    = InvalidArg("INVALID_TARGET", "a conversation request needs two different users")
	ErrInvalidDecision  = InvalidArg("INVALID_DECISION", "decision must be approve or decline")
	ErrDuplicateRequest = AlreadyExists("DUPLICATE_REQUEST", "a conversation request already exists for this pair")
	ErrNotRecipient     = Forbidden("NOT_RECIPIENT", "only the recipient can answer this request")
	ErrNoSuchRequest    = NotFound("NO_SUCH_REQUEST", "conversation request not found")
	ErrAlreadyResolved  = FailedPrecondition("ALREADY_RESOLVED", "conversation request was already answered")

	// Negotiator
	ErrNotApproved             = FailedPrecondition("NOT_APPROVED", "conversation request has not been approved")
	ErrNoSuchConversation      = NotFound("NO_SUCH_CONVERSATION", "conversation not found")
	ErrNotParticipant          = Forbidden("NOT_PARTICIPANT", "user is not a participant of this conversation")
	ErrEmptyMessage            = InvalidArg("EMPTY_MESSAGE", "message has no visible characters")
	ErrCharacterBudgetExceeded = Exhausted("CHARACTER_BUDGET_EXCEEDED", "character limit exceeded")

	// Directory
	ErrUserNotFound   = NotFound("USER_NOT_FOUND", "user not found")
	ErrInvalidProfile = InvalidArg("INVALID_PROFILE", "invalid profile")
	ErrUnauthorized   = Unauthorized("UNAUTHORIZED", "missing or invalid token")
)

const ReasonStoreUnavailable = "STORE_UNAVAILABLE"

// ErrStoreUnavailable is the sentinel for any backing store failure.
var ErrStoreUnavailable = New(CodeUnavailable, ReasonStoreUnavailable, "store unavailable")

// StoreUnavailable wraps a backend failure. AppErrors pass through unchanged.
func StoreUnavailable(cause error) error {
	if cause == nil {
		return nil
	}
	if appErr, ok := As(cause); ok {
		return appErr
	}
	return Wrap(CodeUnavailable, ReasonStoreUnavailable, "store unavailable", cause)
}
