package apperrors

var (
	ErrEmptyMessage         = Validation("message body or at least one attachment is required")
	ErrMessageTooLong       = Validation("message body exceeds the maximum length")
	ErrTooManyAttachments   = Validation("too many attachments")
	ErrInvalidAttachment    = Validation("attachment must be an uploaded image url")
	ErrSelfMessage          = Validation("cannot send a message to yourself")
	ErrParticipantMismatch  = Validation("sender and receiver must be the conversation participants")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrReceiverNotFound     = NotFound("receiver not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrProductNotFound      = NotFound("product not found")
	ErrBlocked              = Forbidden("messaging between these users is blocked")
	ErrNotParticipant       = Forbidden("you are not part of this conversation")
	ErrSelfBlock            = Validation("cannot block yourself")
	ErrAttachmentsDisabled  = StoreUnavailable("attachment uploads are not configured", nil)
)
