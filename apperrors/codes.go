package apperrors

type Code string

const (
	CodeValidation       Code = "VALIDATION"
	CodeNotFound         Code = "NOT_FOUND"
	CodeForbidden        Code = "FORBIDDEN"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)
