package serverutils

import "fmt"

// AppError is an error carrying the HTTP status it should surface as.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: 404, Message: message, Err: err}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{Code: 400, Message: message, Err: err}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: 500, Message: message, Err: err}
}
