package models

// Typed errors returned by the services layer. The HTTP helper maps each type
// to a status code; handlers never inspect error strings.

type ErrorValidation struct {
	Message string
}

func (e ErrorValidation) Error() string { return e.Message }

type ErrorConflict struct {
	Message string
}

func (e ErrorConflict) Error() string { return e.Message }

type ErrorNotFound struct {
	Message string
}

func (e ErrorNotFound) Error() string { return e.Message }

type ErrorUnauthorized struct {
	Message string
}

func (e ErrorUnauthorized) Error() string { return e.Message }

type ErrorStorage struct {
	Message string
}

func (e ErrorStorage) Error() string { return e.Message }

type ErrorExternalService struct {
	Message string
}

func (e ErrorExternalService) Error() string { return e.Message }
