package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"credential_kind", validateCredentialKindType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"completion_status", validateCompletionStatusType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"validation_outcome", validateValidationOutcomeType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"system_event_type", validateSystemEventType,
	); err != nil {
		return err
	}

	return nil
}

func validateCredentialKindType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch CredentialKindENUMType(fl.Field().String()) {
	case CredentialKindRiteOfPassage:
		fallthrough
	case CredentialKindCourseCompletion:
		fallthrough
	case CredentialKindEventParticipation:
		return true
	}
	return false
}

func validateCompletionStatusType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch CompletionStatusENUMType(fl.Field().String()) {
	case CompletionStatusInProgress:
		fallthrough
	case CompletionStatusCompleted:
		fallthrough
	case CompletionStatusDropped:
		return true
	}
	return false
}

func validateValidationOutcomeType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch ValidationOutcomeENUMType(fl.Field().String()) {
	case ValidationOutcomeValid:
		fallthrough
	case ValidationOutcomeNotFound:
		fallthrough
	case ValidationOutcomeRevoked:
		fallthrough
	case ValidationOutcomeInactive:
		fallthrough
	case ValidationOutcomeExpired:
		fallthrough
	case ValidationOutcomeHashMismatch:
		return true
	}
	return false
}

func validateSystemEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch SystemEventTypeENUMType(fl.Field().String()) {
	case SystemEventTypeCredentialIssued:
		fallthrough
	case SystemEventTypeCredentialRevoked:
		fallthrough
	case SystemEventTypeCredentialDeactivated:
		fallthrough
	case SystemEventTypeCredentialReactivated:
		fallthrough
	case SystemEventTypeCredentialHashRefreshed:
		fallthrough
	case SystemEventTypeSubjectFieldsProtected:
		fallthrough
	case SystemEventTypeSubjectAnonymized:
		return true
	}
	return false
}
