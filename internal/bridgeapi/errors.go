package bridgeapi

import (
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *mazda.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case mazda.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case mazda.CodeVehicleNotFound:
			return huma.Error404NotFound(coded.Message)
		case mazda.CodeAuthFailed, mazda.CodeTokenExpired:
			return huma.Error401Unauthorized(coded.Message)
		case mazda.CodeAccountLocked:
			return huma.Error403Forbidden(coded.Message)
		case mazda.CodeRequestInProgress:
			return huma.Error409Conflict(coded.Message)
		case mazda.CodeEngineStartLimit:
			return huma.Error429TooManyRequests(coded.Message)
		case mazda.CodeAPIUnavailable, mazda.CodeEncryptionRejected, mazda.CodeTransient:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
