package model

import (
	"errors"
	"fmt"
)

// ErrorCode is a semantic error number reported in-band by the bridge.
// Values are fixed by the bridge protocol.
type ErrorCode int

// Generic errors
const (
	ErrUnauthorized         ErrorCode = 1
	ErrInvalidMessage       ErrorCode = 2
	ErrResourceUnavailable  ErrorCode = 3
	ErrMethodNotAllowed     ErrorCode = 4
	ErrMissingParameters    ErrorCode = 5
	ErrParameterUnavailable ErrorCode = 6
	ErrInvalidValue         ErrorCode = 7
	ErrNotModifiable        ErrorCode = 8
	ErrTooMany              ErrorCode = 11
	ErrPortalRequired       ErrorCode = 12
	ErrInternalError        ErrorCode = 901
)

// Command specific errors
const (
	ErrLinkButtonNotPushed          ErrorCode = 101
	ErrDHCPNotDisabled              ErrorCode = 110
	ErrInvalidUpdateState           ErrorCode = 111
	ErrParameterNotModifiable       ErrorCode = 201
	ErrCommissionableListFull       ErrorCode = 203
	ErrGroupTableFull               ErrorCode = 301
	ErrDeleteNotPermitted           ErrorCode = 305
	ErrAlreadyUsed                  ErrorCode = 306
	ErrSceneBufferFull              ErrorCode = 402
	ErrSceneLocked                  ErrorCode = 403
	ErrGroupEmpty                   ErrorCode = 404
	ErrCannotCreateSensor           ErrorCode = 501
	ErrSensorListFull               ErrorCode = 502
	ErrCommissionableSensorListFull ErrorCode = 503
	ErrRuleEngineFull               ErrorCode = 601
	ErrConditionError               ErrorCode = 607
	ErrActionError                  ErrorCode = 608
	ErrUnableToActivate             ErrorCode = 609
	ErrScheduleListFull             ErrorCode = 701
	ErrInvalidTimezone              ErrorCode = 702
	ErrCannotSetScheduleTime        ErrorCode = 703
	ErrCannotCreateSchedule         ErrorCode = 704
	ErrScheduleInPast               ErrorCode = 705
	ErrCommandError                 ErrorCode = 706
	ErrModelInvalid                 ErrorCode = 801
	ErrFactoryNew                   ErrorCode = 802
	ErrInvalidState                 ErrorCode = 803
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnauthorized:                 "unauthorized user",
	ErrInvalidMessage:               "body contains invalid JSON",
	ErrResourceUnavailable:          "resource not available",
	ErrMethodNotAllowed:             "method not available for resource",
	ErrMissingParameters:            "missing parameters in body",
	ErrParameterUnavailable:         "parameter not available",
	ErrInvalidValue:                 "invalid value for parameter",
	ErrNotModifiable:                "parameter is not modifiable",
	ErrTooMany:                      "too many items in list",
	ErrPortalRequired:               "portal connection required",
	ErrInternalError:                "internal error",
	ErrLinkButtonNotPushed:          "link button not pressed",
	ErrDHCPNotDisabled:              "DHCP cannot be disabled",
	ErrInvalidUpdateState:           "invalid updatestate",
	ErrParameterNotModifiable:       "parameter not modifiable, device is off",
	ErrCommissionableListFull:       "commissionable light list is full",
	ErrGroupTableFull:               "group table full",
	ErrDeleteNotPermitted:           "delete not permitted",
	ErrAlreadyUsed:                  "resource already used",
	ErrSceneBufferFull:              "scene buffer full",
	ErrSceneLocked:                  "scene is locked",
	ErrGroupEmpty:                   "group is empty",
	ErrCannotCreateSensor:           "cannot create sensor",
	ErrSensorListFull:               "sensor list is full",
	ErrCommissionableSensorListFull: "commissionable sensor list is full",
	ErrRuleEngineFull:               "rule engine full",
	ErrConditionError:               "condition error",
	ErrActionError:                  "action error",
	ErrUnableToActivate:             "unable to activate",
	ErrScheduleListFull:             "schedule list is full",
	ErrInvalidTimezone:              "schedule time-zone not valid",
	ErrCannotSetScheduleTime:        "schedule cannot set time and local time",
	ErrCannotCreateSchedule:         "cannot create schedule",
	ErrScheduleInPast:               "cannot enable schedule, time is in the past",
	ErrCommandError:                 "command error",
	ErrModelInvalid:                 "invalid model",
	ErrFactoryNew:                   "device is factory new",
	ErrInvalidState:                 "invalid state",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("bridge error %d", int(c))
}

// Known reports whether c belongs to the enumerated set.
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}

// BridgeError is a refusal reported by the bridge inside an otherwise
// successful HTTP exchange.
type BridgeError struct {
	Code        ErrorCode
	Address     string
	Description string
}

func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("hue bridge error %d (%s)", int(e.Code), e.Code)
	if e.Address != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Address)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	return msg
}

// CodeOf returns the bridge error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return 0, false
}

// IsCode reports whether err is a bridge refusal with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
