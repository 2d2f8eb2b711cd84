// Package errors provides structured error handling for the game service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionEnded           Code = "SESSION_ENDED"
	CodeSessionPaused          Code = "SESSION_PAUSED"
	CodeSessionWrongPhase      Code = "SESSION_WRONG_PHASE"
	CodeSessionMemberCount     Code = "SESSION_MEMBER_COUNT_OUT_OF_RANGE"
	CodeSessionMembersNotReady Code = "SESSION_MEMBERS_NOT_READY"

	// Participant errors
	CodeParticipantNotFound      Code = "PARTICIPANT_NOT_FOUND"
	CodeParticipantEliminated    Code = "PARTICIPANT_ELIMINATED"
	CodeParticipantEmptyName     Code = "PARTICIPANT_EMPTY_DISPLAY_NAME"
	CodeParticipantNotConnected  Code = "PARTICIPANT_NOT_CONNECTED"
	CodeParticipantAlreadyJoined Code = "PARTICIPANT_ALREADY_JOINED"

	// Action errors
	CodeActionMalformed         Code = "ACTION_MALFORMED"
	CodeActionTypeNotAllowed    Code = "ACTION_TYPE_NOT_ALLOWED"
	CodeActionTargetInvalid     Code = "ACTION_TARGET_INVALID"
	CodeActionIntentionInvalid  Code = "ACTION_INTENTION_INVALID"
	CodeActionOnCooldown        Code = "ACTION_ON_COOLDOWN"
	CodeActionMoveIllegal       Code = "ACTION_MOVE_ILLEGAL"
	CodeActionAlreadySubmitted  Code = "ACTION_ALREADY_SUBMITTED"
	CodeActionSubmissionsClosed Code = "ACTION_SUBMISSIONS_CLOSED"

	// Scenario errors
	CodeScenarioNotFound      Code = "SCENARIO_NOT_FOUND"
	CodeScenarioInvalid       Code = "SCENARIO_INVALID"
	CodeScenarioPoolExhausted Code = "SCENARIO_ROLE_POOL_EXHAUSTED"

	// Identity/transport errors
	CodeIdentityTokenInvalid Code = "IDENTITY_TOKEN_INVALID"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes for the API surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionNotFound, CodeParticipantNotFound, CodeScenarioNotFound:
		return http.StatusNotFound
	case CodeSessionEnded, CodeSessionPaused, CodeSessionWrongPhase,
		CodeActionAlreadySubmitted, CodeActionSubmissionsClosed,
		CodeParticipantAlreadyJoined, CodeActionOnCooldown:
		return http.StatusConflict
	case CodeSessionMemberCount, CodeSessionMembersNotReady,
		CodeParticipantEliminated, CodeParticipantEmptyName,
		CodeParticipantNotConnected,
		CodeActionMalformed, CodeActionTypeNotAllowed, CodeActionTargetInvalid,
		CodeActionIntentionInvalid, CodeActionMoveIllegal,
		CodeScenarioInvalid, CodeScenarioPoolExhausted:
		return http.StatusBadRequest
	case CodeIdentityTokenInvalid:
		return http.StatusUnauthorized
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
