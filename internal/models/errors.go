package models

import "errors"

// Domain errors returned by services and repositories. Repositories translate
// driver errors (pgx.ErrNoRows etc.) into these before they cross a package
// boundary.
var (
	ErrNotFound            = errors.New("not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrStoryNotFound       = errors.New("story not found")
	ErrInvalidMode         = errors.New("invalid room mode")
	ErrRoomNotWaiting      = errors.New("room is not in waiting status")
	ErrRoomFinished        = errors.New("room story already finished")
	ErrInternalServer      = errors.New("internal server error")
)
