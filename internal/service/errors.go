package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
)
