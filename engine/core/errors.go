package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")
	ErrUnsupported      = errors.New("operation not supported by the device")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotReady         = errors.New("result not ready")
	ErrNoDevice         = errors.New("no suitable device found")
	ErrDeviceLost       = errors.New("device lost")
)
