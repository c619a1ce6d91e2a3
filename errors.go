package carebook

import "errors"

var (
	// ErrBuilderUsed is returned by a second call to [Builder.Build].
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidConfig wraps every [Config.Validate] failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrPortalClosed is returned by [Portal.Open] after [Portal.Close].
	ErrPortalClosed = errors.New("portal closed")
)
