package handler

const (
	// RouterRootPath is the root path of a handler route group.
	RouterRootPath = "/"

	// ErrNilACDFatalLogMsg is logged when a handler is initialized without its dependencies.
	ErrNilACDFatalLogMsg = "app, config, db or clients is nil"
)
