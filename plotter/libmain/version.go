package libmain

// Set at link time with -ldflags "-X marine/plotter/libmain.VersionNumber=...".
var (
	VersionNumber = "dev"
	VersionDate   = "unknown"
)
