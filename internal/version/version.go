package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=vX.Y.Z".
var Version = "dev"

// Product is sent as the User-Agent on every outbound request.
func Product() string {
	return "jira-master/" + Version
}
