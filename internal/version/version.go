package version

// Version is overridden at build time with
// -ldflags "-X github.com/mr1hm/go-weather-alerts/internal/version.Version=v1.2.3".
var Version = "dev"
