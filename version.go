package offramp

// Version is the release version. Overridden at build time via
// -ldflags "-X github.com/aretw0/offramp.Version=...".
var Version = "0.1.0"
