package common

// Version is the build version, overridden at link time with
// -ldflags "-X github.com/siammridha/netbird-setup/common.Version=...".
var Version = "dev"
