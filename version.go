package bpmgate

// Version is the build version, overridden with -ldflags "-X github.com/aretw0/bpmgate.Version=...".
var Version = "0.1.0"
