package blux

// Version is the SDK version string, reported to the backend in the
// X-BLUX-SDK-INFO header.
const Version = "1.1.0"
