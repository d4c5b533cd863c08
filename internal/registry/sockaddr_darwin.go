//go:build darwin

package registry

// maxUnixPathLen mirrors sizeof(sockaddr_un.sun_path) on macOS (104).
const maxUnixPathLen = 104
