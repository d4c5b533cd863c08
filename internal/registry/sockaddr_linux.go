//go:build linux

package registry

// maxUnixPathLen mirrors sizeof(sockaddr_un.sun_path) on Linux (108).
const maxUnixPathLen = 108
