// Package netutil holds host-side helpers shared by providers.
package netutil

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// PortAvailable reports whether a TCP listener can bind host:port.
func PortAvailable(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// FreePort returns preferred when it is free on host, otherwise a port
// chosen by the OS. A preferred port of 0 always asks the OS.
func FreePort(host string, preferred int) (int, error) {
	if preferred > 0 && PortAvailable(host, preferred) {
		return preferred, nil
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding a free port on %s: %w", host, err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

var (
	lettersRegexp     = regexp.MustCompile(`[a-zA-Z]+`)
	nameInvalidRegexp = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	underscoreRuns    = regexp.MustCompile(`__+`)
)

// ContainerName derives a stable container name from the setup name, the
// setup directory path and qualifiers such as the provider name. The
// initials of the parent path keep names from different working
// directories apart:
//
//	ContainerName("setup-db", "/home/me/work/pg", "postgres") == "setup-db.h.m.w_pg_postgres"
func ContainerName(setupName, setupDir string, qualifiers ...string) string {
	var b strings.Builder
	b.WriteString(setupName)
	for _, letters := range lettersRegexp.FindAllString(filepath.Dir(setupDir), -1) {
		b.WriteString(".")
		b.WriteString(letters[:1])
	}
	b.WriteString("_")
	b.WriteString(filepath.Base(setupDir))
	b.WriteString("_")
	b.WriteString(strings.Join(qualifiers, "_"))

	name := nameInvalidRegexp.ReplaceAllString(b.String(), "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	return strings.TrimRight(name, "_")
}
