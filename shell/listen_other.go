//go:build !unix

package shell

import "net"

// listenTCP binds address.  The platform default backlog applies here.
func listenTCP(address string) (net.Listener, error) {
	return net.Listen("tcp", address)
}
