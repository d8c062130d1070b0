package server

import (
	"context"

	"github.com/libp2p/zeroconf/v2"

	"github.com/synrais/ROLL-GO/pkg/config"
)

// Advertise registers the HTTP service over mDNS until ctx is done.
func Advertise(ctx context.Context, port int) error {
	srv, err := zeroconf.Register("ROLL", config.MdnsService, "local.", port,
		[]string{"path=/generate"}, nil)
	if err != nil {
		return err
	}
	defer srv.Shutdown()
	log.Printf("Advertising %s on port %d", config.MdnsService, port)

	<-ctx.Done()
	return nil
}
