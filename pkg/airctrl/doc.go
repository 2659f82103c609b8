// Package airctrl is the high-level driver for Philips connected air
// purifiers. A Client bundles the UDP session, the observe stream, and
// the command channel behind one facade:
//
//	client, err := airctrl.Create(ctx, "192.168.1.40", airctrl.Config{})
//	if err != nil { ... }
//	defer client.Close()
//
//	updates, err := client.StatusStream(ctx)
//	for status := range updates {
//		fmt.Println(status["pwr"], status["om"])
//	}
//
// The client keeps the last seen status snapshot so callers can read
// device state without a round trip, and exposes Prometheus collectors
// for stream and command health.
package airctrl
