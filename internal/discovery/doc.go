// Package discovery provides mDNS-based discovery of Hidromotic irrigation
// controllers.
//
// Controllers advertise themselves on the local network as "_http._tcp"
// services with hostnames of the form "hidromotic{serial}.local". A scan
// broadcasts mDNS queries, filters responses by that hostname pattern, and
// returns the controllers seen within the scan window, deduplicated by
// serial number.
//
// # Usage Example
//
//	controllers, err := discovery.ScanForControllers(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range controllers {
//	    fmt.Printf("Found: %s\n", c)
//	}
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Controllers must be on the same local network segment
//   - Firewall must allow mDNS (UDP port 5353)
//
// This package is safe for concurrent use.
package discovery
