//go:build ignore

// Command cdnranges fetches the current Cloudflare edge IPv4 ranges
// and prints them as Go struct literals in the shape
// analyzer/cdn.ranges expects, for a maintainer to paste in after
// reviewing the diff. It is not part of the build; invoke it with
// `go run tools/cdnranges/main.go`.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"github.com/cloudflare/cloudflare-go"
)

func main() {
	token := os.Getenv("CF_API_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "CF_API_TOKEN must be set")
		os.Exit(1)
	}

	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cloudflare client:", err)
		os.Exit(1)
	}

	ranges, err := api.IPs(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch IP ranges:", err)
		os.Exit(1)
	}

	fmt.Println("// Generated by tools/cdnranges. Paste the Cloudflare block below")
	fmt.Println("// into analyzer/cdn.ranges, replacing the existing Cloudflare entries.")
	for _, cidr := range ranges.IPv4CIDRs {
		start, end, err := cidrToRange(cidr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "skip", cidr, err)
			continue
		}
		fmt.Printf("\t{\"Cloudflare\", %q, %q},\n", start, end)
	}
}

func cidrToRange(cidr string) (string, string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", "", err
	}
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return "", "", fmt.Errorf("not an IPv4 range: %s", cidr)
	}
	mask := binary.BigEndian.Uint32(ipnet.Mask)
	start := binary.BigEndian.Uint32(ip4)
	end := start | ^mask

	var startIP, endIP [4]byte
	binary.BigEndian.PutUint32(startIP[:], start)
	binary.BigEndian.PutUint32(endIP[:], end)
	return net.IP(startIP[:]).String(), net.IP(endIP[:]).String(), nil
}
