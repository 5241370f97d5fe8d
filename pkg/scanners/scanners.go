// Package scanners collects the built-in scanners.
package scanners

import (
	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/scanners/gzipscan"
	"github.com/sievekit/sieve/pkg/scanners/hashscan"
	"github.com/sievekit/sieve/pkg/scanners/lz4scan"
	"github.com/sievekit/sieve/pkg/scanners/wordlist"
)

// Builtin returns every built-in scanner. Decoder scanners carve
// decoded streams per mode.
func Builtin(carve recorder.CarveMode) []scanner.Scanner {
	return []scanner.Scanner{
		hashscan.New(),
		gzipscan.New(carve),
		lz4scan.New(carve),
		wordlist.New(),
	}
}
