// Command genfixture writes one synthetic recording per supported dialect into
// a directory. The files are the same ones the decoder tests run against, so
// they can be fed to smconvert or dropped into DATA_ROOT for a local smingest.
//
// Usage:
//
//	go run ./cmd/genfixture -out testdata/fixtures
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/strong-motion-etl/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write fixture files into (created if missing)")
	prefix := flag.String("prefix", "", "optional file name prefix, e.g. 2016kaikoura_")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	names, err := writeCatalog(*out, *prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(filepath.Join(*out, name))
	}
	return nil
}

// writeCatalog writes every fixture file under dir and returns their names in
// sorted order. K-NET companions keep their shared stem so they stay a set.
func writeCatalog(dir, prefix string) ([]string, error) {
	if strings.ContainsAny(prefix, `/\`) {
		return nil, fmt.Errorf("prefix %q must not contain path separators", prefix)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	catalog := fixture.Catalog()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, prefix+name)
	}
	slices.Sort(names)

	for _, name := range names {
		data := catalog[strings.TrimPrefix(name, prefix)]
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return names, nil
}
