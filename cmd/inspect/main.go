// Command inspect dumps raw store keys for debugging a recalld database.
package main

import (
	"flag"
	"fmt"
	"os"

	"recalld/pkg/logger"
	"recalld/pkg/store"
)

func main() {
	var (
		path   string
		prefix string
		values bool
	)
	flag.StringVar(&path, "db", "", "pebble DB path to inspect")
	flag.StringVar(&prefix, "prefix", "", "only keys with this prefix (e.g. thread:t1:)")
	flag.BoolVar(&values, "values", false, "print values as well as keys")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.InitWithLevel("error")
	if err := store.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer store.Close()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		if !values {
			fmt.Println(k)
			continue
		}
		v, err := store.GetKey(k)
		if err != nil {
			fmt.Printf("%s\t<error: %v>\n", k, err)
			continue
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
