// Package main provides a command-line utility to inspect a tree directory.
// It opens a tree, prints its configuration and record counts for
// debugging, and closes it without flushing, so nothing is written.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/molecularmodelinglab/simsearchserver/kdtree"
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: kdtree-dump <tree-directory>")
		flag.PrintDefaults()
		return
	}

	dir := args[0]
	tr, err := kdtree.Open(dir)
	if err != nil {
		log.Fatalf("Failed to open tree: %v", err)
	}
	defer func() {
		if err := tr.Close(); err != nil {
			log.Printf("Failed to close tree: %v", err)
		}
	}()

	fmt.Printf("directory:          %s\n", dir)
	fmt.Printf("descriptor length:  %d\n", tr.Config().DescLength)
	fmt.Printf("record page length: %d\n", tr.Config().RecordPageLength)
	fmt.Printf("node count:         %d\n", tr.NodeCount())
	fmt.Printf("leaf page count:    %d\n", tr.LeafPageCount())
	fmt.Printf("content entries:    %d\n", tr.RecordCount())
}
