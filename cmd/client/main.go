package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"kvrpc/internal/client"
)

// Options is the root of the CLI. Sub-commands read the connection settings
// from the package-level opts.
type Options struct {
	Addr    string        `short:"a" long:"addr" default:"localhost:8081" description:"Server address"`
	Name    string        `short:"n" long:"name" default:"KeyValue" description:"Name the service is bound under"`
	Timeout time.Duration `long:"timeout" default:"5s" description:"Per-call timeout"`

	Get    GetCmd    `command:"get" description:"Print the value of a key"`
	Put    PutCmd    `command:"put" description:"Store a value under a key"`
	Delete DeleteCmd `command:"delete" description:"Remove a key"`
	GetAll GetAllCmd `command:"getall" description:"Print every entry"`
	Keys   KeysCmd   `command:"keys" description:"List the stored keys"`
	Demo   DemoCmd   `command:"demo" description:"Run concurrent put/get/delete loops and report latencies"`
}

var opts Options

func (o *Options) client() (*client.Client, error) {
	return client.New(o.Addr, o.Name, client.WithTimeout(o.Timeout))
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
