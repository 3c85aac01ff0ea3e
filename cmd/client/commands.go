package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"kvrpc/internal/client"
)

// KV is the remote surface the commands drive.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

type GetCmd struct {
	Args struct {
		Key string `positional-arg-name:"KEY"`
	} `positional-args:"yes" required:"yes"`
}

func (c *GetCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	value, err := kv.Get(context.Background(), c.Args.Key)
	if errors.Is(err, client.ErrNotFound) {
		fmt.Printf("Key: %s does not exist\n", c.Args.Key)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

type PutCmd struct {
	Args struct {
		Key   string `positional-arg-name:"KEY"`
		Value string `positional-arg-name:"VALUE"`
	} `positional-args:"yes" required:"yes"`
}

func (c *PutCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	return kv.Put(context.Background(), c.Args.Key, c.Args.Value)
}

type DeleteCmd struct {
	Args struct {
		Key string `positional-arg-name:"KEY"`
	} `positional-args:"yes" required:"yes"`
}

func (c *DeleteCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	return kv.Delete(context.Background(), c.Args.Key)
}

type GetAllCmd struct{}

func (c *GetAllCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	entries, err := kv.GetAll(context.Background())
	if err != nil {
		return err
	}
	renderEntries(os.Stdout, entries)
	return nil
}

type KeysCmd struct{}

func (c *KeysCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	keys, err := kv.Keys(context.Background())
	if err != nil {
		return err
	}
	printKeys(os.Stdout, keys)
	return nil
}

func printKeys(w io.Writer, keys []string) {
	for _, k := range keys {
		fmt.Fprintf(w, "%q\n", k)
	}
}

func renderEntries(w io.Writer, entries map[string]string) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Value"})
	for _, k := range keys {
		table.Append([]string{k, entries[k]})
	}
	table.Render()
}

type DemoCmd struct {
	Count int `short:"c" long:"count" default:"5" description:"Iterations per loop"`
}

func (c *DemoCmd) Execute([]string) error {
	kv, err := opts.client()
	if err != nil {
		return err
	}
	rec := newLatencyRecorder()
	runDemo(context.Background(), kv, c.Count, rec, os.Stdout, os.Stderr)
	rec.Render(os.Stdout)
	return nil
}

// runDemo issues put, get and delete loops for key1..keyN from three
// goroutines and waits for all of them.
func runDemo(ctx context.Context, kv KV, n int, rec *latencyRecorder, out, errOut io.Writer) {
	var mu sync.Mutex
	printf := func(w io.Writer, format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			start := time.Now()
			err := kv.Put(ctx, "key"+strconv.Itoa(i), "value"+strconv.Itoa(i))
			rec.Record("put", time.Since(start))
			if err != nil {
				printf(errOut, "%v\n", err)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			start := time.Now()
			value, err := kv.Get(ctx, "key"+strconv.Itoa(i))
			rec.Record("get", time.Since(start))
			switch {
			case errors.Is(err, client.ErrNotFound):
				printf(out, "Key: %d does not exist\n", i)
			case err != nil:
				printf(errOut, "%v\n", err)
			default:
				printf(out, "Got value: %s for key: %d\n", value, i)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			start := time.Now()
			err := kv.Delete(ctx, "key"+strconv.Itoa(i))
			rec.Record("delete", time.Since(start))
			if err != nil {
				printf(errOut, "%v\n", err)
			}
		}
	}()

	wg.Wait()
}
