// Package supa connects repositories to a hosted Supabase project through its
// PostgREST endpoint.
package supa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"
)

// Client is the part of *supabase.Client the repositories use. A plain
// *postgrest.Client satisfies it too.
type Client interface {
	From(table string) *postgrest.QueryBuilder
}

// ErrNoRows is returned by First when the query matched nothing.
var ErrNoRows = errors.New("supa: no rows")

func NewClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// Executor is a built PostgREST request.
type Executor interface {
	Execute() ([]byte, int64, error)
}

type result struct {
	data  []byte
	count int64
	err   error
}

// Execute runs q and returns early with ctx.Err() once ctx is done.
// postgrest-go takes no context, so an abandoned request keeps running in
// the background until its HTTP call returns.
func Execute(ctx context.Context, q Executor) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	done := make(chan result, 1)
	go func() {
		data, count, err := q.Execute()
		done <- result{data: data, count: count, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case r := <-done:
		return r.data, r.count, r.err
	}
}

// Decode executes the query and unmarshals the JSON array into out.
func Decode(ctx context.Context, q Executor, out interface{}) error {
	data, _, err := Execute(ctx, q)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// First executes the query and decodes the first row into out, returning
// ErrNoRows when the result is empty.
func First[T any](ctx context.Context, q Executor) (T, error) {
	var rows []T
	var zero T
	if err := Decode(ctx, q, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNoRows
	}
	return rows[0], nil
}

// Pinger checks reachability by reading one row of a small table.
type Pinger struct {
	client Client
	table  string
}

func NewPinger(client Client, table string) *Pinger {
	return &Pinger{client: client, table: table}
}

func (p *Pinger) Ping(ctx context.Context) error {
	_, _, err := Execute(ctx, p.client.From(p.table).Select("*", "", false).Limit(1, ""))
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.table, err)
	}
	return nil
}
