package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"golang.org/x/exp/constraints"
)

// SortedUnion merges two sorted slices into a sorted, deduplicated set.
func SortedUnion[T constraints.Ordered](a []T, b []T) []T {
	merged := make([]T, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	set := merged[:0]
	for i, v := range merged {
		if i == 0 || set[len(set)-1] != v {
			set = append(set, v)
		}
	}
	return set
}

// querier is the read surface shared by an endpoint and an open
// transaction; the audit algorithm runs against either.
type querier interface {
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

type graphTx interface {
	querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type endpoint interface {
	querier
	Begin(ctx context.Context) (graphTx, error)
	Close(ctx context.Context) error
}

// BoltEndpoint talks to a Cypher- or GQL-speaking store over Bolt.
type BoltEndpoint struct {
	driver   neo4j.DriverWithContext
	database string
	debug    bool
}

func GetBoltEndpoint(ctx context.Context, uri, username, password, database string, debug bool) (*BoltEndpoint, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}

	return &BoltEndpoint{
		driver:   driver,
		database: database,
		debug:    debug,
	}, nil
}

func (e *BoltEndpoint) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if e.debug {
		fmt.Println("Query: \n", query)
	}

	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return collectRows(ctx, result)
}

func (e *BoltEndpoint) Begin(ctx context.Context) (graphTx, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, err
	}
	return &boltTx{session: session, tx: tx, debug: e.debug}, nil
}

func (e *BoltEndpoint) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

type boltTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	debug   bool
}

func (t *boltTx) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if t.debug {
		fmt.Println("Tx query: \n", query)
	}

	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return collectRows(ctx, result)
}

func (t *boltTx) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	return t.tx.Commit(ctx)
}

func (t *boltTx) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	return t.tx.Rollback(ctx)
}

func collectRows(ctx context.Context, result neo4j.ResultWithContext) ([]map[string]any, error) {
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}
