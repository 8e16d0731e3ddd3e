// Package dataverse provides types, interfaces, and helpers for working with
// the Microsoft Dataverse Web API.
//
// # Overview
//
// The dataverse package defines the domain types (Record, TableInfo, Page)
// and the interfaces for the operation clients (RecordsClient, TablesClient,
// QueryClient). A concrete implementation is provided by the dvclient
// package, which wires configuration, transport, authentication, retries,
// and metadata resolution. Most consumers should import dvclient to
// construct a client and then interact with the interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/powerplatform-go/dataverse/pkg/dataverse"
//	  "github.com/powerplatform-go/dataverse/pkg/dvclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := dvclient.New(&dataverse.Config{
//	    BaseURL:      "https://org.crm.dynamics.com",
//	    TenantID:     "tenant-id",
//	    ClientID:     "app-id",
//	    ClientSecret: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  id, err := cli.Records().Create(ctx, "account", dataverse.Record{"name": "Contoso"})
//	  if err != nil { log.Fatal(err) }
//	  _ = id
//	}
//
// Tables are always addressed by logical name ("account"); the client
// resolves entity set names and "@odata.type" annotations from table
// metadata and caches the result per table for the life of the client.
//
// # Queries and paging
//
// Use QueryOptions to express OData list options ($select, $filter,
// $orderby, $expand, $top) and a server page size. List returns a
// RowIterator that fetches pages on demand:
//
//	it := cli.Records().List(ctx, "account", dataverse.NewQueryOptions().WithTop(100))
//	for it.HasNext() {
//	  row, err := it.Next()
//	  if err != nil { break }
//	  _ = row
//	}
//
// # Bulk operations
//
// CreateMany and UpdateMany use the CreateMultiple and UpdateMultiple
// actions to write many rows in one round trip. DeleteMany deletes per
// record by default, or schedules a server-side BulkDelete job on request.
//
// # Errors and retries
//
// Request failures are represented by Error, carrying the HTTP status, a
// classification subcode, the service correlation id, and whether the
// failure is transient. Transient failures (connection errors, 429, 502,
// 503, 504) are retried automatically with capped exponential backoff and
// jitter, honoring Retry-After hints. Helpers such as IsNotFound,
// IsTransient, and IsRateLimited make it easy to branch on common cases.
package dataverse
