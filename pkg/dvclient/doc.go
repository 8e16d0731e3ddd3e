// Package dvclient provides the primary entry point for constructing a
// Microsoft Dataverse Web API client that implements the dataverse.Client
// interface.
//
// It layers base URL normalization, Entra ID authentication, and the
// resilient HTTP transport on top of the operation interfaces and types
// defined in the dataverse package. Most applications should import dvclient
// to build a client, then use the returned dataverse.Client to access the
// operation clients Records(), Tables(), and Query().
//
// Quick start
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
//
//	  // With an access token you already have:
//	  cli, err := dvclient.New(&dataverse.Config{
//	    BaseURL:     "https://org.crm.dynamics.com",
//	    AccessToken: "eyJhbGciOi...", // bearer token
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an Entra ID app registration. The token endpoint is derived
//	  // from TenantID and the OAuth2 scope from BaseURL.
//	  cli, err = dvclient.New(&dataverse.Config{
//	    BaseURL:      "https://org.crm.dynamics.com",
//	    TenantID:     "tenant-id",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Use operation clients via the dataverse.Client interface.
//	  id, err := cli.Records().Create(ctx, "account", dataverse.Record{"name": "Contoso"})
//	  if err != nil { log.Fatal(err) }
//	  _ = id
//	}
//
// # Helpers
//
// The package also provides convenience constructors NewWithToken and
// NewWithClientCredentials that wrap New with the appropriate configuration.
package dvclient
