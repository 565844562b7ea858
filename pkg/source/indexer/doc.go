// Package indexer talks to the indexed-query service.
//
// Client fetches validator records and reward history over HTTP. Staged
// fields are returned as raw JSON so the era package can resolve them.
// Feed follows the service's websocket stream and pushes era index changes
// into an era.Provider.
package indexer
