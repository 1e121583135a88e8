// Package pagination implements the bulk retrieval engine for paginated
// Prime Infrastructure data resources.
//
// The API rate-limits clients per unit time, so pages are not streamed
// through a free-running worker pool. Instead the fetcher:
//
//   - probes the resource once to learn the total record count,
//   - partitions the count into page requests of PageSize records
//     (.full/.firstResult/.maxResults query keys),
//   - dispatches the pages in chunks of at most Concurrency parallel
//     requests, joining every chunk before the next starts,
//   - sleeps Hold after each chunk so chunks stay separated in wall-clock
//     time, which is what the server's pacing limit measures.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(client, pagination.DefaultConfig())
//	entities, err := fetcher.Fetch(ctx, resourceURL, params)
//
// Results are assembled in ascending page offset order regardless of the
// order responses arrive in. The failure mode is fail-fast: the first page
// that classifies as an error aborts the whole fetch and no partial result
// is returned.
package pagination
