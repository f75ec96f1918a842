// Package catalog provides access to the media catalog database: content
// items, people, credits, per-type enrichment cycle records, and persisted
// quality reports. The gap scanner reads it page by page, the batch runner
// writes enrichment results and cycle stamps back into it.
package catalog
