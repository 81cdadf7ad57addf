// Package mailbox talks to the operator's OTA mailbox through a Gmail-style
// REST API: listing candidate messages, fetching full MIME payloads, and
// sending composed replies. It also hosts the periodic poller that feeds
// new messages into the ingestion pipeline.
//
// The wire types mirror the provider's JSON shapes (base64url-encoded part
// bodies, headers as name/value pairs). Decoding MIME semantics out of those
// shapes is the job of the otamail package, not this one.
package mailbox
