// Package webhook implements the signed message ingestion endpoint.
//
// Senders POST a JSON message and put the hex HMAC-SHA256 of the raw body,
// keyed with the shared secret, in the signature header (X-Signature by
// default).
//
// The header value is matched leniently: hex of either case, an optional
// lowercase "sha256=" prefix, and surrounding whitespace are all accepted.
// The decoded digest must still equal the computed one byte for byte.
//
// # Security Model
//
//   - Signatures are verified over the raw bytes before any parsing, using
//     crypto/subtle for a constant-time comparison
//   - Missing, malformed and mismatched signatures all produce the same
//     generic 401
//   - Body size is capped before anything else is done (413)
//   - Request logging never includes payloads
//
// # Request Flow
//
//  1. Body read up to max_body_size (413 when exceeded)
//  2. Signature verified (401, store untouched)
//  3. Payload decoded and validated (422 with field errors, store untouched)
//  4. Dedupe cache consulted; a hit is answered 200 immediately
//  5. Message inserted; inserted and duplicate both answer 200 {"status":"ok"}
//  6. Store unavailable answers 503, any other failure 500
//
// Deliveries are never retried here. The sender is expected to redeliver,
// and redelivery is safe because inserts are idempotent on message_id.
package webhook
