// Package protocol defines the message model exchanged with the remote
// modeling engine and the wire codec for it.
//
// Requests (headers, single command, batch) are framed as JSON text.
// Responses arrive as compact binary documents (BSON) and are decoded into a
// sealed Payload union: modeling, export, modeling-batch, or session-data.
// Correlation ids on responses may themselves be binary and are converted to
// a canonical lowercase-hex string before any pending-table lookup.
//
// The codec knows nothing about connection state or correlation; it is a
// pure translation layer used by the engineclient package.
package protocol
