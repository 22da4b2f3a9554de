// Package ringer implements the gRPC transport of the ringer control and ingest API.
//
// Requests and responses are google.protobuf.Struct messages so the service
// needs no generated code. The package holds the service descriptor, the
// server adapting calls to a business-service interface, a thin client, and
// the conversions between domain types and Struct fields.
package ringer
