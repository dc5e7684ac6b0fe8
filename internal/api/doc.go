// Package api implements the Kiwoom REST API client.
//
// Every endpoint is an HTTP POST; the transaction is selected by the
// api-id request header and responses share a return_code/return_msg
// envelope. The client handles bearer-token auth (refreshing once on
// 401), request rate limiting, circuit breaking, jittered retry on
// 5xx/429, and cont-yn/next-key pagination.
package api
