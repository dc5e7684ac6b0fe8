// Package stream manages the real-time WebSocket connection to the
// brokerage.
//
// The Client wraps a single gorilla/websocket connection with buffered
// message delivery and staleness detection. The Manager layers the
// brokerage's frame protocol on top: REG/REMOVE commands with their
// acknowledgements, verbatim PING echo, and REAL data frames forwarded
// to the Router.
//
// Every frame the client sends carries a header with the approval key
// obtained from the REST API and a tr_type ("1" register, "2" remove).
// Server frames are discriminated by their trnm field.
//
// The Manager tracks all active subscriptions and re-registers them
// after a reconnect, with exponential backoff between attempts, so a
// dropped connection never silently loses market data coverage.
package stream
