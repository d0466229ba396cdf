// Package feed owns the connection to the edit feed and turns transport
// callbacks into one ordered stream of decoded events.
//
// A Transport posts Signals (a message, a failure, a close) into an Inbox;
// Post never blocks the transport's read loop. Connection handles every
// signal on its worker scheduler: messages are decoded and pushed to the
// Events stream in receipt order, undecodable messages are logged and
// dropped, a failure terminates the stream with a *ConnectionError, and a
// close completes it. Termination is permanent.
//
// Connection state moves Idle -> Open -> Closed | Failed.
//
// WebSocketTransport is the gorilla/websocket implementation used in
// production. It never reconnects.
package feed
