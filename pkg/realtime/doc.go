// Package realtime pushes in-app notifications to browser sockets.
//
// A Hub is an http.Handler that upgrades requests to WebSocket connections.
// Clients bind themselves to a user by sending
//
//	{"event":"authenticate","user_id":"u-1"}
//
// ("subscribe" is accepted as an alias) and then receive frames of the form
//
//	{"event":"notification","data":{...}}
//
// BroadcastToUser is fire-and-forget: if the user has no open socket the
// call succeeds and nothing is stored. Every connection has a bounded send
// buffer; frames for a connection whose buffer is full are dropped.
package realtime
