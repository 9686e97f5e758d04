// Package protocol implements the daemon's line-delimited JSON channel.
//
// Each input line holds one request object; each accepted request produces
// exactly one response object on its own output line:
//
//	{"id":1,"cmd":"status","hws_id":"A"}
//	{"id":1,"ok":true,"result":{...}}
//
// Blank lines are skipped without a response. A line that is not a JSON
// object still produces a request, carrying a ParseError and a null id, so
// the caller always gets an answer.
package protocol
