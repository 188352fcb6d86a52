// Package rs232 speaks the LG television RS232C control protocol.
//
// A frame sent to the set is
//
//	[cmd1][cmd2] [set id] [data]\r        e.g. "ka 01 01\r"
//
// and the set answers
//
//	[cmd2] [set id] OK[data]x              e.g. "a 01 OK01x"
//	[cmd2] [set id] NG[data]x              rejected
//
// Set IDs and data bytes are two-digit hex. Set ID 00 addresses every
// display on the bus.
//
// Link maps the (category, action) pairs used by the bridge, such as
// ("power", "on") or ("volume", "42"), onto these frames. It reports
// "not acknowledged" as a false result with a nil error and reserves
// errors for local failures: the port could not be opened or written, or
// the command is not one the link knows.
//
// Link is synchronous and serialises access to the port. It performs no
// retries.
package rs232
