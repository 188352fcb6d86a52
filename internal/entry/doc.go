// Package entry stores the bridge's config entries.
//
// An entry records one configured LG TV: the serial port it hangs off and
// its set ID, plus user options that override the set ID after setup.
// Entries are created by the provisioning flow once the TV has answered,
// and loaded by the runtime on every start.
//
// The unique ID lg_tv_{tv_id} prevents configuring the same set twice.
package entry
