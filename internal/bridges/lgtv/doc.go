// Package lgtv implements the LG TV RS232 bridge for Gray Logic.
//
// Each configured TV is a config entry (see package entry) bound to a
// serial port and a set ID. On start every entry is validated and, if the
// set answers, exposed as two entities: a media player and a remote.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐   RS232
//	│   Gray Logic    │   MQTT   │  LG TV Bridge   │◄────────► LG TV
//	│      Core       │◄────────►│   (this pkg)    │
//	└─────────────────┘          └─────────────────┘
//
// # Validation
//
// A set is valid when it answers a power check. A set in deep standby may
// not answer; it is then woken with WakeTV (two "power on" requests, one
// second apart) and, once awake, powered off again and given ten seconds
// to settle. A set that never answers fails with ErrCannotConnect.
//
// # Concurrency
//
// A Handle owns the serial link and runs every exchange on one worker
// goroutine, so entities, polling and MQTT commands never interleave
// frames on the wire. Retry and replay delays are plain sleeps in the
// calling goroutine and cannot be cancelled once started.
//
// # Entities
//
// MediaPlayer: turn_on, turn_off, set_volume{volume 0..1},
// mute{mute}, select_source{source}.
//
// Remote: turn_on, turn_off, send_command{command, num_repeats,
// delay_secs}, where each command is a category_action token such as
// "volume_up" or "input_hdmi1".
package lgtv
