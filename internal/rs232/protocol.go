package rs232

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// MaxSetID is the highest set ID an LG display accepts.
const MaxSetID = 99

// Protocol command codes.
const (
	codePower  = "ka"
	codeVolume = "kf"
	codeMute   = "ke"
	codeInput  = "xb"
	codeKey    = "mc"
)

// queryData asks the set to report the current value instead of changing it.
const queryData = "ff"

// replyTerminator ends every reply frame.
const replyTerminator = 'x'

// inputs lists the input names in the order presented to users, with the
// data byte selecting each one.
var inputs = []struct {
	name string
	data string
}{
	{"dtv", "00"},
	{"atv", "10"},
	{"av1", "20"},
	{"av2", "21"},
	{"component1", "40"},
	{"component2", "41"},
	{"rgb", "60"},
	{"hdmi1", "90"},
	{"hdmi2", "91"},
	{"hdmi3", "92"},
	{"hdmi4", "93"},
}

// keys maps remote key names to IR key codes sent with "mc".
var keys = map[string]string{
	"power": "08",
	"mute":  "09",
	"menu":  "43",
	"ok":    "44",
	"up":    "40",
	"down":  "41",
	"left":  "07",
	"right": "06",
	"back":  "28",
	"exit":  "5b",
	"info":  "aa",
	"home":  "7c",
	"input": "0b",
	"0":     "10",
	"1":     "11",
	"2":     "12",
	"3":     "13",
	"4":     "14",
	"5":     "15",
	"6":     "16",
	"7":     "17",
	"8":     "18",
	"9":     "19",
}

// Sources returns the selectable input names.
func Sources() []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.name
	}
	return out
}

// frame is an encoded request.
type frame struct {
	code string
	data string
}

// encode resolves a (category, action) pair to a frame.
func encode(category, action string) (frame, error) {
	category = strings.ToLower(category)
	action = strings.ToLower(action)

	switch category {
	case "power":
		switch action {
		case "on":
			return frame{codePower, "01"}, nil
		case "off":
			return frame{codePower, "00"}, nil
		case "check":
			return frame{codePower, queryData}, nil
		}

	case "volume":
		switch action {
		case "up":
			return frame{codeKey, "02"}, nil
		case "down":
			return frame{codeKey, "03"}, nil
		}
		level, err := strconv.Atoi(action)
		if err == nil && level >= 0 && level <= 100 {
			return frame{codeVolume, fmt.Sprintf("%02x", level)}, nil
		}

	case "sound", "mute":
		// "sound on" means muted.
		switch action {
		case "on":
			return frame{codeMute, "00"}, nil
		case "off":
			return frame{codeMute, "01"}, nil
		}

	case "input":
		for _, in := range inputs {
			if in.name == action {
				return frame{codeInput, in.data}, nil
			}
		}

	case "channel":
		switch action {
		case "up":
			return frame{codeKey, "00"}, nil
		case "down":
			return frame{codeKey, "01"}, nil
		}

	case "key":
		if data, ok := keys[action]; ok {
			return frame{codeKey, data}, nil
		}
	}

	return frame{}, fmt.Errorf("%w: %s %s", ErrUnknownCommand, category, action)
}

// bytes renders the frame for set id.
func (f frame) bytes(setID int) []byte {
	return []byte(fmt.Sprintf("%s %02x %s\r", f.code, setID, f.data))
}

// reply is a decoded answer frame.
type reply struct {
	ok   bool
	data string
}

// decodeReply parses "a 01 OK01x". It returns false when the frame does not
// answer code or is malformed.
func decodeReply(raw []byte, code string) (reply, bool) {
	raw = bytes.TrimSpace(raw)
	raw = bytes.TrimSuffix(raw, []byte{replyTerminator})

	fields := strings.Fields(string(raw))
	if len(fields) != 3 || fields[0] != code[1:] {
		return reply{}, false
	}

	status := fields[2]
	if len(status) < 2 {
		return reply{}, false
	}
	switch status[:2] {
	case "OK":
		return reply{ok: true, data: strings.ToLower(status[2:])}, true
	case "NG":
		return reply{ok: false, data: strings.ToLower(status[2:])}, true
	}
	return reply{}, false
}

// inputName maps an input data byte back to its name.
func inputName(data string) string {
	for _, in := range inputs {
		if in.data == data {
			return in.name
		}
	}
	return ""
}
